package intcode

import "testing"

func TestMemoryReadPastEnd(t *testing.T) {
	m := NewMemory([]int64{1, 2, 3})
	if got := m.Read(100); got != 0 {
		t.Errorf("Read(100) = %d, want 0", got)
	}
	if m.Len() != 3 {
		t.Errorf("Read grew memory to %d", m.Len())
	}
}

func TestMemoryWriteGrowsWithZeroFill(t *testing.T) {
	m := NewMemory([]int64{7})
	m.Write(5, 42)
	if m.Len() != 6 {
		t.Fatalf("Len = %d, want 6", m.Len())
	}
	want := []int64{7, 0, 0, 0, 0, 42}
	for i, w := range want {
		if got := m.Read(i); got != w {
			t.Errorf("cell %d = %d, want %d", i, got, w)
		}
	}

	// Writing inside the extent never shrinks it.
	m.Write(2, -1)
	if m.Len() != 6 {
		t.Errorf("Len after inner write = %d, want 6", m.Len())
	}
}

func TestMemoryNegativeIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Write(-1) did not panic")
		}
	}()
	NewMemory(nil).Write(-1, 1)
}

func TestMemoryCloneIndependent(t *testing.T) {
	src := []int64{1, 2, 3}
	a := NewMemory(src)
	src[0] = 100
	if a.Read(0) != 1 {
		t.Errorf("NewMemory aliases its argument")
	}

	b := a.Clone()
	b.Write(0, 9)
	b.Write(10, 9)
	if a.Read(0) != 1 || a.Len() != 3 {
		t.Errorf("clone write leaked: cell0=%d len=%d", a.Read(0), a.Len())
	}

	words := a.Words()
	words[1] = 50
	if a.Read(1) != 2 {
		t.Errorf("Words aliases memory")
	}
}
