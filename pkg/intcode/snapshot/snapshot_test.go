package snapshot

import (
	"bytes"
	"path/filepath"
	"slices"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/intcode/pkg/intcode"
)

func TestMarshalResumesMidProgram(t *testing.T) {
	// Read two inputs, output their sum.
	program := []int64{3, 13, 3, 14, 1, 13, 14, 15, 4, 15, 99, 0, 0, 0, 0, 0}
	m := intcode.New(program)
	in := intcode.NewInput(30, 12)
	if err := m.Step(in); err != nil {
		t.Fatalf("Step: %v", err)
	}

	data, err := Marshal(m, in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	restored, pending, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if restored.PC() != 2 {
		t.Errorf("pc = %d, want 2", restored.PC())
	}
	if !slices.Equal(pending.Remaining(), []int64{12}) {
		t.Errorf("pending = %v, want [12]", pending.Remaining())
	}

	out, err := restored.Run(pending)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(out, []int64{42}) {
		t.Errorf("outputs = %v, want [42]", out)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	m := intcode.New([]int64{1, 9, 10, 3, 2, 3, 11, 0, 99, 30, 40, 50})
	a, err := Marshal(m, nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(m.Clone(), nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal machines encoded differently")
	}
}

func TestHaltedStateSurvives(t *testing.T) {
	m := intcode.New([]int64{104, 5, 99})
	if _, err := m.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := Marshal(m, nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	restored, _, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if restored.HaltReason() != intcode.HaltInstruction {
		t.Errorf("halt reason = %v, want %v", restored.HaltReason(), intcode.HaltInstruction)
	}
	if !slices.Equal(restored.Outputs(), []int64{5}) {
		t.Errorf("outputs = %v, want [5]", restored.Outputs())
	}
}

func TestUnmarshalRejectsFutureVersion(t *testing.T) {
	data, err := cbor.Marshal(&Image{Version: Version + 1, Memory: []int64{99}})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	if _, _, err := Unmarshal(data); err == nil {
		t.Error("Unmarshal accepted a newer image version")
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, _, err := Unmarshal([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("Unmarshal accepted garbage")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.cbor")
	m := intcode.New([]int64{1101, 2, 3, 0, 99})
	m.SetMemoryLimit(64)
	if err := Save(path, m, intcode.NewInput(7)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	restored, pending, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pending.Len() != 1 {
		t.Errorf("pending len = %d, want 1", pending.Len())
	}
	if _, err := restored.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if restored.Read(0) != 5 {
		t.Errorf("cell 0 = %d, want 5", restored.Read(0))
	}
}
