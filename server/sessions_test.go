package server

import (
	"testing"
	"time"

	"github.com/chazu/intcode/pkg/intcode"
)

func TestSessionStore_CreateGetDestroy(t *testing.T) {
	store := NewSessionStore()
	a := store.Create("a", intcode.New([]int64{99}), nil)
	b := store.Create("", intcode.New([]int64{99}), nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("session IDs %q and %q should be distinct and non-empty", a.ID, b.ID)
	}

	got, ok := store.Get(a.ID)
	if !ok || got.Name != "a" {
		t.Errorf("Get(%q) = %v, %v", a.ID, got, ok)
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}

	if !store.Destroy(a.ID) {
		t.Error("Destroy should report an existing session")
	}
	if store.Destroy(a.ID) {
		t.Error("Destroy should report a missing session")
	}
	if _, ok := store.Get(a.ID); ok {
		t.Error("destroyed session still retrievable")
	}
}

func TestSession_WithGivesInput(t *testing.T) {
	store := NewSessionStore()
	s := store.Create("", intcode.New([]int64{3, 0, 99}), intcode.NewInput(5))
	err := s.With(func(m *intcode.Machine, in *intcode.Input) error {
		_, err := m.Run(in)
		return err
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	s.With(func(m *intcode.Machine, _ *intcode.Input) error {
		if m.Read(0) != 5 {
			t.Errorf("cell 0 = %d, want 5", m.Read(0))
		}
		return nil
	})
}

func TestSessionStore_Sweep(t *testing.T) {
	store := NewSessionStore()
	idle := store.Create("idle", intcode.New([]int64{99}), nil)
	fresh := store.Create("fresh", intcode.New([]int64{99}), nil)
	idle.lastUsed.Store(time.Now().Add(-time.Hour).UnixNano())

	if n := store.Sweep(time.Minute); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, ok := store.Get(idle.ID); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := store.Get(fresh.ID); !ok {
		t.Error("fresh session was swept")
	}
}
