package intcode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// State is a plain copy of everything a Machine holds, used to checkpoint
// and restore machines.
type State struct {
	Memory      []int64
	PC          int
	Outputs     []int64
	Halt        HaltReason
	Steps       uint64
	MemoryLimit int
}

// State returns a deep copy of the machine's state.
func (m *Machine) State() State {
	outputs := make([]int64, len(m.outputs))
	copy(outputs, m.outputs)
	return State{
		Memory:      m.mem.Words(),
		PC:          m.pc,
		Outputs:     outputs,
		Halt:        m.halt,
		Steps:       m.steps,
		MemoryLimit: m.memLimit,
	}
}

// Restore builds a machine from a saved state.
func Restore(s State) (*Machine, error) {
	if s.Halt > HaltEndOfMemory {
		return nil, fmt.Errorf("intcode: restore: unknown halt reason %d", s.Halt)
	}
	if s.MemoryLimit < 0 {
		return nil, fmt.Errorf("intcode: restore: negative memory limit %d", s.MemoryLimit)
	}
	m := &Machine{
		mem:      NewMemory(s.Memory),
		pc:       s.PC,
		halt:     s.Halt,
		steps:    s.Steps,
		memLimit: s.MemoryLimit,
	}
	if len(s.Outputs) > 0 {
		m.outputs = append([]int64(nil), s.Outputs...)
	}
	return m, nil
}

// Fingerprint returns a hex SHA-256 of the canonical text of words. Equal
// programs have equal fingerprints regardless of how their text was
// formatted.
func Fingerprint(words []int64) string {
	sum := sha256.Sum256([]byte(Format(words)))
	return hex.EncodeToString(sum[:])
}
