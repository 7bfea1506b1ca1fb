// Package snapshot encodes Intcode machine checkpoints as canonical CBOR, so
// a paused machine can be written to disk or sent to another process and
// resumed later.
package snapshot

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/intcode/pkg/intcode"
)

// Version is the current image format version.
const Version uint16 = 1

// Image is the wire form of a machine checkpoint. Pending holds input values
// not yet consumed, so an interactive session resumes where it stopped.
type Image struct {
	Version     uint16  `cbor:"1,keyasint"`
	Memory      []int64 `cbor:"2,keyasint"`
	PC          int64   `cbor:"3,keyasint"`
	Outputs     []int64 `cbor:"4,keyasint,omitempty"`
	Halt        uint8   `cbor:"5,keyasint"`
	Steps       uint64  `cbor:"6,keyasint"`
	MemoryLimit int64   `cbor:"7,keyasint,omitempty"`
	Pending     []int64 `cbor:"8,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Capture builds an image of m and the unconsumed values of in (which may be
// nil).
func Capture(m *intcode.Machine, in *intcode.Input) *Image {
	s := m.State()
	return &Image{
		Version:     Version,
		Memory:      s.Memory,
		PC:          int64(s.PC),
		Outputs:     s.Outputs,
		Halt:        uint8(s.Halt),
		Steps:       s.Steps,
		MemoryLimit: int64(s.MemoryLimit),
		Pending:     in.Remaining(),
	}
}

// Machine rebuilds the machine and its pending input from the image.
func (img *Image) Machine() (*intcode.Machine, *intcode.Input, error) {
	if img.Version == 0 || img.Version > Version {
		return nil, nil, fmt.Errorf("snapshot: unsupported image version %d", img.Version)
	}
	m, err := intcode.Restore(intcode.State{
		Memory:      img.Memory,
		PC:          int(img.PC),
		Outputs:     img.Outputs,
		Halt:        intcode.HaltReason(img.Halt),
		Steps:       img.Steps,
		MemoryLimit: int(img.MemoryLimit),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	return m, intcode.NewInput(img.Pending...), nil
}

// Marshal encodes m and its pending input.
func Marshal(m *intcode.Machine, in *intcode.Input) ([]byte, error) {
	return encMode.Marshal(Capture(m, in))
}

// Unmarshal decodes an image produced by Marshal.
func Unmarshal(data []byte) (*intcode.Machine, *intcode.Input, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal image: %w", err)
	}
	return img.Machine()
}

// Save writes a snapshot of m to path.
func Save(path string, m *intcode.Machine, in *intcode.Input) error {
	data, err := Marshal(m, in)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: cannot write %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*intcode.Machine, *intcode.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: cannot read %s: %w", path, err)
	}
	return Unmarshal(data)
}
