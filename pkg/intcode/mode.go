package intcode

import "fmt"

// Mode is a parameter addressing mode.
type Mode uint8

const (
	ModePosition  Mode = 0 // Operand is a memory index
	ModeImmediate Mode = 1 // Operand is the value itself
)

func (m Mode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// parseModes extracts the three mode digits above the opcode. Digit 0 is the
// first parameter's mode. All three digits are validated even when the
// instruction takes fewer parameters.
func parseModes(word int64) ([3]Mode, error) {
	var modes [3]Mode
	field := word / 100
	for i := range modes {
		digit := field % 10
		field /= 10
		switch digit {
		case 0:
			modes[i] = ModePosition
		case 1:
			modes[i] = ModeImmediate
		default:
			return modes, &ModeError{Mode: digit}
		}
	}
	return modes, nil
}

// Location is a decoded operand: a memory position or an immediate literal.
type Location struct {
	Mode  Mode
	Value int64
}

// Position returns a Position-mode location for index i.
func Position(i int64) Location {
	return Location{Mode: ModePosition, Value: i}
}

// Immediate returns an Immediate-mode location carrying v.
func Immediate(v int64) Location {
	return Location{Mode: ModeImmediate, Value: v}
}

// resolve applies mode to a raw parameter word.
func (m Mode) resolve(raw int64) (Location, error) {
	if m == ModePosition && raw < 0 {
		return Location{}, &PositionError{Value: raw}
	}
	return Location{Mode: m, Value: raw}, nil
}

// Load returns the value the location refers to.
func (l Location) Load(mem *Memory) int64 {
	if l.Mode == ModeImmediate {
		return l.Value
	}
	return mem.Read(int(l.Value))
}

// Store writes v through the location. Immediate locations cannot be written.
func (l Location) Store(mem *Memory, v int64) error {
	if l.Mode != ModePosition {
		return &DestinationError{Loc: l}
	}
	mem.Write(int(l.Value), v)
	return nil
}

// String renders positions as [i] and immediates as #v.
func (l Location) String() string {
	if l.Mode == ModeImmediate {
		return fmt.Sprintf("#%d", l.Value)
	}
	return fmt.Sprintf("[%d]", l.Value)
}
