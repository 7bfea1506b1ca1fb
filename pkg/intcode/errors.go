package intcode

import (
	"errors"
	"fmt"
)

// ErrEnd signals normal termination: a Halt instruction executed or the
// program counter left memory. It is not a fault.
var ErrEnd = errors.New("program end")

// Fault kinds. Concrete errors returned by the decoder and executor unwrap to
// one of these so callers can test with errors.Is.
var (
	ErrInvalidOpcode      = errors.New("invalid opcode")
	ErrInvalidMode        = errors.New("invalid mode")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrInputTooShort      = errors.New("input too short")
	ErrNotEnoughInputs    = errors.New("not enough inputs")
)

// ErrStepLimit is returned by RunLimit when the program is still running
// after the allowed number of steps.
var ErrStepLimit = errors.New("step limit exceeded")

// IsEnd reports whether err is the normal-termination signal.
func IsEnd(err error) bool {
	return errors.Is(err, ErrEnd)
}

// OpcodeError reports an opcode field that matches no instruction.
type OpcodeError struct {
	Opcode int64
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("invalid opcode: %d", e.Opcode)
}

func (e *OpcodeError) Unwrap() error { return ErrInvalidOpcode }

// ModeError reports a parameter mode digit other than 0 or 1.
type ModeError struct {
	Mode int64
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("invalid mode: %d", e.Mode)
}

func (e *ModeError) Unwrap() error { return ErrInvalidMode }

// DestinationError reports a write through an Immediate operand.
type DestinationError struct {
	Loc Location
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("invalid destination: %s", e.Loc)
}

func (e *DestinationError) Unwrap() error { return ErrInvalidDestination }

// PositionError reports a negative Position-mode operand.
type PositionError struct {
	Value int64
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("invalid position: %d", e.Value)
}

func (e *PositionError) Unwrap() error { return ErrInvalidPosition }

// TruncatedError reports an instruction whose parameters run past the end of
// memory. Need counts the instruction word itself.
type TruncatedError struct {
	Need int
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("input too short: %d < %d", e.Have, e.Need)
}

func (e *TruncatedError) Unwrap() error { return ErrInputTooShort }

// StepError attaches the program counter of the faulting instruction.
type StepError struct {
	PC  int
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("intcode: pc %d: %v", e.PC, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
