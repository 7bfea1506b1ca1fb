package intcode

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
)

var logger = commonlog.GetLogger("intcode")

// ErrMemoryLimit is returned when a write targets an index at or beyond the
// limit set with SetMemoryLimit.
var ErrMemoryLimit = errors.New("memory limit exceeded")

// HaltReason records why a machine stopped.
type HaltReason uint8

const (
	HaltNone        HaltReason = iota // Still running
	HaltInstruction                   // Executed opcode 99
	HaltEndOfMemory                   // pc left memory
)

func (r HaltReason) String() string {
	switch r {
	case HaltNone:
		return "running"
	case HaltInstruction:
		return "halt"
	case HaltEndOfMemory:
		return "end of memory"
	default:
		return fmt.Sprintf("HaltReason(%d)", r)
	}
}

// Machine is an Intcode interpreter instance. It owns its memory and output
// buffer exclusively.
type Machine struct {
	mem     *Memory
	pc      int
	outputs []int64
	halt    HaltReason
	steps   uint64

	// memLimit bounds the memory extent writes may grow to; 0 means no limit.
	memLimit int
}

// New creates a machine whose memory holds a copy of program, with pc at 0
// and an empty output buffer.
func New(program []int64) *Machine {
	return &Machine{mem: NewMemory(program)}
}

// Read returns memory cell i.
func (m *Machine) Read(i int) int64 {
	return m.mem.Read(i)
}

// Write stores v in memory cell i, growing memory if needed.
func (m *Machine) Write(i int, v int64) {
	m.mem.Write(i, v)
}

// Memory returns the machine's memory.
func (m *Machine) Memory() *Memory {
	return m.mem
}

// PC returns the program counter.
func (m *Machine) PC() int {
	return m.pc
}

// Halted reports whether the machine has stopped.
func (m *Machine) Halted() bool {
	return m.halt != HaltNone
}

// HaltReason reports why the machine stopped, or HaltNone.
func (m *Machine) HaltReason() HaltReason {
	return m.halt
}

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() uint64 {
	return m.steps
}

// Outputs returns the output buffer. The slice is owned by the machine and
// is only valid until the next step.
func (m *Machine) Outputs() []int64 {
	return m.outputs
}

// LastOutput returns the most recent output value.
func (m *Machine) LastOutput() (int64, bool) {
	if len(m.outputs) == 0 {
		return 0, false
	}
	return m.outputs[len(m.outputs)-1], true
}

// TakeOutputs returns the buffered outputs and empties the buffer.
func (m *Machine) TakeOutputs() []int64 {
	out := m.outputs
	m.outputs = nil
	return out
}

// SetMemoryLimit bounds the number of memory cells a program may grow to.
// Zero removes the limit. Caller writes through Write are not limited.
func (m *Machine) SetMemoryLimit(cells int) {
	m.memLimit = cells
}

// Clone returns an independent copy of the machine. Memory and registers are
// deep-copied; the clone starts with an empty output buffer.
func (m *Machine) Clone() *Machine {
	return &Machine{
		mem:      m.mem.Clone(),
		pc:       m.pc,
		halt:     m.halt,
		steps:    m.steps,
		memLimit: m.memLimit,
	}
}

// Step decodes and executes one instruction, drawing input values from in.
//
// It returns ErrEnd when the machine halts, either by executing Halt or
// because pc lies outside memory; once halted every further Step returns
// ErrEnd. Other errors are wrapped in a *StepError carrying the pc of the
// faulting instruction, and leave the machine as it was before the step.
func (m *Machine) Step(in *Input) error {
	if m.halt != HaltNone {
		return ErrEnd
	}
	if m.pc < 0 || m.pc >= m.mem.Len() {
		m.halt = HaltEndOfMemory
		logger.Warningf("pc %d is outside memory (%d words), treating as halt", m.pc, m.mem.Len())
		return ErrEnd
	}

	pc := m.pc
	op, err := Decode(m.mem, pc)
	if err != nil {
		return &StepError{PC: pc, Err: err}
	}
	if logger.AllowLevel(commonlog.Debug) {
		logger.Debugf("pc %d: %s", pc, op)
	}

	m.pc += op.Len()
	if err := m.execute(op, in); err != nil {
		if err == ErrEnd {
			m.steps++
			return err
		}
		// Faulting instructions have no effect, so a driver can fix the
		// cause (typically by pushing more input) and step again.
		m.pc = pc
		return &StepError{PC: pc, Err: err}
	}
	m.steps++
	return nil
}

func (m *Machine) execute(op Operation, in *Input) error {
	a, b, dst := op.Args[0], op.Args[1], op.Args[2]

	switch op.Op {
	case OpAdd:
		return m.store(dst, a.Load(m.mem)+b.Load(m.mem))

	case OpMul:
		return m.store(dst, a.Load(m.mem)*b.Load(m.mem))

	case OpInput:
		if err := m.checkStore(a); err != nil {
			return err
		}
		v, ok := in.Next()
		if !ok {
			return ErrNotEnoughInputs
		}
		if logger.AllowLevel(commonlog.Debug) {
			logger.Debugf("input %d -> %s", v, a)
		}
		return m.store(a, v)

	case OpOutput:
		v := a.Load(m.mem)
		if logger.AllowLevel(commonlog.Debug) {
			logger.Debugf("output %d", v)
		}
		m.outputs = append(m.outputs, v)

	case OpJumpIfTrue:
		if a.Load(m.mem) != 0 {
			m.jump(b.Load(m.mem))
		}

	case OpJumpIfFalse:
		if a.Load(m.mem) == 0 {
			m.jump(b.Load(m.mem))
		}

	case OpLessThan:
		return m.store(dst, boolWord(a.Load(m.mem) < b.Load(m.mem)))

	case OpEquals:
		return m.store(dst, boolWord(a.Load(m.mem) == b.Load(m.mem)))

	case OpHalt:
		m.halt = HaltInstruction
		return ErrEnd

	default:
		return &OpcodeError{Opcode: int64(op.Op)}
	}
	return nil
}

func (m *Machine) checkStore(dst Location) error {
	if dst.Mode != ModePosition {
		return &DestinationError{Loc: dst}
	}
	if m.memLimit > 0 && dst.Value >= int64(m.memLimit) {
		return fmt.Errorf("%w: write to %d, limit %d", ErrMemoryLimit, dst.Value, m.memLimit)
	}
	return nil
}

func (m *Machine) store(dst Location, v int64) error {
	if err := m.checkStore(dst); err != nil {
		return err
	}
	return dst.Store(m.mem, v)
}

// jump sets pc to target. A negative target leaves pc outside memory, so the
// next step halts.
func (m *Machine) jump(target int64) {
	if target < 0 {
		m.pc = -1
		return
	}
	m.pc = int(target)
}

func boolWord(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Run steps the machine until it halts and returns the output buffer.
// Errors other than ErrEnd abort the run and are returned as is.
func (m *Machine) Run(in *Input) ([]int64, error) {
	for {
		if err := m.Step(in); err != nil {
			if err == ErrEnd {
				return m.outputs, nil
			}
			return nil, err
		}
	}
}

// RunInputs is Run over a fresh Input holding values.
func (m *Machine) RunInputs(values ...int64) ([]int64, error) {
	return m.Run(NewInput(values...))
}

// RunLimit is Run with a caller-imposed bound on the number of instructions
// executed by this call. It returns ErrStepLimit if the machine is still
// running after maxSteps steps; the machine can be resumed afterwards.
func (m *Machine) RunLimit(in *Input, maxSteps uint64) ([]int64, error) {
	for n := uint64(0); n < maxSteps; n++ {
		if err := m.Step(in); err != nil {
			if err == ErrEnd {
				return m.outputs, nil
			}
			return nil, err
		}
	}
	if m.Halted() {
		return m.outputs, nil
	}
	return nil, fmt.Errorf("%w: %d steps", ErrStepLimit, maxSteps)
}

// RunUntilOutput steps until one new output value is produced and returns
// it. It returns ErrEnd if the machine halts first.
func (m *Machine) RunUntilOutput(in *Input) (int64, error) {
	start := len(m.outputs)
	for len(m.outputs) == start {
		if err := m.Step(in); err != nil {
			return 0, err
		}
	}
	return m.outputs[start], nil
}
