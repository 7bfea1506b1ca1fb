package intcode

import "fmt"

// Opcode identifies an instruction: the two low decimal digits of an
// instruction word.
type Opcode int64

const (
	// Arithmetic
	OpAdd Opcode = 1 // dst <- a + b
	OpMul Opcode = 2 // dst <- a * b

	// I/O
	OpInput  Opcode = 3 // dst <- next input value
	OpOutput Opcode = 4 // append a to the output buffer

	// Control flow
	OpJumpIfTrue  Opcode = 5 // pc <- b if a != 0
	OpJumpIfFalse Opcode = 6 // pc <- b if a == 0

	// Comparison
	OpLessThan Opcode = 7 // dst <- 1 if a < b else 0
	OpEquals   Opcode = 8 // dst <- 1 if a == b else 0

	OpHalt Opcode = 99
)

// OpcodeInfo describes the shape of an instruction.
type OpcodeInfo struct {
	Name   string // Mnemonic used by the disassembler
	Params int    // Number of parameter words after the instruction word
	Writes bool   // Last parameter is a destination
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpAdd:         {"ADD", 3, true},
	OpMul:         {"MUL", 3, true},
	OpInput:       {"IN", 1, true},
	OpOutput:      {"OUT", 1, false},
	OpJumpIfTrue:  {"JT", 2, false},
	OpJumpIfFalse: {"JF", 2, false},
	OpLessThan:    {"LT", 3, true},
	OpEquals:      {"EQ", 3, true},
	OpHalt:        {"HALT", 0, false},
}

// LookupOpcode returns the metadata for op and whether op is defined.
func LookupOpcode(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// String returns the mnemonic of op.
func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int64(op))
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// InstructionLen returns the instruction length in words, including the
// instruction word. Unknown opcodes have length 1.
func (op Opcode) InstructionLen() int {
	return 1 + opcodeInfoTable[op].Params
}

// IsJump reports whether op may transfer control.
func (op Opcode) IsJump() bool {
	return op == OpJumpIfTrue || op == OpJumpIfFalse
}

// AllOpcodes returns every defined opcode in ascending order.
func AllOpcodes() []Opcode {
	return []Opcode{
		OpAdd, OpMul, OpInput, OpOutput,
		OpJumpIfTrue, OpJumpIfFalse, OpLessThan, OpEquals,
		OpHalt,
	}
}
