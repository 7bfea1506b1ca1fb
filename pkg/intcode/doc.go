// Package intcode implements the Intcode virtual machine: a stored-program
// interpreter whose programs are flat lists of signed integers.
//
// # Architecture Overview
//
//   - Memory: a growable sequence of int64 cells. Reads past the end yield 0,
//     writes past the end grow the backing slice with zero fill.
//
//   - Decoder: Decode turns the word at the program counter into an Operation
//     whose operands are already resolved into Locations (a memory position or
//     an inline immediate).
//
//   - Machine: owns memory, the program counter and the output buffer. Step
//     decodes and executes one instruction, Run steps until the program halts.
//
// # Instruction Format
//
// An instruction word is laid out as decimal digits ...CBA-OO, where OO is the
// opcode and A, B and C select the addressing mode of the first, second and
// third parameter. Mode 0 is Position, mode 1 is Immediate. Parameters follow
// the instruction word in memory.
//
// # Halting
//
// Executing opcode 99, or moving the program counter outside memory, halts the
// machine. Step reports both as ErrEnd, which Run treats as normal
// termination. Every other error aborts the run and is returned to the caller.
//
// # Concurrency
//
// A Machine is not safe for concurrent use. Clone produces an independent
// deep copy, so exploring several execution paths in parallel needs no
// synchronization beyond one clone per goroutine.
package intcode
