package intcode

import "strings"

// Operation is a decoded instruction with its operands resolved. Only the
// first Op.Params entries of Args are meaningful.
type Operation struct {
	Op   Opcode
	Args [3]Location
}

// Len returns the instruction length in words.
func (o Operation) Len() int {
	return o.Op.InstructionLen()
}

// Params returns the meaningful operands.
func (o Operation) Params() []Location {
	return o.Args[:opcodeInfoTable[o.Op].Params]
}

// String renders the operation as mnemonic and operands, with the
// destination separated by an arrow: "ADD [9] #3 -> [0]".
func (o Operation) String() string {
	info, ok := opcodeInfoTable[o.Op]
	if !ok {
		return o.Op.String()
	}
	var sb strings.Builder
	sb.WriteString(info.Name)
	for i, arg := range o.Args[:info.Params] {
		if info.Writes && i == info.Params-1 {
			sb.WriteString(" ->")
		}
		sb.WriteByte(' ')
		sb.WriteString(arg.String())
	}
	return sb.String()
}

// Decode decodes the instruction starting at pc. It reads memory but never
// modifies it, so decoding the same words twice yields equal Operations.
func Decode(mem *Memory, pc int) (Operation, error) {
	return decodeWords(mem.window(pc))
}

// DecodeWords decodes the instruction at the start of words.
func DecodeWords(words []int64) (Operation, error) {
	return decodeWords(words)
}

func decodeWords(words []int64) (Operation, error) {
	if len(words) == 0 {
		return Operation{}, &TruncatedError{Need: 1, Have: 0}
	}
	word := words[0]

	modes, err := parseModes(word)
	if err != nil {
		return Operation{}, err
	}

	op := Opcode(word % 100)
	info, ok := opcodeInfoTable[op]
	if !ok {
		return Operation{}, &OpcodeError{Opcode: int64(op)}
	}

	if len(words) < 1+info.Params {
		return Operation{}, &TruncatedError{Need: 1 + info.Params, Have: len(words)}
	}

	decoded := Operation{Op: op}
	for i := 0; i < info.Params; i++ {
		loc, err := modes[i].resolve(words[1+i])
		if err != nil {
			return Operation{}, err
		}
		decoded.Args[i] = loc
	}

	return decoded, nil
}
