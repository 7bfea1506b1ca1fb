package intcode

import (
	"fmt"
	"strings"
)

// Disassemble returns a listing of words produced by a linear sweep from
// address 0. Words that do not decode are listed as data. Intcode programs
// mix code and data and may modify themselves, so the listing reflects the
// memory image, not necessarily what executes.
func Disassemble(words []int64) string {
	var sb strings.Builder
	for pc := 0; pc < len(words); {
		line, n := DisassembleAt(words, pc)
		sb.WriteString(line)
		sb.WriteByte('\n')
		pc += n
	}
	return sb.String()
}

// Disassemble lists the machine's current memory, marking the instruction
// at pc.
func (m *Machine) Disassemble() string {
	words := m.mem.Words()
	var sb strings.Builder
	for pc := 0; pc < len(words); {
		line, n := DisassembleAt(words, pc)
		if pc == m.pc {
			sb.WriteString("> ")
		} else {
			sb.WriteString("  ")
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		pc += n
	}
	return sb.String()
}

// DisassembleAt formats the instruction at pc and returns it with the number
// of words it occupies. An undecodable word is one word of data.
func DisassembleAt(words []int64, pc int) (string, int) {
	if pc < 0 || pc >= len(words) {
		return fmt.Sprintf("%04d  <end of memory>", pc), 1
	}

	op, err := DecodeWords(words[pc:])
	if err != nil {
		return fmt.Sprintf("%04d  %-20d DATA %d", pc, words[pc], words[pc]), 1
	}

	n := op.Len()
	raw := make([]string, n)
	for i := range raw {
		raw[i] = fmt.Sprint(words[pc+i])
	}
	return fmt.Sprintf("%04d  %-20s %s", pc, strings.Join(raw, ","), op), n
}
