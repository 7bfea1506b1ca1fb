package intcode

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SyntaxError reports malformed program text.
type SyntaxError struct {
	Offset int // Byte offset of the offending token
	Line   int // 1-based
	Column int // 1-based, in bytes
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("intcode: %d:%d: %s", e.Line, e.Column, e.Msg)
}

// Parse reads program text: signed decimal integers, each optionally
// followed by a comma and whitespace, e.g. "1,9,10,3,2,3,11,0,99,30,40,50".
// At least one integer is required.
func Parse(text string) ([]int64, error) {
	var words []int64
	i := skipSpace(text, 0)
	for i < len(text) {
		start := i
		if text[i] == '-' || text[i] == '+' {
			i++
		}
		digits := i
		for i < len(text) && text[i] >= '0' && text[i] <= '9' {
			i++
		}
		if i == digits {
			return nil, syntaxError(text, start, fmt.Sprintf("expected integer, found %q", tokenAt(text, start)))
		}
		v, err := strconv.ParseInt(text[start:i], 10, 64)
		if err != nil {
			return nil, syntaxError(text, start, fmt.Sprintf("integer %s out of range", text[start:i]))
		}
		words = append(words, v)

		if i < len(text) && text[i] == ',' {
			i++
		}
		i = skipSpace(text, i)
	}
	if len(words) == 0 {
		return nil, syntaxError(text, len(text), "empty program")
	}
	return words, nil
}

// ParseReader reads all of r and parses it as program text.
func ParseReader(r io.Reader) ([]int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading program: %w", err)
	}
	return Parse(string(data))
}

// Format renders words as canonical program text.
func Format(words []int64) string {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(w, 10))
	}
	return sb.String()
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			i++
		default:
			return i
		}
	}
	return i
}

func tokenAt(text string, i int) string {
	end := i
	for end < len(text) && end-i < 16 {
		c := text[end]
		if c == ',' || c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			break
		}
		end++
	}
	if end == i && i < len(text) {
		end = i + 1
	}
	return text[i:end]
}

func syntaxError(text string, offset int, msg string) *SyntaxError {
	line, col := 1, 1
	for _, c := range []byte(text[:offset]) {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{Offset: offset, Line: line, Column: col, Msg: msg}
}
