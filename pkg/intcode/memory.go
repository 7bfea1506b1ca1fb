package intcode

import "fmt"

// Memory is a flat, zero-indexed store of int64 cells. It is conceptually
// unbounded: cells past the end read as zero and writes past the end grow the
// backing slice. Memory never shrinks.
type Memory struct {
	cells []int64
}

// NewMemory returns memory initialised with a copy of words.
func NewMemory(words []int64) *Memory {
	cells := make([]int64, len(words))
	copy(cells, words)
	return &Memory{cells: cells}
}

// Len returns the current extent of memory.
func (m *Memory) Len() int {
	return len(m.cells)
}

// Read returns the cell at i, or 0 when i is past the end.
// Panics if i is negative.
func (m *Memory) Read(i int) int64 {
	if i < 0 {
		panic(fmt.Sprintf("intcode: negative memory index %d", i))
	}
	if i >= len(m.cells) {
		return 0
	}
	return m.cells[i]
}

// Write stores v at i, growing memory with zero fill if needed.
// Panics if i is negative.
func (m *Memory) Write(i int, v int64) {
	if i < 0 {
		panic(fmt.Sprintf("intcode: negative memory index %d", i))
	}
	m.grow(i + 1)
	m.cells[i] = v
}

func (m *Memory) grow(size int) {
	if size > len(m.cells) {
		m.cells = append(m.cells, make([]int64, size-len(m.cells))...)
	}
}

// Words returns a copy of the memory contents.
func (m *Memory) Words() []int64 {
	out := make([]int64, len(m.cells))
	copy(out, m.cells)
	return out
}

// window returns the live cells from i to the end. Callers must not retain
// or modify the result.
func (m *Memory) window(i int) []int64 {
	if i >= len(m.cells) {
		return nil
	}
	return m.cells[i:]
}

// Clone returns an independent copy.
func (m *Memory) Clone() *Memory {
	return NewMemory(m.cells)
}
