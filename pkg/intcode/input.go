package intcode

// Input is a cursor over a finite, caller-supplied sequence of input values.
// Input instructions consume values in order. A nil *Input behaves as an
// empty sequence.
type Input struct {
	values []int64
}

// NewInput returns an Input over a copy of values.
func NewInput(values ...int64) *Input {
	in := &Input{values: make([]int64, len(values))}
	copy(in.values, values)
	return in
}

// Next consumes and returns the next value. ok is false when the sequence is
// exhausted.
func (in *Input) Next() (v int64, ok bool) {
	if in == nil || len(in.values) == 0 {
		return 0, false
	}
	v = in.values[0]
	in.values = in.values[1:]
	return v, true
}

// Push appends values to the end of the sequence. Interactive drivers use it
// to feed one value at a time between steps.
func (in *Input) Push(values ...int64) {
	in.values = append(in.values, values...)
}

// Len returns the number of unconsumed values.
func (in *Input) Len() int {
	if in == nil {
		return 0
	}
	return len(in.values)
}

// Remaining returns a copy of the unconsumed values.
func (in *Input) Remaining() []int64 {
	if in == nil {
		return nil
	}
	out := make([]int64, len(in.values))
	copy(out, in.values)
	return out
}
