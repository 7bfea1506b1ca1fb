package explore

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/intcode/pkg/intcode"
)

// ErrNoOutput is returned when a program halts without producing output.
var ErrNoOutput = errors.New("explore: program produced no output")

// Diagnostic runs a clone of base with the given inputs and returns the last
// output value, the convention of test-and-report programs.
func Diagnostic(base *intcode.Machine, maxSteps uint64, inputs ...int64) (int64, error) {
	m := base.Clone()
	out, err := run(m, intcode.NewInput(inputs...), maxSteps)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, ErrNoOutput
	}
	return out[len(out)-1], nil
}

// FirstOutput runs a clone of base until it emits one value.
func FirstOutput(base *intcode.Machine, inputs ...int64) (int64, error) {
	v, err := base.Clone().RunUntilOutput(intcode.NewInput(inputs...))
	if intcode.IsEnd(err) {
		return 0, ErrNoOutput
	}
	return v, err
}

// Sweep runs base once per input value in parallel and returns the outputs
// of each run, in input order. Runs that fault report their error in the
// result instead of failing the sweep.
func Sweep(ctx context.Context, base *intcode.Machine, inputs []int64, opts Options) ([]Result[int64], [][]int64, error) {
	outputs := make([][]int64, len(inputs))
	type job struct {
		pos   int
		input int64
	}
	jobs := make([]job, len(inputs))
	for i, v := range inputs {
		jobs[i] = job{pos: i, input: v}
	}

	results, err := Map(ctx, base, jobs, func(m *intcode.Machine, j job) (bool, error) {
		out, err := run(m, intcode.NewInput(j.input), opts.MaxSteps)
		if err != nil {
			return false, fmt.Errorf("input %d: %w", j.input, err)
		}
		outputs[j.pos] = out
		return true, nil
	}, opts)
	if err != nil {
		return nil, nil, err
	}

	flat := make([]Result[int64], len(results))
	for i, r := range results {
		flat[i] = Result[int64]{Candidate: r.Candidate.input, Accepted: r.Accepted, Err: r.Err}
	}
	return flat, outputs, nil
}
