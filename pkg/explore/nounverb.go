package explore

import (
	"context"
	"fmt"

	"github.com/chazu/intcode/pkg/intcode"
)

// Cells patched by noun/verb searches.
const (
	NounAddr = 1
	VerbAddr = 2
)

// NounVerb is a pair of initial values for memory cells 1 and 2.
type NounVerb struct {
	Noun int64
	Verb int64
}

// Code returns 100*noun + verb.
func (nv NounVerb) Code() int64 {
	return 100*nv.Noun + nv.Verb
}

// Apply patches cells 1 and 2 of m.
func (nv NounVerb) Apply(m *intcode.Machine) {
	m.Write(NounAddr, nv.Noun)
	m.Write(VerbAddr, nv.Verb)
}

// RunPatched applies nv to m, runs it with no input and returns cell 0.
func RunPatched(m *intcode.Machine, nv NounVerb, maxSteps uint64) (int64, error) {
	nv.Apply(m)
	if _, err := run(m, nil, maxSteps); err != nil {
		return 0, err
	}
	return m.Read(0), nil
}

// SearchNounVerb tries every noun and verb in [0, max] in parallel and
// returns the pair whose run leaves goal in cell 0. Ties resolve to the
// smallest noun, then the smallest verb.
func SearchNounVerb(ctx context.Context, base *intcode.Machine, goal int64, max int64, opts Options) (NounVerb, error) {
	if max < 0 {
		return NounVerb{}, fmt.Errorf("explore: negative search bound %d", max)
	}
	candidates := make([]NounVerb, 0, (max+1)*(max+1))
	for noun := int64(0); noun <= max; noun++ {
		for verb := int64(0); verb <= max; verb++ {
			candidates = append(candidates, NounVerb{Noun: noun, Verb: verb})
		}
	}

	return First(ctx, base, candidates, func(m *intcode.Machine, nv NounVerb) (bool, error) {
		got, err := RunPatched(m, nv, opts.MaxSteps)
		if err != nil {
			return false, err
		}
		return got == goal, nil
	}, opts)
}

// SolveLinear finds the noun/verb pair for goal by probing three points,
// assuming cell 0 is an affine function of noun and verb (as it is for
// programs built only from additions and multiplications by constants):
//
//	out(n, v) = out(0,0) + n*dn + v*dv
//
// The result is verified with a final run.
func SolveLinear(base *intcode.Machine, goal int64, maxSteps uint64) (NounVerb, error) {
	probe := func(nv NounVerb) (int64, error) {
		v, err := RunPatched(base.Clone(), nv, maxSteps)
		if err != nil {
			return 0, fmt.Errorf("explore: probe %+v: %w", nv, err)
		}
		return v, nil
	}

	n0, err := probe(NounVerb{0, 0})
	if err != nil {
		return NounVerb{}, err
	}
	n1, err := probe(NounVerb{1, 0})
	if err != nil {
		return NounVerb{}, err
	}
	v1, err := probe(NounVerb{0, 1})
	if err != nil {
		return NounVerb{}, err
	}

	dn, dv := n1-n0, v1-n0
	if dn == 0 || dv == 0 {
		return NounVerb{}, fmt.Errorf("%w: output does not depend on both noun and verb", ErrNotFound)
	}

	noun := (goal - n0) / dn
	verb := (goal - n0 - dn*noun) / dv
	nv := NounVerb{Noun: noun, Verb: verb}

	got, err := probe(nv)
	if err != nil {
		return NounVerb{}, err
	}
	if got != goal {
		return NounVerb{}, fmt.Errorf("%w: linear solution %+v gives %d, want %d", ErrNotFound, nv, got, goal)
	}
	return nv, nil
}
