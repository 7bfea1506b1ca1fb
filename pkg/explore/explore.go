package explore

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/intcode/pkg/intcode"
)

// ErrNotFound is returned when no candidate satisfies a search.
var ErrNotFound = errors.New("explore: no candidate found")

// Probe runs one candidate against its own clone of the base machine. It
// reports whether the candidate is accepted. Errors from the machine mark the
// candidate as invalid; return them rather than handling them.
type Probe[C any] func(m *intcode.Machine, candidate C) (bool, error)

// Options controls a fan-out.
type Options struct {
	// Workers bounds the number of concurrent probes. Zero means GOMAXPROCS.
	Workers int

	// MaxSteps bounds every run made by the helpers in this package.
	// Zero means unbounded.
	MaxSteps uint64
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Result is the outcome of one candidate.
type Result[C any] struct {
	Candidate C
	Accepted  bool
	Err       error
}

// Map runs probe for every candidate on a fresh clone of base and returns
// the results in candidate order. It stops early only when ctx is cancelled.
func Map[C any](ctx context.Context, base *intcode.Machine, candidates []C, probe Probe[C], opts Options) ([]Result[C], error) {
	results := make([]Result[C], len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := probe(base.Clone(), c)
			results[i] = Result[C]{Candidate: c, Accepted: ok && err == nil, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// First returns the first candidate, in candidate order, that probe accepts.
// Probes for later candidates are cancelled once a match is known.
func First[C any](ctx context.Context, base *intcode.Machine, candidates []C, probe Probe[C], opts Options) (C, error) {
	var (
		mu   sync.Mutex
		best = -1
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, c := range candidates {
		mu.Lock()
		done := best >= 0 && best < i
		mu.Unlock()
		if done || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			mu.Lock()
			skip := best >= 0 && best < i
			mu.Unlock()
			if skip || gctx.Err() != nil {
				return nil
			}
			ok, err := probe(base.Clone(), c)
			if err != nil || !ok {
				return nil
			}
			mu.Lock()
			if best < 0 || i < best {
				best = i
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var zero C
		return zero, err
	}

	var zero C
	if err := ctx.Err(); err != nil && best < 0 {
		return zero, err
	}
	if best < 0 {
		return zero, ErrNotFound
	}
	return candidates[best], nil
}

// run executes m to completion, bounded by maxSteps when non-zero.
func run(m *intcode.Machine, in *intcode.Input, maxSteps uint64) ([]int64, error) {
	if maxSteps > 0 {
		return m.RunLimit(in, maxSteps)
	}
	return m.Run(in)
}
