package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/pkg/explore"
	"github.com/chazu/intcode/pkg/intcode"
	"github.com/chazu/intcode/store"
)

// runOptions is the merged manifest and flag configuration of a run.
type runOptions struct {
	inputs   []int64
	patches  []manifest.Patch
	print    []int
	maxSteps uint64
	trace    bool
}

// buildRunOptions merges manifest settings with flag values. Non-empty
// flags replace the manifest's inputs and print cells; patches accumulate.
func buildRunOptions(cfg *manifest.Manifest, inputs, patches, printCells string, maxSteps uint64) (runOptions, error) {
	opts := runOptions{
		inputs:   cfg.Run.Inputs,
		patches:  append([]manifest.Patch(nil), cfg.Run.Patches...),
		print:    cfg.Run.Print,
		maxSteps: cfg.Run.MaxSteps,
	}
	if inputs != "" {
		words, err := intcode.Parse(inputs)
		if err != nil {
			return runOptions{}, fmt.Errorf("-i: %w", err)
		}
		opts.inputs = words
	}
	if patches != "" {
		ps, err := parsePatches(patches)
		if err != nil {
			return runOptions{}, err
		}
		opts.patches = append(opts.patches, ps...)
	}
	if printCells != "" {
		cells, err := parseCells(printCells)
		if err != nil {
			return runOptions{}, err
		}
		opts.print = cells
	}
	if maxSteps > 0 {
		opts.maxSteps = maxSteps
	}
	return opts, nil
}

// parsePatches parses "addr=value" pairs separated by commas.
func parsePatches(s string) ([]manifest.Patch, error) {
	var patches []manifest.Patch
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("-patch: %q is not addr=value", part)
		}
		a, err := strconv.Atoi(strings.TrimSpace(addr))
		if err != nil || a < 0 {
			return nil, fmt.Errorf("-patch: bad address %q", addr)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("-patch: bad value %q", value)
		}
		patches = append(patches, manifest.Patch{Address: a, Value: v})
	}
	return patches, nil
}

// parseCells parses a comma-separated list of memory addresses.
func parseCells(s string) ([]int, error) {
	var cells []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := strconv.Atoi(part)
		if err != nil || c < 0 {
			return nil, fmt.Errorf("-print: bad cell %q", part)
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// loadProgram reads the program from inline text, a file argument ("-" for
// stdin) or the manifest, in that order of preference.
func loadProgram(cfg *manifest.Manifest, path, inline string) ([]int64, error) {
	switch {
	case inline != "":
		return intcode.Parse(inline)
	case path == "-":
		return intcode.ParseReader(os.Stdin)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		words, err := intcode.ParseReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return words, nil
	}

	text, err := cfg.ProgramText()
	if err != nil {
		return nil, fmt.Errorf("no program given: %w", err)
	}
	return intcode.Parse(text)
}

// runProgram runs m and writes its outputs, one per line, followed by the
// requested memory cells.
func runProgram(w io.Writer, m *intcode.Machine, in *intcode.Input, opts runOptions) error {
	var err error
	switch {
	case opts.trace:
		err = traceRun(w, m, in, opts.maxSteps)
	case opts.maxSteps > 0:
		_, err = m.RunLimit(in, opts.maxSteps)
	default:
		_, err = m.Run(in)
	}

	for _, v := range m.Outputs() {
		fmt.Fprintln(w, v)
	}
	for _, c := range opts.print {
		fmt.Fprintf(w, "[%d] = %d\n", c, m.Read(c))
	}
	return err
}

// traceRun steps m, printing each instruction before it executes.
func traceRun(w io.Writer, m *intcode.Machine, in *intcode.Input, maxSteps uint64) error {
	for n := uint64(0); maxSteps == 0 || n < maxSteps; n++ {
		if !m.Halted() {
			line, _ := intcode.DisassembleAt(m.Memory().Words(), m.PC())
			fmt.Fprintf(w, "; %s\n", line)
		}
		if err := m.Step(in); err != nil {
			if intcode.IsEnd(err) {
				return nil
			}
			return err
		}
	}
	if m.Halted() {
		return nil
	}
	return fmt.Errorf("%w: %d steps", intcode.ErrStepLimit, maxSteps)
}

type searchOptions struct {
	goal    int64
	max     int64
	workers int
	steps   uint64
	linear  bool
}

// runSearch finds the noun and verb producing goal and prints them with
// 100*noun+verb.
func runSearch(ctx context.Context, w io.Writer, m *intcode.Machine, opts searchOptions) error {
	var (
		nv  explore.NounVerb
		err error
	)
	if opts.linear {
		nv, err = explore.SolveLinear(m, opts.goal, opts.steps)
	} else {
		nv, err = explore.SearchNounVerb(ctx, m, opts.goal, opts.max, explore.Options{
			Workers:  opts.workers,
			MaxSteps: opts.steps,
		})
	}
	if err != nil {
		return fmt.Errorf("search for %d: %w", opts.goal, err)
	}
	fmt.Fprintf(w, "noun=%d verb=%d answer=%d\n", nv.Noun, nv.Verb, nv.Code())
	return nil
}

// recordRun saves a finished run to the history database.
func recordRun(cfg *manifest.Manifest, image, inputs []int64, m *intcode.Machine, runErr error) error {
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.Record(context.Background(), store.NewRun(image, inputs, m, runErr))
	if err != nil {
		return err
	}
	log.Infof("recorded run %s", run.ID)
	return nil
}

// listHistory prints recorded runs, newest first. When a program is given
// only its runs are listed.
func listHistory(w io.Writer, cfg *manifest.Manifest, path, inline string, limit int) error {
	fingerprint := ""
	if path != "" || inline != "" {
		program, err := loadProgram(cfg, path, inline)
		if err != nil {
			return err
		}
		fingerprint = intcode.Fingerprint(program)
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(context.Background(), fingerprint, limit)
	if err != nil {
		return err
	}
	return writeHistory(w, runs)
}

func writeHistory(w io.Writer, runs []store.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tPROGRAM\tSTATUS\tSTEPS\tCELL0\tOUTPUTS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%.12s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Fingerprint,
			r.Status, r.Steps, r.Cell0, abbreviate(intcode.Format(r.Outputs), 40))
	}
	return tw.Flush()
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
