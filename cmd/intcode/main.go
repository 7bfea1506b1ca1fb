// Intcode CLI - runs, inspects, searches and serves Intcode programs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/pkg/intcode"
	"github.com/chazu/intcode/pkg/intcode/snapshot"
	"github.com/chazu/intcode/server"
	"github.com/chazu/intcode/store"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("intcode.cli")

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (1 info, 2 debug traces of every step)")
	configPath := flag.String("config", "", "Path to intcode.toml (default: search upwards from the current directory)")
	inline := flag.String("e", "", "Program text given inline instead of a file")
	inputsFlag := flag.String("i", "", "Comma-separated input values")
	patchFlag := flag.String("patch", "", "Cell patches applied before running, e.g. '1=12,2=2'")
	printFlag := flag.String("print", "", "Comma-separated memory cells to print after the run")
	maxSteps := flag.Uint64("max-steps", 0, "Abort after this many instructions (0: unbounded)")
	trace := flag.Bool("trace", false, "Print every instruction as it executes")
	disasm := flag.Bool("disasm", false, "Disassemble the program instead of running it")
	search := flag.Bool("search", false, "Search nouns and verbs for the goal value in cell 0")
	linear := flag.Bool("linear", false, "With -search, solve from three probe runs instead of brute force")
	goal := flag.Int64("goal", 0, "Goal value for -search (default from intcode.toml)")
	searchMax := flag.Int64("max", 0, "Largest noun and verb tried by -search (default 99)")
	workers := flag.Int("workers", 0, "Parallel runs for -search (0: one per CPU)")
	snapshotOut := flag.String("snapshot", "", "Save the machine state to this file after the run")
	resume := flag.String("resume", "", "Resume a machine saved with -snapshot")
	record := flag.Bool("record", false, "Record the run in the history database")
	dbPath := flag.String("db", "", "History database path (default from intcode.toml)")
	history := flag.Int("history", -1, "List the N most recent recorded runs (0: all)")
	serveMode := flag.Bool("serve", false, "Start the machine service (Connect HTTP/JSON + gRPC)")
	addr := flag.String("addr", "", "Machine service address (used with -serve)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")
	initPath := flag.String("init", "", "Write a starter intcode.toml to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: intcode [options] [program-file]\n\n")
		fmt.Fprintf(os.Stderr, "Runs an Intcode program and prints its outputs, one per line.\n")
		fmt.Fprintf(os.Stderr, "Defaults come from the nearest intcode.toml; flags override them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  intcode day05.txt -i 5                     # Run with input 5\n")
		fmt.Fprintf(os.Stderr, "  intcode day02.txt -patch 1=12,2=2 -print 0 # Patch noun/verb, print cell 0\n")
		fmt.Fprintf(os.Stderr, "  intcode day02.txt -search -goal 19690720   # Find noun and verb\n")
		fmt.Fprintf(os.Stderr, "  intcode -e 1002,4,3,4,33 -disasm           # Disassemble inline text\n")
		fmt.Fprintf(os.Stderr, "  intcode prog.txt -max-steps 100 -snapshot s.cbor\n")
		fmt.Fprintf(os.Stderr, "  intcode -resume s.cbor -i 7                # Continue a saved machine\n")
		fmt.Fprintf(os.Stderr, "\nServices:\n")
		fmt.Fprintf(os.Stderr, "  intcode -serve -addr :8080    # Machine service\n")
		fmt.Fprintf(os.Stderr, "  intcode -lsp                  # Language server on stdio\n")
		fmt.Fprintf(os.Stderr, "  intcode -history 10           # Recent recorded runs\n")
	}
	flag.Parse()

	if *initPath != "" {
		if err := manifest.Default().Save(*initPath); err != nil {
			fatal(err)
		}
		fmt.Printf("Wrote %s\n", *initPath)
		return
	}

	cfg, err := loadManifest(*configPath)
	if err != nil {
		fatal(err)
	}
	commonlog.Configure(max(*verbosity, cfg.Log.Verbosity), nil)

	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	// Services
	if *lspMode {
		if err := server.NewLSP().Run(); err != nil {
			fatal(err)
		}
		return
	}
	if *serveMode {
		if err := serve(cfg, *record, *maxSteps); err != nil {
			fatal(err)
		}
		return
	}
	if *history >= 0 {
		if err := listHistory(os.Stdout, cfg, flag.Arg(0), *inline, *history); err != nil {
			fatal(err)
		}
		return
	}

	opts, err := buildRunOptions(cfg, *inputsFlag, *patchFlag, *printFlag, *maxSteps)
	if err != nil {
		fatal(err)
	}
	opts.trace = *trace

	// Load the machine
	var (
		m       *intcode.Machine
		in      *intcode.Input
		program []int64
	)
	if *resume != "" {
		if m, in, err = snapshot.Load(*resume); err != nil {
			fatal(err)
		}
		in.Push(opts.inputs...)
		log.Infof("resumed %s at pc %d", *resume, m.PC())
	} else {
		if program, err = loadProgram(cfg, flag.Arg(0), *inline); err != nil {
			fatal(err)
		}
		m = intcode.New(program)
		in = intcode.NewInput(opts.inputs...)
	}
	for _, p := range opts.patches {
		m.Write(p.Address, p.Value)
	}

	switch {
	case *disasm:
		fmt.Print(m.Disassemble())

	case *search:
		sopts := searchOptions{
			goal:    cfg.Search.Goal,
			max:     cfg.Search.Max,
			workers: cfg.Search.Workers,
			steps:   opts.maxSteps,
			linear:  *linear,
		}
		if isFlagSet("goal") {
			sopts.goal = *goal
		}
		if *searchMax > 0 {
			sopts.max = *searchMax
		}
		if *workers > 0 {
			sopts.workers = *workers
		}
		if err := runSearch(context.Background(), os.Stdout, m, sopts); err != nil {
			fatal(err)
		}

	default:
		image := m.Memory().Words()
		runErr := runProgram(os.Stdout, m, in, opts)

		if *record {
			if err := recordRun(cfg, image, opts.inputs, m, runErr); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: recording run: %v\n", err)
			}
		}
		if *snapshotOut != "" {
			if err := snapshot.Save(*snapshotOut, m, in); err != nil {
				fatal(err)
			}
			log.Infof("saved machine to %s", *snapshotOut)
		}
		if runErr != nil {
			if errors.Is(runErr, intcode.ErrStepLimit) && *snapshotOut != "" {
				fmt.Fprintf(os.Stderr, "Stopped: %v (state saved to %s)\n", runErr, *snapshotOut)
				os.Exit(2)
			}
			fatal(runErr)
		}
	}
}

// loadManifest reads the manifest at path, or the nearest intcode.toml,
// or falls back to defaults.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

// serve runs the machine service until it fails.
func serve(cfg *manifest.Manifest, record bool, maxSteps uint64) error {
	var opts []server.ServerOption
	if maxSteps > 0 {
		opts = append(opts, server.WithStepLimit(maxSteps))
	}
	if record {
		st, err := store.Open(cfg.StorePath())
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, server.WithStore(st))
	}

	srv := server.New(opts...)
	defer srv.Stop()
	return srv.ListenAndServe(cfg.Server.Addr)
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
