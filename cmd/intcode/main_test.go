package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/pkg/intcode"
	"github.com/chazu/intcode/store"
)

func TestParsePatches(t *testing.T) {
	got, err := parsePatches("1=12, 2=2,")
	if err != nil {
		t.Fatalf("parsePatches: %v", err)
	}
	want := []manifest.Patch{{Address: 1, Value: 12}, {Address: 2, Value: 2}}
	if !slices.Equal(got, want) {
		t.Errorf("parsePatches = %v, want %v", got, want)
	}

	for _, bad := range []string{"1", "x=1", "-1=3", "1=y"} {
		if _, err := parsePatches(bad); err == nil {
			t.Errorf("parsePatches(%q) should fail", bad)
		}
	}
}

func TestParseCells(t *testing.T) {
	got, err := parseCells("0, 3")
	if err != nil || !slices.Equal(got, []int{0, 3}) {
		t.Errorf("parseCells = %v, %v, want [0 3]", got, err)
	}
	if _, err := parseCells("0,-2"); err == nil {
		t.Error("negative cell should fail")
	}
}

func TestBuildRunOptionsMergesManifest(t *testing.T) {
	cfg := manifest.Default()
	cfg.Run.Inputs = []int64{1}
	cfg.Run.Patches = []manifest.Patch{{Address: 1, Value: 12}}
	cfg.Run.Print = []int{0}
	cfg.Run.MaxSteps = 500

	opts, err := buildRunOptions(cfg, "", "2=2", "", 0)
	if err != nil {
		t.Fatalf("buildRunOptions: %v", err)
	}
	if !slices.Equal(opts.inputs, []int64{1}) || opts.maxSteps != 500 {
		t.Errorf("opts = %+v, want manifest inputs and max-steps", opts)
	}
	if len(opts.patches) != 2 {
		t.Errorf("patches = %v, want manifest and flag patches", opts.patches)
	}
	if len(cfg.Run.Patches) != 1 {
		t.Error("buildRunOptions modified the manifest")
	}

	opts, err = buildRunOptions(cfg, "7,8", "", "3", 10)
	if err != nil {
		t.Fatalf("buildRunOptions: %v", err)
	}
	if !slices.Equal(opts.inputs, []int64{7, 8}) || !slices.Equal(opts.print, []int{3}) || opts.maxSteps != 10 {
		t.Errorf("opts = %+v, want flag overrides", opts)
	}

	if _, err := buildRunOptions(cfg, "7,,", "", "", 0); err == nil {
		t.Error("bad -i should fail")
	}
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.txt")
	if err := os.WriteFile(path, []byte("1,0,0,0,99\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := manifest.Default()
	cfg.Program.Text = "99"

	tests := []struct {
		name, path, inline string
		want               []int64
	}{
		{"inline wins", path, "104,1,99", []int64{104, 1, 99}},
		{"file", path, "", []int64{1, 0, 0, 0, 99}},
		{"manifest", "", "", []int64{99}},
	}
	for _, tt := range tests {
		got, err := loadProgram(cfg, tt.path, tt.inline)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}

	if _, err := loadProgram(manifest.Default(), "", ""); !errors.Is(err, manifest.ErrNoProgram) {
		t.Errorf("no program err = %v, want ErrNoProgram", err)
	}
}

func TestRunProgramPrintsOutputsAndCells(t *testing.T) {
	var buf bytes.Buffer
	m := intcode.New([]int64{3, 0, 4, 0, 104, -1, 99})
	err := runProgram(&buf, m, intcode.NewInput(55), runOptions{print: []int{0, 6}})
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	want := "55\n-1\n[0] = 55\n[6] = 99\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestRunProgramStepLimit(t *testing.T) {
	var buf bytes.Buffer
	m := intcode.New([]int64{104, 1, 1105, 1, 0})
	err := runProgram(&buf, m, nil, runOptions{maxSteps: 5})
	if !errors.Is(err, intcode.ErrStepLimit) {
		t.Fatalf("err = %v, want ErrStepLimit", err)
	}
	// OUT, JT, OUT, JT, OUT
	if buf.String() != "1\n1\n1\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTraceRun(t *testing.T) {
	var buf bytes.Buffer
	m := intcode.New([]int64{1101, 2, 3, 0, 99})
	if err := runProgram(&buf, m, nil, runOptions{trace: true}); err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("trace = %q, want 2 lines", buf.String())
	}
	if !strings.Contains(lines[0], "ADD #2 #3 -> [0]") || !strings.Contains(lines[1], "HALT") {
		t.Errorf("trace = %q", buf.String())
	}
}

func TestRunSearch(t *testing.T) {
	// Cell 0 ends as noun * 100 + verb.
	program := []int64{
		1, 0, 0, 3,
		1002, 1, 100, 13, // [13] = [1] * 100
		1, 13, 2, 0,      // [0] = [13] + [2]
		99, 0,
	}
	for _, linear := range []bool{false, true} {
		var buf bytes.Buffer
		err := runSearch(context.Background(), &buf, intcode.New(program), searchOptions{
			goal:   1234,
			max:    99,
			linear: linear,
		})
		if err != nil {
			t.Fatalf("runSearch(linear=%v): %v", linear, err)
		}
		if got := buf.String(); got != "noun=12 verb=34 answer=1234\n" {
			t.Errorf("runSearch(linear=%v) = %q", linear, got)
		}
	}
}

func TestHistory(t *testing.T) {
	cfg := manifest.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")

	program := []int64{1101, 20, 22, 0, 99}
	m := intcode.New(program)
	_, runErr := m.Run(nil)
	if err := recordRun(cfg, program, nil, m, runErr); err != nil {
		t.Fatalf("recordRun: %v", err)
	}

	var buf bytes.Buffer
	if err := listHistory(&buf, cfg, "", "1101,20,22,0,99", 0); err != nil {
		t.Fatalf("listHistory: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "halted") || !strings.Contains(out, intcode.Fingerprint(program)[:12]) {
		t.Errorf("history = %q", out)
	}

	buf.Reset()
	if err := listHistory(&buf, cfg, "", "99", 0); err != nil {
		t.Fatalf("listHistory: %v", err)
	}
	if strings.Contains(buf.String(), "halted") {
		t.Errorf("history for another program = %q, want header only", buf.String())
	}
}

func TestWriteHistoryAbbreviatesOutputs(t *testing.T) {
	outputs := make([]int64, 30)
	for i := range outputs {
		outputs[i] = int64(i * 1000)
	}
	var buf bytes.Buffer
	err := writeHistory(&buf, []store.Run{{
		ID:          "r1",
		Fingerprint: "abcdef0123456789",
		Status:      store.StatusHalted,
		Outputs:     outputs,
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("writeHistory: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "abcdef012345 ") || !strings.Contains(out, "...") {
		t.Errorf("history = %q", out)
	}
}
