package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[program]
path = "day02.txt"

[run]
inputs = [1, -5]
max-steps = 10000
print = [0, 3]

[[run.patch]]
address = 1
value = 12

[[run.patch]]
address = 2
value = 2

[search]
goal = 19690720
max = 50
workers = 4

[server]
addr = "127.0.0.1:9000"

[store]
path = "runs.db"

[log]
verbosity = 2
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Program.Path != "day02.txt" {
		t.Errorf("program path = %q, want day02.txt", m.Program.Path)
	}
	if len(m.Run.Inputs) != 2 || m.Run.Inputs[1] != -5 {
		t.Errorf("run inputs = %v, want [1 -5]", m.Run.Inputs)
	}
	if m.Run.MaxSteps != 10000 {
		t.Errorf("max-steps = %d, want 10000", m.Run.MaxSteps)
	}
	if len(m.Run.Patches) != 2 || m.Run.Patches[0] != (Patch{Address: 1, Value: 12}) {
		t.Errorf("patches = %v, want [{1 12} {2 2}]", m.Run.Patches)
	}
	if len(m.Run.Print) != 2 || m.Run.Print[1] != 3 {
		t.Errorf("print = %v, want [0 3]", m.Run.Print)
	}
	if m.Search.Goal != 19690720 || m.Search.Max != 50 || m.Search.Workers != 4 {
		t.Errorf("search = %+v", m.Search)
	}
	if m.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("server addr = %q, want 127.0.0.1:9000", m.Server.Addr)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got, want := m.StorePath(), filepath.Join(m.Dir, "runs.db"); got != want {
		t.Errorf("StorePath = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[program]
text = "1,0,0,0,99"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Search.Max != DefaultSearchMax {
		t.Errorf("search max = %d, want %d", m.Search.Max, DefaultSearchMax)
	}
	if m.Server.Addr != DefaultAddr {
		t.Errorf("server addr = %q, want %q", m.Server.Addr, DefaultAddr)
	}
	if m.Store.Path != DefaultStorePath {
		t.Errorf("store path = %q, want %q", m.Store.Path, DefaultStorePath)
	}
	if m.Run.MaxSteps != 0 {
		t.Errorf("max-steps = %d, want 0", m.Run.MaxSteps)
	}
}

func TestLoadManifestRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[run]
max_steps = 10
`)
	if _, err := Load(dir); err == nil {
		t.Error("Load accepted an unknown key")
	}
}

func TestLoadManifestRejectsNegativeCells(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[[run.patch]]
address = -1
value = 3
`)
	if _, err := Load(dir); err == nil {
		t.Error("Load accepted a negative patch address")
	}
}

func TestProgramText(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "prog.txt"), []byte("3,0,4,0,99\n"), 0644); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `
[program]
path = "prog.txt"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	text, err := m.ProgramText()
	if err != nil {
		t.Fatalf("ProgramText: %v", err)
	}
	if text != "3,0,4,0,99\n" {
		t.Errorf("ProgramText = %q", text)
	}

	m.Program.Text = "99"
	if text, _ := m.ProgramText(); text != "99" {
		t.Errorf("inline text = %q, want 99", text)
	}

	if _, err := Default().ProgramText(); !errors.Is(err, ErrNoProgram) {
		t.Errorf("empty manifest err = %v, want ErrNoProgram", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[search]
goal = 42
`)
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Search.Goal != 42 {
		t.Errorf("search goal = %d, want 42", m.Search.Goal)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad = %+v, want nil", m)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Default()
	m.Program.Path = "input.txt"
	m.Run.Inputs = []int64{5}
	m.Run.Patches = []Patch{{Address: 1, Value: 12}}

	path := filepath.Join(dir, "nested", FileName)
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Program.Path != "input.txt" {
		t.Errorf("program path = %q, want input.txt", loaded.Program.Path)
	}
	if len(loaded.Run.Patches) != 1 || loaded.Run.Patches[0].Value != 12 {
		t.Errorf("patches = %v", loaded.Run.Patches)
	}
	if loaded.Server.Addr != DefaultAddr {
		t.Errorf("server addr = %q, want %q", loaded.Server.Addr, DefaultAddr)
	}
}
