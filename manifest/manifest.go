// Package manifest handles intcode.toml run configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "intcode.toml"

// Defaults applied at load time.
const (
	DefaultSearchMax = 99
	DefaultAddr      = ":8080"
	DefaultStorePath = ".intcode/runs.db"
)

// Manifest represents an intcode.toml configuration.
type Manifest struct {
	Program Program      `toml:"program"`
	Run     RunConfig    `toml:"run"`
	Search  SearchConfig `toml:"search"`
	Server  ServerConfig `toml:"server"`
	Store   StoreConfig  `toml:"store"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the intcode.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program locates the program to run. Text wins over Path when both are set.
type Program struct {
	Path string `toml:"path,omitempty"`
	Text string `toml:"text,omitempty"`
}

// RunConfig configures a single run.
type RunConfig struct {
	Inputs   []int64 `toml:"inputs,omitempty"`
	MaxSteps uint64  `toml:"max-steps,omitempty"`
	Patches  []Patch `toml:"patch,omitempty"`
	Print    []int   `toml:"print,omitempty"`
}

// Patch overwrites one memory cell before the run starts.
type Patch struct {
	Address int   `toml:"address"`
	Value   int64 `toml:"value"`
}

// SearchConfig configures noun/verb searches.
type SearchConfig struct {
	Goal    int64 `toml:"goal,omitempty"`
	Max     int64 `toml:"max,omitempty"`
	Workers int   `toml:"workers,omitempty"`
}

// ServerConfig configures the machine service.
type ServerConfig struct {
	Addr string `toml:"addr,omitempty"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `toml:"path,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int `toml:"verbosity,omitempty"`
}

// Default returns a manifest with every default applied.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Search.Max == 0 {
		m.Search.Max = DefaultSearchMax
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Store.Path == "" {
		m.Store.Path = DefaultStorePath
	}
}

// Load parses an intcode.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the manifest at path. Dir is set to the file's directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	for _, p := range m.Run.Patches {
		if p.Address < 0 {
			return fmt.Errorf("patch address %d is negative", p.Address)
		}
	}
	for _, c := range m.Run.Print {
		if c < 0 {
			return fmt.Errorf("print cell %d is negative", c)
		}
	}
	if m.Search.Max < 0 {
		return fmt.Errorf("search max %d is negative", m.Search.Max)
	}
	return nil
}

// FindAndLoad walks up from startDir to find an intcode.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ErrNoProgram is returned by ProgramText when neither text nor path is set.
var ErrNoProgram = errors.New("manifest: no program configured")

// ProgramPath returns the program path resolved against Dir.
func (m *Manifest) ProgramPath() string {
	if m.Program.Path == "" || filepath.IsAbs(m.Program.Path) {
		return m.Program.Path
	}
	return filepath.Join(m.Dir, m.Program.Path)
}

// ProgramText returns the inline program text, or reads the program file.
func (m *Manifest) ProgramText() (string, error) {
	if m.Program.Text != "" {
		return m.Program.Text, nil
	}
	if m.Program.Path == "" {
		return "", ErrNoProgram
	}
	data, err := os.ReadFile(m.ProgramPath())
	if err != nil {
		return "", fmt.Errorf("cannot read program: %w", err)
	}
	return string(data), nil
}

// StorePath returns the store path resolved against Dir.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// Save writes m as TOML to path, creating parent directories.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}
