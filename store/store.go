// Package store keeps a SQLite history of Intcode runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/intcode/pkg/intcode"
)

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Status is the outcome of a recorded run.
type Status string

const (
	StatusHalted Status = "halted"
	StatusFault  Status = "fault"
	StatusLimit  Status = "limit"
)

// Run is one recorded execution.
type Run struct {
	ID          string
	Fingerprint string
	Program     []int64
	Inputs      []int64
	Outputs     []int64
	Cell0       int64
	Steps       uint64
	Status      Status
	Error       string
	CreatedAt   time.Time
}

// NewRun builds a Run record from a finished machine. The program is the
// image the machine was created from; runErr is what Run returned.
func NewRun(program, inputs []int64, m *intcode.Machine, runErr error) Run {
	r := Run{
		Fingerprint: intcode.Fingerprint(program),
		Program:     program,
		Inputs:      inputs,
		Outputs:     m.Outputs(),
		Cell0:       m.Read(0),
		Steps:       m.Steps(),
		Status:      StatusHalted,
	}
	switch {
	case runErr == nil:
	case errors.Is(runErr, intcode.ErrStepLimit):
		r.Status = StatusLimit
		r.Error = runErr.Error()
	default:
		r.Status = StatusFault
		r.Error = runErr.Error()
	}
	return r
}

// Store handles SQLite storage for runs.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	program TEXT NOT NULL,
	inputs TEXT NOT NULL,
	outputs TEXT NOT NULL,
	cell0 INTEGER NOT NULL,
	steps INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_fingerprint ON runs (fingerprint, created_at)`

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record saves r, assigning an ID and timestamp when they are empty. It
// returns the stored record.
func (s *Store) Record(ctx context.Context, r Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Fingerprint == "" {
		r.Fingerprint = intcode.Fingerprint(r.Program)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, fingerprint, program, inputs, outputs, cell0, steps, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Fingerprint, intcode.Format(r.Program), intcode.Format(r.Inputs), intcode.Format(r.Outputs),
		r.Cell0, int64(r.Steps), string(r.Status), r.Error, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("saving run: %w", err)
	}
	return r, nil
}

const columns = `id, fingerprint, program, inputs, outputs, cell0, steps, status, error, created_at`

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	return r, nil
}

// List returns the most recent runs first. An empty fingerprint lists runs of
// every program; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, fingerprint string, limit int) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if fingerprint != "" {
		where = append(where, "fingerprint = ?")
		args = append(args, fingerprint)
	}
	query := "SELECT " + columns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                        Run
		program, inputs, outputs string
		status                   string
		steps, created           int64
	)
	if err := sc.Scan(&r.ID, &r.Fingerprint, &program, &inputs, &outputs,
		&r.Cell0, &steps, &status, &r.Error, &created); err != nil {
		return Run{}, err
	}

	var err error
	if r.Program, err = parseWords(program); err != nil {
		return Run{}, fmt.Errorf("run %s program: %w", r.ID, err)
	}
	if r.Inputs, err = parseWords(inputs); err != nil {
		return Run{}, fmt.Errorf("run %s inputs: %w", r.ID, err)
	}
	if r.Outputs, err = parseWords(outputs); err != nil {
		return Run{}, fmt.Errorf("run %s outputs: %w", r.ID, err)
	}
	r.Steps = uint64(steps)
	r.Status = Status(status)
	r.CreatedAt = time.Unix(0, created)
	return r, nil
}

// parseWords reads a Format'ed list. Empty lists are stored as "".
func parseWords(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	return intcode.Parse(s)
}
