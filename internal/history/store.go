// Package history records cipher runs in SQLite. Only metadata is kept: the
// seed, direction, table fingerprint and byte counts. Message text is never
// stored.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/RowanDark/subcipher/internal/observability/metrics"
	"github.com/RowanDark/subcipher/internal/subst"
)

const defaultListLimit = 50

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Source names where a run came from.
type Source string

const (
	SourceCLI    Source = "cli"
	SourceAPI    Source = "api"
	SourceRecipe Source = "recipe"
)

// Entry is one recorded run.
type Entry struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Seed        int64      `json:"seed"`
	Mode        subst.Mode `json:"mode"`
	Reserved    bool       `json:"reserved"`
	Fingerprint string     `json:"fingerprint"`
	InputBytes  int        `json:"input_bytes"`
	OutputBytes int        `json:"output_bytes"`
	Source      Source     `json:"source"`
	Recipe      string     `json:"recipe,omitempty"`
}

// NewEntry fills an Entry from the cipher that performed a run.
func NewEntry(c *subst.Cipher, mode subst.Mode, source Source, inputBytes, outputBytes int) Entry {
	return Entry{
		Seed:        c.Seed(),
		Mode:        mode,
		Reserved:    c.Reserved(),
		Fingerprint: c.Fingerprint(),
		InputBytes:  inputBytes,
		OutputBytes: outputBytes,
		Source:      source,
	}
}

// Store persists run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts e, assigning an ID and timestamp when unset, and returns the
// stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if e.Source == "" {
		e.Source = SourceCLI
	}

	var recipe any
	if e.Recipe != "" {
		recipe = e.Recipe
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO runs (
            id, created_at, seed, mode, reserved, fingerprint,
            input_bytes, output_bytes, source, recipe
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, e.ID, e.CreatedAt.Format(timeLayout), e.Seed, string(e.Mode), e.Reserved,
		e.Fingerprint, e.InputBytes, e.OutputBytes, string(e.Source), recipe)
	metrics.RecordHistory(err)
	if err != nil {
		return Entry{}, fmt.Errorf("record run: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. A non-positive limit uses
// a default of 50.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, created_at, seed, mode, reserved, fingerprint,
               input_bytes, output_bytes, source, recipe
        FROM runs
        ORDER BY created_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt string
			mode      string
			source    string
			recipe    sql.NullString
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Seed, &mode, &e.Reserved, &e.Fingerprint,
			&e.InputBytes, &e.OutputBytes, &source, &recipe); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", e.ID, err)
		}
		e.Mode = subst.Mode(mode)
		e.Source = Source(source)
		e.Recipe = recipe.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
