package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded search.
type Run struct {
	ID           string
	Source       string // maze file path or "http"
	Digest       string
	Outcome      string
	VisitedNodes int
	ClaimedNodes int
	TasksCreated int
	PathLength   int
	Elapsed      time.Duration
	CreatedAt    time.Time
}

// Store persists search runs.
type Store interface {
	SaveRun(run Run) error
	ListRuns(limit int) ([]Run, error)
	Close() error
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	digest        TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	visited_nodes INTEGER NOT NULL,
	claimed_nodes INTEGER NOT NULL,
	tasks_created INTEGER NOT NULL,
	path_length   INTEGER NOT NULL,
	elapsed_us    INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Open opens or creates a SQLite DB at path and creates the schema.
// Creates the parent directory if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SqlStore{db: db}, nil
}

// SaveRun inserts run. A zero CreatedAt is set to now.
func (s *SqlStore) SaveRun(run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, source, digest, outcome, visited_nodes, claimed_nodes,
			tasks_created, path_length, elapsed_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Digest, run.Outcome, run.VisitedNodes, run.ClaimedNodes,
		run.TasksCreated, run.PathLength, run.Elapsed.Microseconds(),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (s *SqlStore) ListRuns(limit int) ([]Run, error) {
	query := `SELECT id, source, digest, outcome, visited_nodes, claimed_nodes,
		tasks_created, path_length, elapsed_us, created_at
		FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			elapsedUS int64
			createdAt string
		)
		if err := rows.Scan(&run.ID, &run.Source, &run.Digest, &run.Outcome, &run.VisitedNodes,
			&run.ClaimedNodes, &run.TasksCreated, &run.PathLength, &elapsedUS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Elapsed = time.Duration(elapsedUS) * time.Microsecond
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *SqlStore) Close() error {
	return s.db.Close()
}
