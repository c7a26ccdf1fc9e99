package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/lacunalabels/maskgen/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS mask_results (
	run_id          TEXT NOT NULL,
	idx             INTEGER NOT NULL,
	name            TEXT NOT NULL,
	class           TEXT,
	assignment_id   TEXT,
	labeller        TEXT,
	status          TEXT,
	score           DOUBLE,
	n               DOUBLE,
	area            DOUBLE,
	qscore          DOUBLE,
	rscore          DOUBLE,
	x               DOUBLE,
	y               DOUBLE,
	farea           DOUBLE,
	nflds           DOUBLE,
	image           TEXT,
	chip            TEXT,
	label           TEXT,
	outcome         TEXT NOT NULL,
	error           TEXT,
	field_pixels    INTEGER,
	boundary_pixels INTEGER,
	duration_ms     INTEGER,
	created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (run_id, idx)
);
CREATE INDEX IF NOT EXISTS mask_results_name ON mask_results (name);
`

// SQLiteStore keeps results of every run in one SQLite table.
type SQLiteStore struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// OpenSQLite opens (creating when needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveResults inserts results under runID in a single transaction.
// Saving the same run again replaces its rows.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, results []model.MaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO mask_results (
		run_id, idx, name, class, assignment_id, labeller, status,
		score, n, area, qscore, rscore, x, y, farea, nflds, image, chip,
		label, outcome, error, field_pixels, boundary_pixels, duration_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	defer stmt.Close()

	for i := range results {
		r := &results[i]
		a := &r.Assignment
		if _, err := stmt.ExecContext(ctx,
			runID, r.Index, a.Name, a.Class, a.AssignmentID, a.Labeller, a.Status,
			nullable(a.Score), nullable(a.N), nullable(a.Area), nullable(a.Qscore), nullable(a.Rscore),
			nullable(a.X), nullable(a.Y), nullable(a.FArea), nullable(a.NFlds), a.Image, a.Chip,
			r.MaskPath, string(r.Outcome), r.Err, r.FieldPixels, r.BoundaryPixels, r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrWriteResult, r.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteResult, err)
	}
	return nil
}

// OutcomeCounts returns how many results of runID ended in each outcome.
func (s *SQLiteStore) OutcomeCounts(ctx context.Context, runID string) (map[model.Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT outcome, COUNT(*) FROM mask_results WHERE run_id = ? GROUP BY outcome", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Outcome]int)
	for rows.Next() {
		var o string
		var n int
		if err := rows.Scan(&o, &n); err != nil {
			return nil, err
		}
		out[model.Outcome(o)] = n
	}
	return out, rows.Err()
}

// StoredResult is a row read back from the store.
type StoredResult struct {
	RunID    string
	Index    int
	Name     string
	Outcome  model.Outcome
	Label    string
	Err      string
	Rscore   sql.NullFloat64
	FieldPx  int
	Boundary int
	Duration time.Duration
}

// Results returns the rows of runID ordered by submission index.
func (s *SQLiteStore) Results(ctx context.Context, runID string) ([]StoredResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idx, name, outcome, label, error, rscore,
		duration_ms, field_pixels, boundary_pixels
		FROM mask_results WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		r := StoredResult{RunID: runID}
		var outcome string
		var ms int64
		if err := rows.Scan(&r.Index, &r.Name, &outcome, &r.Label, &r.Err, &r.Rscore,
			&ms, &r.FieldPx, &r.Boundary); err != nil {
			return nil, err
		}
		r.Outcome = model.Outcome(outcome)
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// nullable stores NaN as NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
