package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"breachstudy/internal/enrich"
	"breachstudy/internal/errors"
	"breachstudy/internal/regress"
)

// Store persists run metadata and analysis results in an embedded SQLite
// database, serving the HTTP API without re-reading run directories.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// RunRecord is the stored metadata for one pipeline run
type RunRecord struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Status     string    `json:"status"`
	RowCount   int       `json:"row_count"`
	Error      string    `json:"error,omitempty"`
}

// Run status values
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	error       TEXT
);
CREATE TABLE IF NOT EXISTS estimates (
	run_id   TEXT NOT NULL,
	spec     TEXT NOT NULL,
	variant  TEXT NOT NULL,
	payload  TEXT NOT NULL,
	PRIMARY KEY (run_id, spec, variant),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
CREATE TABLE IF NOT EXISTS attrition (
	run_id  TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Open opens or creates the database at path and applies the schema
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open database", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection pool
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewStorageError("failed to apply schema", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run in running state
func (s *Store) CreateRun(ctx context.Context, runID string, startedAt time.Time, rowCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, status, row_count) VALUES (?, ?, ?, ?)`,
		runID, startedAt.UTC().Format(time.RFC3339), StatusRunning, rowCount)
	if err != nil {
		return errors.NewStorageError("failed to create run "+runID, err)
	}
	return nil
}

// SetRowCount updates a run's sample row count once the dataset is loaded
func (s *Store) SetRowCount(ctx context.Context, runID string, rowCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET row_count = ? WHERE run_id = ?`, rowCount, runID)
	if err != nil {
		return errors.NewStorageError("failed to update row count for run "+runID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NewNotFoundError("run " + runID)
	}
	return nil
}

// FinishRun marks a run completed or failed
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, runErr error) error {
	status := StatusCompleted
	errMsg := ""
	if runErr != nil {
		status = StatusFailed
		errMsg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE run_id = ?`,
		finishedAt.UTC().Format(time.RFC3339), status, errMsg, runID)
	if err != nil {
		return errors.NewStorageError("failed to finish run "+runID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NewNotFoundError("run " + runID)
	}
	return nil
}

// GetRun loads one run's metadata
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, finished_at, status, row_count, error FROM runs WHERE run_id = ?`,
		runID)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("run " + runID)
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to load run "+runID, err)
	}
	return rec, nil
}

// ListRuns returns runs newest first
func (s *Store) ListRuns(ctx context.Context) ([]*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, status, row_count, error FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, errors.NewStorageError("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, errors.NewStorageError("failed to scan run", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var rec RunRecord
	var started string
	var finished, errMsg sql.NullString
	if err := row.Scan(&rec.RunID, &started, &finished, &rec.Status, &rec.RowCount, &errMsg); err != nil {
		return nil, err
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid && finished.String != "" {
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished.String)
	}
	rec.Error = errMsg.String
	return &rec, nil
}

// SaveEstimates persists the fitted models for a run as JSON payloads
func (s *Store) SaveEstimates(ctx context.Context, runID string, estimates []*regress.Estimate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, est := range estimates {
		payload, err := json.Marshal(est)
		if err != nil {
			return errors.NewStorageError("failed to marshal estimate "+est.Spec.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO estimates (run_id, spec, variant, payload) VALUES (?, ?, ?, ?)`,
			runID, est.Spec.Name, est.Variant, string(payload)); err != nil {
			return errors.NewStorageError("failed to save estimate "+est.Spec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit estimates", err)
	}

	s.logger.InfoContext(ctx, "saved estimates",
		slog.String("run_id", runID),
		slog.Int("count", len(estimates)))
	return nil
}

// LoadEstimates returns every fitted model for a run
func (s *Store) LoadEstimates(ctx context.Context, runID string) ([]*regress.Estimate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM estimates WHERE run_id = ? ORDER BY spec, variant`, runID)
	if err != nil {
		return nil, errors.NewStorageError("failed to load estimates for "+runID, err)
	}
	defer rows.Close()

	var estimates []*regress.Estimate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.NewStorageError("failed to scan estimate", err)
		}
		var est regress.Estimate
		if err := json.Unmarshal([]byte(payload), &est); err != nil {
			return nil, errors.NewParsingError("failed to unmarshal estimate", err)
		}
		estimates = append(estimates, &est)
	}
	return estimates, rows.Err()
}

// SaveAttrition persists the attrition audit for a run
func (s *Store) SaveAttrition(ctx context.Context, audit *enrich.AttritionAudit) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		return errors.NewStorageError("failed to marshal attrition audit", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO attrition (run_id, payload) VALUES (?, ?)`,
		audit.RunID, string(payload)); err != nil {
		return errors.NewStorageError("failed to save attrition audit", err)
	}
	return nil
}

// LoadAttrition returns the attrition audit for a run
func (s *Store) LoadAttrition(ctx context.Context, runID string) (*enrich.AttritionAudit, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM attrition WHERE run_id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("attrition audit for run " + runID)
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to load attrition audit", err)
	}
	var audit enrich.AttritionAudit
	if err := json.Unmarshal([]byte(payload), &audit); err != nil {
		return nil, errors.NewParsingError("failed to unmarshal attrition audit", err)
	}
	return &audit, nil
}
