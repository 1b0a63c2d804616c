package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"

	_ "modernc.org/sqlite"
)

// SQLiteRunLedger keeps one row per training run in a local SQLite file.
// Timestamps are stored as unix seconds.
type SQLiteRunLedger struct {
	db *sql.DB
	mu sync.Mutex
}

var _ domrepo.RunLedger = (*SQLiteRunLedger)(nil)

// NewSQLiteRunLedger opens (or creates) the ledger database at path.
func NewSQLiteRunLedger(path string) (*SQLiteRunLedger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	return &SQLiteRunLedger{db: db}, nil
}

func (r *SQLiteRunLedger) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS training_runs (
			id            TEXT PRIMARY KEY,
			ticker        TEXT NOT NULL,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER,
			status        TEXT NOT NULL,
			observations  INTEGER,
			train_samples INTEGER,
			test_samples  INTEGER,
			epochs_run    INTEGER,
			best_val_loss REAL,
			test_loss     REAL,
			test_mae      REAL,
			error         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON training_runs(started_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRunLedger) Start(ctx context.Context, run *models.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, ticker, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Ticker, run.StartedAt.Unix(), string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (r *SQLiteRunLedger) Finish(ctx context.Context, run *models.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE training_runs SET
			finished_at = ?, status = ?, observations = ?, train_samples = ?,
			test_samples = ?, epochs_run = ?, best_val_loss = ?, test_loss = ?,
			test_mae = ?, error = ?
		WHERE id = ?`,
		finished.Unix(), string(run.Status), run.Observations, run.TrainSamples,
		run.TestSamples, run.EpochsRun, run.BestValLoss, run.TestLoss,
		run.TestMAE, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: no such run", run.ID)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (r *SQLiteRunLedger) Recent(ctx context.Context, limit int) ([]models.TrainingRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ticker, started_at, finished_at, status,
			COALESCE(observations, 0), COALESCE(train_samples, 0), COALESCE(test_samples, 0),
			COALESCE(epochs_run, 0), COALESCE(best_val_loss, 0), COALESCE(test_loss, 0),
			COALESCE(test_mae, 0), COALESCE(error, '')
		FROM training_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []models.TrainingRun
	for rows.Next() {
		var (
			run      models.TrainingRun
			started  int64
			finished sql.NullInt64
			status   string
		)
		if err := rows.Scan(&run.ID, &run.Ticker, &started, &finished, &status,
			&run.Observations, &run.TrainSamples, &run.TestSamples,
			&run.EpochsRun, &run.BestValLoss, &run.TestLoss,
			&run.TestMAE, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			run.FinishedAt = &t
		}
		run.Status = models.RunStatus(status)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *SQLiteRunLedger) Close() error {
	return r.db.Close()
}

// NoopRunLedger discards runs. Used when no ledger path is configured.
type NoopRunLedger struct{}

var _ domrepo.RunLedger = NoopRunLedger{}

func (NoopRunLedger) Init(context.Context) error                       { return nil }
func (NoopRunLedger) Start(context.Context, *models.TrainingRun) error  { return nil }
func (NoopRunLedger) Finish(context.Context, *models.TrainingRun) error { return nil }
func (NoopRunLedger) Close() error                                     { return nil }

func (NoopRunLedger) Recent(context.Context, int) ([]models.TrainingRun, error) {
	return nil, nil
}
