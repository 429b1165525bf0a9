package statusdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ctmm/msqc/internal/status"
)

// Mirror writes runs and status transitions to PostgreSQL.
type Mirror struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewMirror returns a Mirror on db.
func NewMirror(db *sql.DB) *Mirror {
	return &Mirror{DB: db, Now: time.Now}
}

// RunTotals are the counters stored when a run finishes.
type RunTotals struct {
	Discovered int
	Completed  int
	Failed     int
}

// StartRun inserts a run row.
func (m *Mirror) StartRun(ctx context.Context, runID string) error {
	_, err := m.DB.ExecContext(ctx,
		`INSERT INTO qc_runs (id, started_at) VALUES ($1, $2)`,
		runID, m.Now().UTC())
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its totals.
func (m *Mirror) FinishRun(ctx context.Context, runID string, t RunTotals) error {
	_, err := m.DB.ExecContext(ctx,
		`UPDATE qc_runs SET finished_at = $2, discovered = $3, completed = $4, failed = $5 WHERE id = $1`,
		runID, m.Now().UTC(), t.Discovered, t.Completed, t.Failed)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Record upserts the current state of rec and appends it to the event
// history, in one transaction.
func (m *Mirror) Record(ctx context.Context, runID string, rec status.Record) (err error) {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = m.Now()
	}
	updated = updated.UTC()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO qc_file_status (name, status, report_path, reason, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE SET
    status = EXCLUDED.status,
    report_path = EXCLUDED.report_path,
    reason = EXCLUDED.reason,
    updated_at = EXCLUDED.updated_at`,
		rec.Name, rec.Status.String(), rec.ReportPath, rec.Reason, updated); err != nil {
		return fmt.Errorf("upsert file status: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO qc_status_events (run_id, name, status, reason, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
		runID, rec.Name, rec.Status.String(), rec.Reason, updated); err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
