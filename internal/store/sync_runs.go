package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cesargomez89/recshelf/internal/domain"
)

const syncRunColumns = `id, status, directory, discovered, new_count, updated_count,
	missing_count, ambiguous_count, failed_count, error, started_at, finished_at`

func (db *DB) CreateSyncRun(ctx context.Context, run *domain.SyncRun) error {
	query := `INSERT INTO sync_runs (` + syncRunColumns + `) VALUES (
		:id, :status, :directory, :discovered, :new_count, :updated_count,
		:missing_count, :ambiguous_count, :failed_count, :error, :started_at, :finished_at)`

	_, err := db.NamedExecContext(ctx, query, run)
	return err
}

// FinishSyncRun stores the final status, counts and error of a run.
func (db *DB) FinishSyncRun(ctx context.Context, run *domain.SyncRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	query := `UPDATE sync_runs SET
		status = :status, discovered = :discovered, new_count = :new_count,
		updated_count = :updated_count, missing_count = :missing_count,
		ambiguous_count = :ambiguous_count, failed_count = :failed_count,
		error = :error, finished_at = :finished_at
	WHERE id = :id`

	res, err := db.NamedExecContext(ctx, query, run)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sync run %s not found", run.ID)
	}
	return nil
}

func (db *DB) GetSyncRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	run := &domain.SyncRun{}
	err := db.GetContext(ctx, run, `SELECT `+syncRunColumns+` FROM sync_runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListSyncRuns returns the most recent runs first.
func (db *DB) ListSyncRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	var runs []*domain.SyncRun
	err := db.SelectContext(ctx, &runs,
		`SELECT `+syncRunColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	return runs, err
}

// MarkInterruptedSyncRuns fails every run still marked running. Callers hold
// the catalog lock, so no live process owns those runs.
func (db *DB) MarkInterruptedSyncRuns(ctx context.Context) (int, error) {
	msg := "interrupted before completion"
	res, err := db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, error = ?, finished_at = ? WHERE status = ?`,
		domain.SyncRunFailed, msg, time.Now().UTC(), domain.SyncRunRunning)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
