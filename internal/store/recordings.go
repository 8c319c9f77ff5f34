package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/recshelf/internal/domain"
)

var statusToDB = map[domain.RecordingStatus]string{
	domain.StatusImported:     "imported",
	domain.StatusTranscribing: "transcribing",
	domain.StatusTranscribed:  "transcribed",
	domain.StatusAnalyzing:    "analyzing",
	domain.StatusReviewed:     "reviewed",
	domain.StatusExporting:    "exporting",
	domain.StatusCompleted:    "completed",
	domain.StatusError:        "error",
	domain.StatusFileMissing:  "file_missing",
}

var statusFromDB = func() map[string]domain.RecordingStatus {
	m := make(map[string]domain.RecordingStatus, len(statusToDB))
	for s, name := range statusToDB {
		m[name] = s
	}
	return m
}()

// StatusName returns the storage name of s, or "" for an unknown status.
func StatusName(s domain.RecordingStatus) string {
	return statusToDB[s]
}

// ParseStatus maps a storage name back to its status.
func ParseStatus(name string) (domain.RecordingStatus, error) {
	s, ok := statusFromDB[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown recording status %q", name)
	}
	return s, nil
}

type recordingRow struct {
	ID              string     `db:"id"`
	FilePath        string     `db:"file_path"`
	Fingerprint     *string    `db:"file_fingerprint"`
	LastCheckedAt   *time.Time `db:"last_checked_at"`
	Status          string     `db:"status"`
	DurationSeconds float64    `db:"duration_seconds"`
	SampleRate      int        `db:"sample_rate"`
	Channels        int        `db:"channels"`
	Format          string     `db:"format"`
	FileSizeBytes   int64      `db:"file_size_bytes"`
	Title           string     `db:"title"`
	Artist          string     `db:"artist"`
	HasCoverArt     bool       `db:"has_cover_art"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

const recordingColumns = `id, file_path, file_fingerprint, last_checked_at, status,
	duration_seconds, sample_rate, channels, format, file_size_bytes,
	title, artist, has_cover_art, created_at, updated_at`

func rowFromRecording(rec *domain.Recording) (recordingRow, error) {
	name, ok := statusToDB[rec.Status]
	if !ok {
		return recordingRow{}, fmt.Errorf("recording %s: unknown status %d", rec.ID, rec.Status)
	}
	return recordingRow{
		ID:              rec.ID,
		FilePath:        rec.FilePath,
		Fingerprint:     rec.Fingerprint,
		LastCheckedAt:   rec.LastCheckedAt,
		Status:          name,
		DurationSeconds: rec.DurationSeconds,
		SampleRate:      rec.SampleRate,
		Channels:        rec.Channels,
		Format:          rec.Format,
		FileSizeBytes:   rec.FileSizeBytes,
		Title:           rec.Title,
		Artist:          rec.Artist,
		HasCoverArt:     rec.HasCoverArt,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

func (r recordingRow) toDomain() (*domain.Recording, error) {
	status, err := ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", r.ID, err)
	}
	return &domain.Recording{
		ID:              r.ID,
		FilePath:        r.FilePath,
		Fingerprint:     r.Fingerprint,
		LastCheckedAt:   r.LastCheckedAt,
		Status:          status,
		DurationSeconds: r.DurationSeconds,
		SampleRate:      r.SampleRate,
		Channels:        r.Channels,
		Format:          r.Format,
		FileSizeBytes:   r.FileSizeBytes,
		Title:           r.Title,
		Artist:          r.Artist,
		HasCoverArt:     r.HasCoverArt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func (db *DB) selectRecordings(ctx context.Context, query string, args ...interface{}) ([]*domain.Recording, error) {
	var rows []recordingRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*domain.Recording, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListAllRecordings returns every recording ordered by creation.
func (db *DB) ListAllRecordings(ctx context.Context) ([]*domain.Recording, error) {
	return db.selectRecordings(ctx,
		`SELECT `+recordingColumns+` FROM recordings ORDER BY created_at ASC, id ASC`)
}

func (db *DB) GetRecording(ctx context.Context, id string) (*domain.Recording, error) {
	var row recordingRow
	err := db.GetContext(ctx, &row, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRecordingNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// RecordingFilter narrows ListRecordings. A nil Status matches every status.
type RecordingFilter struct {
	Status *domain.RecordingStatus
	Limit  int
	Offset int
}

func (db *DB) ListRecordings(ctx context.Context, filter RecordingFilter) ([]*domain.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var args []interface{}
	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, statusToDB[*filter.Status])
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}
	return db.selectRecordings(ctx, query, args...)
}

// CountRecordings counts recordings matching the status filter; Limit and
// Offset are ignored.
func (db *DB) CountRecordings(ctx context.Context, filter RecordingFilter) (int, error) {
	query := `SELECT COUNT(*) FROM recordings`
	var args []interface{}
	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, statusToDB[*filter.Status])
	}
	var n int
	err := db.GetContext(ctx, &n, query, args...)
	return n, err
}

func (db *DB) CountRecordingsByStatus(ctx context.Context) (map[domain.RecordingStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"n"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM recordings GROUP BY status`); err != nil {
		return nil, err
	}
	out := make(map[domain.RecordingStatus]int, len(rows))
	for _, row := range rows {
		s, err := ParseStatus(row.Status)
		if err != nil {
			return nil, err
		}
		out[s] = row.Count
	}
	return out, nil
}

func (db *DB) InsertRecording(ctx context.Context, rec *domain.Recording) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	row, err := rowFromRecording(rec)
	if err != nil {
		return err
	}

	query := `INSERT INTO recordings (` + recordingColumns + `) VALUES (
		:id, :file_path, :file_fingerprint, :last_checked_at, :status,
		:duration_seconds, :sample_rate, :channels, :format, :file_size_bytes,
		:title, :artist, :has_cover_art, :created_at, :updated_at)`
	if _, err := db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert recording %s: %w", rec.FilePath, err)
	}
	return nil
}

// TouchRecording records a successful path match: last_checked_at is set,
// a missing fingerprint is backfilled and a FileMissing recording returns to
// Imported.
func (db *DB) TouchRecording(ctx context.Context, id, fingerprint string, checkedAt time.Time) error {
	query := `UPDATE recordings SET
		last_checked_at = ?,
		file_fingerprint = COALESCE(file_fingerprint, ?),
		status = CASE WHEN status = ? THEN ? ELSE status END,
		updated_at = ?
	WHERE id = ?`
	res, err := db.ExecContext(ctx, query,
		checkedAt, fingerprint,
		statusToDB[domain.StatusFileMissing], statusToDB[domain.StatusImported],
		checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch recording %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

// RelinkRecording moves a recording to a new path after a fingerprint match
// and returns it to Imported.
func (db *DB) RelinkRecording(ctx context.Context, id, filePath, fingerprint string, checkedAt time.Time) error {
	query := `UPDATE recordings SET
		file_path = ?, file_fingerprint = ?, last_checked_at = ?, status = ?, updated_at = ?
	WHERE id = ?`
	res, err := db.ExecContext(ctx, query,
		filePath, fingerprint, checkedAt, statusToDB[domain.StatusImported], checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to relink recording %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

// MarkRecordingsMissing moves the given recordings to FileMissing.
func (db *DB) MarkRecordingsMissing(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE recordings SET status = ?, updated_at = ? WHERE id IN (?)`,
		statusToDB[domain.StatusFileMissing], at, ids)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to mark recordings missing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		return fmt.Errorf("marked %d of %d recordings missing: %w", n, len(ids), ErrRecordingNotFound)
	}
	return nil
}

// TransitionStatus moves one recording to a new status if the state machine
// allows it.
func (db *DB) TransitionStatus(ctx context.Context, id string, to domain.RecordingStatus) (*domain.Recording, error) {
	var updated *domain.Recording
	err := db.RunInTx(ctx, func(txDB *DB) error {
		rec, err := txDB.GetRecording(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransition(rec.Status, to) {
			return fmt.Errorf("%s -> %s: %w", rec.Status, to, ErrIllegalTransition)
		}
		now := time.Now().UTC()
		if _, err := txDB.ExecContext(ctx,
			`UPDATE recordings SET status = ?, updated_at = ? WHERE id = ?`,
			statusToDB[to], now, id); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		rec.Status = to
		rec.UpdatedAt = now
		updated = rec
		return nil
	})
	return updated, err
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrRecordingNotFound)
	}
	return nil
}
