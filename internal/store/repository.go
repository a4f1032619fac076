// Package store persists agent settings and run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Repository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	DeleteConfig(ctx context.Context, key string) error

	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	FinishRun(ctx context.Context, id, status string, exitCode int, errMsg string, imported bool) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetConfig returns "" with no error when key is unset.
func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteRepository) DeleteConfig(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM config WHERE key = ?", key)
	return err
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	if run.ID == "" {
		run.ID = NewID()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.CreatedAt = run.CreatedAt.UTC()
	run.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, status, command, clip_label, output_path, exit_code, error, imported, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Kind, run.Status, run.Command, nullString(run.ClipLabel), nullString(run.OutputPath),
		run.ExitCode, nullString(run.Error), boolToInt(run.Imported),
		run.CreatedAt.Format(timeLayout), run.UpdatedAt.Format(timeLayout))
	return err
}

// timeLayout has fixed-width fractions so stored stamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, kind, status, command, clip_label, output_path, exit_code, error, imported, created_at, updated_at`

// GetRun returns nil, nil when id is unknown.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the newest runs first. limit <= 0 means 50.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) FinishRun(ctx context.Context, id, status string, exitCode int, errMsg string, imported bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, exit_code = ?, error = ?, imported = ?, updated_at = ? WHERE id = ?
	`, status, exitCode, nullString(errMsg), boolToInt(imported), time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var clipLabel, outputPath, errMsg sql.NullString
	var imported int
	var createdAt, updatedAt string

	if err := row.Scan(&run.ID, &run.Kind, &run.Status, &run.Command, &clipLabel, &outputPath,
		&run.ExitCode, &errMsg, &imported, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	run.ClipLabel = clipLabel.String
	run.OutputPath = outputPath.String
	run.Error = errMsg.String
	run.Imported = imported == 1
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	return &run, nil
}

// parseTime accepts both our RFC 3339 stamps and SQLite's datetime('now').
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
