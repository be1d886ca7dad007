package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/foxseedlab/streamscribe/internal/repository"
	_ "modernc.org/sqlite"
)

// Pragmas ride on the DSN so every pooled connection gets them.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the archive database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := runSQLiteMigration(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, session_id, transport, started_at, status) VALUES (?, ?, ?, ?, 'running')`,
		input.ID, input.SessionID, input.Transport, input.StartedAt.UTC())
	return err
}

func (r *SQLiteRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = ?, stop_reason = ? WHERE id = ?`,
		input.EndedAt.UTC(), input.Reason, input.ID)
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*repository.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, transport, started_at, ended_at, status, stop_reason FROM sessions WHERE id = ?`, id)
	var s repository.Session
	var endedAt sql.NullTime
	var status string
	if err := row.Scan(&s.ID, &s.SessionID, &s.Transport, &s.StartedAt, &endedAt, &status, &s.StopReason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	s.Status = repository.SessionStatus(status)
	return &s, nil
}

func (r *SQLiteRepository) InsertResult(ctx context.Context, input repository.InsertResultInput) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transcript_results (run_id, position, seq, kind, content, confidence, emitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		input.RunID, input.Position, input.Seq, input.Kind, input.Text, input.Confidence, input.EmittedAt.UTC())
	return err
}

func (r *SQLiteRepository) ListResults(ctx context.Context, runID string) ([]repository.Result, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, position, seq, kind, content, confidence, emitted_at
		 FROM transcript_results WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Result
	for rows.Next() {
		var res repository.Result
		if err := rows.Scan(&res.RunID, &res.Position, &res.Seq, &res.Kind, &res.Text, &res.Confidence, &res.EmittedAt); err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
