package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/streamscribe/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, session_id, transport, started_at, status)
		 VALUES ($1, $2, $3, $4, 'running')`,
		input.ID, input.SessionID, input.Transport, input.StartedAt)
	return err
}

func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = $2, stop_reason = $3 WHERE id = $1`,
		input.ID, input.EndedAt, input.Reason)
	return err
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, session_id, transport, started_at, ended_at, status, stop_reason
		 FROM sessions WHERE id = $1`, id)
	var s repository.Session
	var endedAt *time.Time
	var status string
	err := row.Scan(&s.ID, &s.SessionID, &s.Transport, &s.StartedAt, &endedAt, &status, &s.StopReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	s.EndedAt = endedAt
	s.Status = repository.SessionStatus(status)
	return &s, nil
}

func (r *PostgresRepository) InsertResult(ctx context.Context, input repository.InsertResultInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcript_results (run_id, position, seq, kind, content, confidence, emitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		input.RunID, input.Position, input.Seq, input.Kind, input.Text, input.Confidence, input.EmittedAt)
	return err
}

func (r *PostgresRepository) ListResults(ctx context.Context, runID string) ([]repository.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT run_id, position, seq, kind, content, confidence, emitted_at
		 FROM transcript_results WHERE run_id = $1 ORDER BY position ASC`,
		runID)
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

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
