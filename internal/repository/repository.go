package repository

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("archived session not found")

type CreateSessionInput struct {
	ID        string
	SessionID string
	Transport string
	StartedAt time.Time
}

type CompleteSessionInput struct {
	ID      string
	EndedAt time.Time
	Reason  string
}

type InsertResultInput struct {
	RunID      string
	Position   int
	Seq        int64
	Kind       string
	Text       string
	Confidence float64
	EmittedAt  time.Time
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) error
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	GetSession(ctx context.Context, id string) (*Session, error)
}

type ResultRepository interface {
	InsertResult(ctx context.Context, input InsertResultInput) error
	ListResults(ctx context.Context, runID string) ([]Result, error)
}

// Repository archives sessions and every result emitted to their clients.
type Repository interface {
	SessionRepository
	ResultRepository
	Close() error
}

type noopRepository struct{}

// NewNoop returns a Repository that stores nothing.
func NewNoop() Repository { return noopRepository{} }

func (noopRepository) CreateSession(context.Context, CreateSessionInput) error     { return nil }
func (noopRepository) CompleteSession(context.Context, CompleteSessionInput) error { return nil }
func (noopRepository) GetSession(context.Context, string) (*Session, error)        { return nil, ErrNotFound }
func (noopRepository) InsertResult(context.Context, InsertResultInput) error       { return nil }
func (noopRepository) ListResults(context.Context, string) ([]Result, error)       { return nil, nil }
func (noopRepository) Close() error                                                { return nil }
