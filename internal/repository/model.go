package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is one archived session lifetime. SessionID is the client-facing
// identifier and may repeat across lifetimes; ID never does.
type Session struct {
	ID         string
	SessionID  string
	Transport  string
	StartedAt  time.Time
	EndedAt    *time.Time
	Status     SessionStatus
	StopReason string
}

// Result is one message emitted to a client: partial, final or error.
type Result struct {
	RunID      string
	Position   int
	Seq        int64
	Kind       string
	Text       string
	Confidence float64
	EmittedAt  time.Time
}
