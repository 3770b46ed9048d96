package ports

import (
	"context"
	"errors"

	"ballotbox/internal/domain"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when a commit lost a race against another writer.
	ErrConflict = errors.New("session was modified concurrently")
)

// SessionStore persists session state and its action log.
// Every method returns state the caller may mutate freely; nothing is shared with the store.
type SessionStore interface {
	// CreateSession stores a new session and sets st.Revision.
	// Returns ErrConflict when the id is already taken.
	CreateSession(ctx context.Context, st *domain.SessionState) error

	// LoadSession reads the full state of a session. Returns ErrNotFound for unknown ids.
	LoadSession(ctx context.Context, sessionID string) (*domain.SessionState, error)

	// CommitSession atomically writes st and appends entries, provided the stored revision still
	// equals st.Revision. On success st.Revision is advanced; on a lost race ErrConflict is
	// returned and nothing is written.
	CommitSession(ctx context.Context, st *domain.SessionState, entries []domain.ActionLogEntry) error

	// ListActions returns up to limit log entries with Seq greater than afterSeq, in Seq order.
	ListActions(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]domain.ActionLogEntry, error)
}
