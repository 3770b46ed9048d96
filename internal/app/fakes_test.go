package app

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"ballotbox/internal/domain"
	"ballotbox/internal/ports"
)

type memStore struct {
	mu        sync.Mutex
	sessions  map[string]*domain.SessionState
	actions   map[string][]domain.ActionLogEntry
	rev       int
	conflicts int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*domain.SessionState{},
		actions:  map[string][]domain.ActionLogEntry{},
	}
}

func (m *memStore) nextRevision() string {
	m.rev++
	return strconv.Itoa(m.rev)
}

func (m *memStore) CreateSession(ctx context.Context, st *domain.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[st.Session.ID]; ok {
		return ports.ErrConflict
	}
	st.Revision = m.nextRevision()
	m.sessions[st.Session.ID] = st.Clone()
	return nil
}

func (m *memStore) LoadSession(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return st.Clone(), nil
}

func (m *memStore) CommitSession(ctx context.Context, st *domain.SessionState, entries []domain.ActionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[st.Session.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		return ports.ErrConflict
	}
	if stored.Revision != st.Revision {
		return ports.ErrConflict
	}
	st.Revision = m.nextRevision()
	m.sessions[st.Session.ID] = st.Clone()
	m.actions[st.Session.ID] = append(m.actions[st.Session.ID], entries...)
	return nil
}

func (m *memStore) ListActions(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]domain.ActionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ActionLogEntry{}
	for _, e := range m.actions[sessionID] {
		if e.Seq <= afterSeq {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// edit changes the stored state in place, bypassing the rules.
func (m *memStore) edit(t *testing.T, sessionID string, fn func(st *domain.SessionState)) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		t.Fatalf("session %s not stored", sessionID)
	}
	fn(st)
}

func (m *memStore) entries(sessionID string) []domain.ActionLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ActionLogEntry{}, m.actions[sessionID]...)
}

var _ ports.SessionStore = (*memStore)(nil)
