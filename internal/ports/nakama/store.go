package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"ballotbox/internal/domain"
	"ballotbox/internal/ports"
)

const (
	sessionCollection = "ballotbox_sessions"
	actionCollection  = "ballotbox_actions"

	// systemUserID owns every ballotbox storage object.
	systemUserID = ""
)

// StorageBackend is the part of runtime.NakamaModule the store needs.
type StorageBackend interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error)
}

// Store keeps each session snapshot as one storage object and each action log entry as its own
// object. The snapshot's storage version is the session revision, so a commit is rejected by
// Nakama when another writer got there first.
type Store struct {
	nk StorageBackend
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore creates a session store on Nakama storage.
func NewStore(nk StorageBackend) *Store {
	return &Store{nk: nk}
}

func actionKey(sessionID string, seq int64) string {
	return fmt.Sprintf("%s:%012d", sessionID, seq)
}

func sessionWrite(st *domain.SessionState, version string) (*runtime.StorageWrite, error) {
	value, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", st.Session.ID, err)
	}
	return &runtime.StorageWrite{
		Collection:      sessionCollection,
		Key:             st.Session.ID,
		UserID:          systemUserID,
		Value:           string(value),
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}, nil
}

func sessionVersion(acks []*api.StorageObjectAck, sessionID string) string {
	for _, ack := range acks {
		if ack.GetCollection() == sessionCollection && ack.GetKey() == sessionID {
			return ack.GetVersion()
		}
	}
	return ""
}

// CreateSession writes a new session snapshot. It fails with ports.ErrConflict when the id is taken.
func (s *Store) CreateSession(ctx context.Context, st *domain.SessionState) error {
	write, err := sessionWrite(st, "*")
	if err != nil {
		return err
	}
	acks, _, err := s.nk.MultiUpdate(ctx, nil, []*runtime.StorageWrite{write}, nil, nil, false)
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return ports.ErrConflict
		}
		return fmt.Errorf("failed to write session %s: %w", st.Session.ID, err)
	}
	st.Revision = sessionVersion(acks, st.Session.ID)
	return nil
}

// CommitSession writes st and appends entries in one MultiUpdate gated on st.Revision.
func (s *Store) CommitSession(ctx context.Context, st *domain.SessionState, entries []domain.ActionLogEntry) error {
	if st.Revision == "" {
		return fmt.Errorf("session %s has no revision", st.Session.ID)
	}
	write, err := sessionWrite(st, st.Revision)
	if err != nil {
		return err
	}
	writes := make([]*runtime.StorageWrite, 0, len(entries)+1)
	writes = append(writes, write)
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal action %d: %w", e.Seq, err)
		}
		writes = append(writes, &runtime.StorageWrite{
			Collection:      actionCollection,
			Key:             actionKey(e.SessionID, e.Seq),
			UserID:          systemUserID,
			Value:           string(value),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}

	acks, _, err := s.nk.MultiUpdate(ctx, nil, writes, nil, nil, false)
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			if _, _, readErr := s.readSession(ctx, st.Session.ID); errors.Is(readErr, ports.ErrNotFound) {
				return ports.ErrNotFound
			}
			return ports.ErrConflict
		}
		return fmt.Errorf("failed to commit session %s: %w", st.Session.ID, err)
	}
	st.Revision = sessionVersion(acks, st.Session.ID)
	return nil
}

func (s *Store) readSession(ctx context.Context, sessionID string) (*domain.SessionState, string, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: sessionCollection,
		Key:        sessionID,
		UserID:     systemUserID,
	}})
	if err != nil {
		return nil, "", fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}
	if len(objects) == 0 {
		return nil, "", ports.ErrNotFound
	}

	obj := objects[0]
	st := &domain.SessionState{}
	if err := json.Unmarshal([]byte(obj.GetValue()), st); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	if st.Zones == nil {
		st.Zones = map[string]*domain.ZoneControl{}
	}
	if st.Decks == nil {
		st.Decks = map[domain.DeckType]*domain.Deck{}
	}
	if st.Turns == nil {
		st.Turns = []*domain.Turn{}
	}
	st.SortPlayers()
	return st, obj.GetVersion(), nil
}

// LoadSession reads the session snapshot with its storage version as the revision.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	st, version, err := s.readSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st.Revision = version
	return st, nil
}

// ListActions reads entries afterSeq+1 through afterSeq+limit, bounded by the session's last
// sequence number. An unknown session has an empty log.
func (s *Store) ListActions(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]domain.ActionLogEntry, error) {
	out := []domain.ActionLogEntry{}
	st, _, err := s.readSession(ctx, sessionID)
	if errors.Is(err, ports.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	last := min(st.Session.ActionSeq, afterSeq+int64(limit))
	if last <= afterSeq {
		return out, nil
	}
	reads := make([]*runtime.StorageRead, 0, last-afterSeq)
	for seq := afterSeq + 1; seq <= last; seq++ {
		reads = append(reads, &runtime.StorageRead{
			Collection: actionCollection,
			Key:        actionKey(sessionID, seq),
			UserID:     systemUserID,
		})
	}
	objects, err := s.nk.StorageRead(ctx, reads)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions of %s: %w", sessionID, err)
	}

	for _, obj := range objects {
		var e domain.ActionLogEntry
		if err := json.Unmarshal([]byte(obj.GetValue()), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action %s: %w", obj.GetKey(), err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
