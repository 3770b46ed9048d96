package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"

	"ballotbox/internal/config"
	"ballotbox/internal/domain"
	"ballotbox/internal/logging"
	"ballotbox/internal/ports"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotHost      = errors.New("actor is not the session host")
	ErrNotInLobby   = errors.New("session not in lobby")
)

// Service runs the ballot box rules against sessions held in a SessionStore.
// Intents for one session are serialised in process; across processes the store's revision check
// rejects the losing commit with ports.ErrConflict.
type Service struct {
	store   ports.SessionStore
	catalog *domain.Catalog
	cfg     *config.GameConfig
	logger  runtime.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	locks *keyedMutex
}

// NewService constructs a Service. cfg and logger may be nil to use defaults; rng may be nil to use
// a time-seeded default.
func NewService(store ports.SessionStore, catalog *domain.Catalog, cfg *config.GameConfig, logger runtime.Logger, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
		rng:     rng,
		now:     func() time.Time { return time.Now().UTC() },
		locks:   newKeyedMutex(),
	}
}

// SetClock replaces the time source used for turn and log timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Catalog returns the reference data the service plays with.
func (s *Service) Catalog() *domain.Catalog {
	return s.catalog
}

// consumedError marks a rejection whose penalty bookkeeping must still be committed.
type consumedError struct {
	err error
}

func (e *consumedError) Error() string { return e.err.Error() }
func (e *consumedError) Unwrap() error { return e.err }

func consumed(err error) error {
	return &consumedError{err: err}
}

// txn collects the log entries produced while one intent mutates a session.
type txn struct {
	st      *domain.SessionState
	now     time.Time
	entries []domain.ActionLogEntry
}

func (t *txn) log(turnIndex *int, actorID string, typ ActionType, payload map[string]any) {
	t.st.Session.ActionSeq++
	if payload == nil {
		payload = map[string]any{}
	}
	t.entries = append(t.entries, domain.ActionLogEntry{
		ID:        uuid.NewString(),
		SessionID: t.st.Session.ID,
		Seq:       t.st.Session.ActionSeq,
		TurnIndex: turnIndex,
		ActorID:   actorID,
		Type:      string(typ),
		Payload:   payload,
		CreatedAt: t.now,
	})
}

func turnRef(index int) *int {
	return &index
}

// mutate loads a session, applies fn and commits the result with the produced log entries.
// A plain error from fn discards every change. A consumed error commits and is then returned.
func (s *Service) mutate(ctx context.Context, op, sessionID, actorID string, fn func(*txn) error) (*domain.SessionState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	logger := s.logger.WithFields(map[string]interface{}{"session": sessionID, "actor": actorID})

	st, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		logger.Warn("%s [Session:%s]: failed to load session: %v", op, sessionID, err)
		return nil, err
	}

	t := &txn{st: st, now: s.now()}
	err = fn(t)
	var penalty *consumedError
	if err != nil && !errors.As(err, &penalty) {
		logger.Warn("%s [Session:%s User:%s]: rejected: %v", op, sessionID, actorID, err)
		return nil, err
	}

	st.Session.UpdatedAt = t.now
	if cerr := s.store.CommitSession(ctx, st, t.entries); cerr != nil {
		if errors.Is(cerr, ports.ErrConflict) {
			logger.Warn("%s [Session:%s]: lost commit race", op, sessionID)
			return nil, cerr
		}
		logger.Error("%s [Session:%s]: failed to commit: %v", op, sessionID, cerr)
		return nil, fmt.Errorf("failed to commit session %s: %w", sessionID, cerr)
	}

	if penalty != nil {
		logger.Info("%s [Session:%s User:%s]: penalty consumed: %v", op, sessionID, actorID, penalty.err)
		return st, penalty.err
	}
	logger.Debug("%s [Session:%s]: committed %d entries, seq %d", op, sessionID, len(t.entries), st.Session.ActionSeq)
	return st, nil
}

// requireActive rejects actions on sessions that are not in play.
func requireActive(st *domain.SessionState) error {
	if st.Session.Status.Closed() {
		return domain.ErrSessionClosed
	}
	if !st.Session.Status.AcceptsActions() {
		return domain.ErrSessionNotActive
	}
	return nil
}

// requireTurn resolves the addressed turn and checks that actor may act on it in one of phases.
// A turn other than the latest one is always stale.
func requireTurn(st *domain.SessionState, index int, actorID string, phases ...domain.TurnPhase) (*domain.Turn, error) {
	if err := requireActive(st); err != nil {
		return nil, err
	}
	turn, ok := st.Turn(index)
	if !ok {
		return nil, domain.ErrTurnNotFound
	}
	if turn.ActivePlayer != actorID {
		return nil, domain.ErrNotYourTurn
	}
	if cur := st.CurrentTurn(); cur != nil && cur.Index != turn.Index {
		return nil, domain.ErrTurnAlreadyCompleted
	}
	if err := turn.Require(actorID, phases...); err != nil {
		return nil, err
	}
	return turn, nil
}

// SessionState returns the stored state of a session.
func (s *Service) SessionState(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	return s.store.LoadSession(ctx, sessionID)
}

// TurnOffer is the current turn together with the catalog records of the cards on offer.
type TurnOffer struct {
	Turn          *domain.Turn          `json:"turn"`
	IdeologyCards []domain.IdeologyCard `json:"ideology_cards"`
	VoteBankCards []domain.VoteBankCard `json:"vote_bank_cards"`
}

// CurrentOffer returns the latest turn and the cards it offers, or nil before the first turn.
func (s *Service) CurrentOffer(st *domain.SessionState) *TurnOffer {
	turn := st.CurrentTurn()
	if turn == nil {
		return nil
	}
	return &TurnOffer{
		Turn:          turn,
		IdeologyCards: s.previewIdeology(turn.IdeologyPreview),
		VoteBankCards: s.previewVoteBank(turn.VoteBankPreview),
	}
}

// ActionLog returns a page of the session's action log after afterSeq.
func (s *Service) ActionLog(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]domain.ActionLogEntry, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if afterSeq < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: negative cursor or limit", ErrInvalidInput)
	}
	if limit == 0 {
		limit = DefaultActionLogLimit
	}
	limit = min(limit, MaxActionLogLimit)
	return s.store.ListActions(ctx, sessionID, afterSeq, limit)
}

// FullActionLog pages through the whole action log of a session.
func (s *Service) FullActionLog(ctx context.Context, sessionID string) ([]domain.ActionLogEntry, error) {
	var (
		out   []domain.ActionLogEntry
		after int64
	)
	for {
		page, err := s.ActionLog(ctx, sessionID, after, MaxActionLogLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < MaxActionLogLimit {
			return out, nil
		}
		after = page[len(page)-1].Seq
	}
}
