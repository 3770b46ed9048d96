package app

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"ballotbox/internal/domain"
)

// CreateSession seeds a lobby session. Seats follow roster order and the host must be seated.
// An empty sessionID gets a generated one.
func (s *Service) CreateSession(ctx context.Context, sessionID, hostID string, roster []string) (*domain.SessionState, error) {
	if hostID == "" {
		return nil, fmt.Errorf("%w: host id is required", ErrInvalidInput)
	}
	if n := len(roster); n < s.cfg.MinPlayers || n > s.cfg.MaxPlayers {
		return nil, fmt.Errorf("%w: %d players, need %d to %d", domain.ErrInvalidRoster, n, s.cfg.MinPlayers, s.cfg.MaxPlayers)
	}
	seen := make(map[string]struct{}, len(roster))
	for _, id := range roster {
		if id == "" {
			return nil, fmt.Errorf("%w: empty player id", domain.ErrInvalidRoster)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: player %s seated twice", domain.ErrInvalidRoster, id)
		}
		seen[id] = struct{}{}
	}
	if _, ok := seen[hostID]; !ok {
		return nil, fmt.Errorf("%w: host %s is not seated", domain.ErrInvalidRoster, hostID)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if len(sessionID) > MaxSessionIDLength {
		return nil, fmt.Errorf("%w: session id longer than %d bytes", ErrInvalidInput, MaxSessionIDLength)
	}

	st := domain.NewSessionState(sessionID, hostID, roster, s.now())
	if err := s.store.CreateSession(ctx, st); err != nil {
		s.logger.Error("CreateSession [Session:%s]: failed to store session: %v", sessionID, err)
		return nil, fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}
	s.logger.Info("CreateSession [Session:%s]: host %s, %d players", sessionID, hostID, len(roster))
	return st, nil
}

// SetReady records a player's readiness while the session is in the lobby.
func (s *Service) SetReady(ctx context.Context, sessionID, playerID string, ready bool) (*domain.SessionState, error) {
	return s.mutate(ctx, "SetReady", sessionID, playerID, func(t *txn) error {
		if t.st.Session.Status.Closed() {
			return domain.ErrSessionClosed
		}
		if t.st.Session.Status != domain.StatusLobby {
			return ErrNotInLobby
		}
		p, ok := t.st.Player(playerID)
		if !ok {
			return domain.ErrUnknownPlayer
		}
		p.Ready = ready
		t.log(nil, playerID, ActionPlayerReady, map[string]any{"ready": ready})
		return nil
	})
}

// StartTurn is the host's lever on the turn loop. From the lobby it activates the session and
// starts the first turn. On a running session whose latest turn has completed it starts the next
// one, which recovers a rotation interrupted between commits.
func (s *Service) StartTurn(ctx context.Context, sessionID, actorID string) (*domain.SessionState, error) {
	return s.mutate(ctx, "StartTurn", sessionID, actorID, func(t *txn) error {
		st := t.st
		if st.Session.HostID != actorID {
			return ErrNotHost
		}
		if st.Session.Status.Closed() {
			return domain.ErrSessionClosed
		}

		if st.Session.Status == domain.StatusLobby {
			if n := len(st.Players); n < s.cfg.MinPlayers || n > s.cfg.MaxPlayers {
				return fmt.Errorf("%w: %d players", domain.ErrInvalidRoster, n)
			}
			for _, p := range st.Players {
				if !p.Ready {
					return fmt.Errorf("%w: %s", domain.ErrPlayersNotReady, p.ID)
				}
			}
			st.Session.Status = domain.StatusActive
			t.log(nil, actorID, ActionSessionStarted, map[string]any{"players": st.SeatOrder()})
			s.ensureDecks(st)
			return s.startTurn(t, 0, 0)
		}

		s.ensureDecks(st)
		cur := st.CurrentTurn()
		if cur == nil {
			return s.startTurn(t, 0, 0)
		}
		if !cur.Completed() {
			return domain.ErrTurnInProgress
		}
		active, ok := st.Player(cur.ActivePlayer)
		if !ok {
			return domain.ErrUnknownPlayer
		}
		return s.startTurn(t, cur.Index+1, domain.NextSeat(active.Seat, len(st.Players)))
	})
}

// EvaluateEnd checks the board and moves an active session to endgame when a terminal condition
// holds. It is a no-op once the session has left the active status.
func (s *Service) EvaluateEnd(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	return s.mutate(ctx, "EvaluateEnd", sessionID, "", func(t *txn) error {
		s.evaluateEnd(t)
		return nil
	})
}

func (s *Service) evaluateEnd(t *txn) bool {
	st := t.st
	if st.Session.Status != domain.StatusActive {
		return false
	}
	reason, ok := domain.EvaluateEnd(s.catalog.Zones, st.Zones)
	if !ok {
		return false
	}
	st.Session.Status = domain.StatusEndgame
	st.Session.EndReason = reason
	t.log(nil, st.Session.HostID, ActionSessionEndTriggered, map[string]any{"reason": string(reason)})
	s.logger.Info("EvaluateEnd [Session:%s]: endgame reached: %s", st.Session.ID, reason)
	return true
}

// CompleteSession closes the session for good. Only the host may do this; the summary is kept up to
// the configured number of characters.
func (s *Service) CompleteSession(ctx context.Context, sessionID, actorID, summary string) (*domain.SessionState, error) {
	return s.mutate(ctx, "CompleteSession", sessionID, actorID, func(t *txn) error {
		st := t.st
		if st.Session.HostID != actorID {
			return ErrNotHost
		}
		if st.Session.Status.Closed() {
			return domain.ErrSessionClosed
		}
		summary = truncateRunes(summary, s.cfg.SummaryMaxLength)
		st.Session.Status = domain.StatusCompleted
		st.Session.Summary = summary
		t.log(nil, actorID, ActionSessionCompleted, map[string]any{
			"summary":    summary,
			"end_reason": string(st.Session.EndReason),
		})
		return nil
	})
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
