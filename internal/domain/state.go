package domain

import (
	"sort"
	"time"
)

// SessionState is everything the engine reads and writes for one session.
// It is loaded fresh for every action and committed as one unit.
type SessionState struct {
	Session Session                 `json:"session"`
	Players []*Player               `json:"players"` // seat order
	Zones   map[string]*ZoneControl `json:"zones"`
	Decks   map[DeckType]*Deck      `json:"decks"`
	Turns   []*Turn                 `json:"turns"` // index order, last is current

	// Revision is the store's optimistic concurrency token for the loaded state.
	Revision string `json:"-"`
}

// NewSessionState seeds a lobby session from a seated roster.
func NewSessionState(id, hostID string, roster []string, now time.Time) *SessionState {
	st := &SessionState{
		Session: Session{
			ID:        id,
			HostID:    hostID,
			Status:    StatusLobby,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Players: make([]*Player, 0, len(roster)),
		Zones:   map[string]*ZoneControl{},
		Decks:   map[DeckType]*Deck{},
		Turns:   []*Turn{},
	}
	for seat, id := range roster {
		st.Players = append(st.Players, NewPlayer(id, seat))
	}
	return st
}

// Player returns the player with id.
func (st *SessionState) Player(id string) (*Player, bool) {
	for _, p := range st.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PlayerAtSeat returns the player seated at seat.
func (st *SessionState) PlayerAtSeat(seat int) (*Player, bool) {
	for _, p := range st.Players {
		if p.Seat == seat {
			return p, true
		}
	}
	return nil, false
}

// SeatOrder returns player ids ordered by seat.
func (st *SessionState) SeatOrder() []string {
	out := make([]string, 0, len(st.Players))
	for _, p := range st.Players {
		out = append(out, p.ID)
	}
	return out
}

// SortPlayers orders Players by seat.
func (st *SessionState) SortPlayers() {
	sort.SliceStable(st.Players, func(i, j int) bool { return st.Players[i].Seat < st.Players[j].Seat })
}

// CurrentTurn returns the latest turn, or nil before the first turn starts.
func (st *SessionState) CurrentTurn() *Turn {
	if len(st.Turns) == 0 {
		return nil
	}
	return st.Turns[len(st.Turns)-1]
}

// Turn returns the turn with index.
func (st *SessionState) Turn(index int) (*Turn, bool) {
	if index < 0 || index >= len(st.Turns) {
		return nil, false
	}
	t := st.Turns[index]
	if t.Index != index {
		for _, candidate := range st.Turns {
			if candidate.Index == index {
				return candidate, true
			}
		}
		return nil, false
	}
	return t, true
}

// ZoneControl returns the control state for zoneID, creating empty state on first use.
func (st *SessionState) ZoneControl(zoneID string) *ZoneControl {
	if st.Zones == nil {
		st.Zones = map[string]*ZoneControl{}
	}
	zc, ok := st.Zones[zoneID]
	if !ok {
		zc = NewZoneControl(zoneID)
		st.Zones[zoneID] = zc
	}
	return zc
}

// Deck returns the session deck of type t.
func (st *SessionState) Deck(t DeckType) (*Deck, error) {
	d, ok := st.Decks[t]
	if !ok || d == nil {
		return nil, ErrDeckNotInitialized
	}
	return d, nil
}

// Clone returns a deep copy, revision included.
func (st *SessionState) Clone() *SessionState {
	out := &SessionState{
		Session:  st.Session,
		Players:  make([]*Player, 0, len(st.Players)),
		Zones:    make(map[string]*ZoneControl, len(st.Zones)),
		Decks:    make(map[DeckType]*Deck, len(st.Decks)),
		Turns:    make([]*Turn, 0, len(st.Turns)),
		Revision: st.Revision,
	}
	for _, p := range st.Players {
		out.Players = append(out.Players, p.Clone())
	}
	for k, z := range st.Zones {
		out.Zones[k] = z.Clone()
	}
	for k, d := range st.Decks {
		out.Decks[k] = d.Clone()
	}
	for _, t := range st.Turns {
		out.Turns = append(out.Turns, t.Clone())
	}
	return out
}

// ActionLogEntry is an immutable record of one resolved action or side effect.
// TurnIndex is nil for session-scoped events.
type ActionLogEntry struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	TurnIndex *int           `json:"turn_index"`
	ActorID   string         `json:"actor_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
