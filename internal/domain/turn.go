package domain

import "time"

// TurnPhase is the stage a turn has reached. Phases only move forward.
type TurnPhase string

const (
	PhaseAwaitingIdeology  TurnPhase = "awaiting-ideology-answer"
	PhaseAwaitingInfluence TurnPhase = "awaiting-influence"
	PhaseCompleted         TurnPhase = "completed"
)

var phaseRank = map[TurnPhase]int{
	PhaseAwaitingIdeology:  0,
	PhaseAwaitingInfluence: 1,
	PhaseCompleted:         2,
}

// OpenPhases are the phases in which conspiracy and gerrymander actions are allowed.
var OpenPhases = []TurnPhase{PhaseAwaitingIdeology, PhaseAwaitingInfluence}

// Turn is one player's turn within a session.
type Turn struct {
	Index           int        `json:"index"`
	ActivePlayer    string     `json:"active_player"`
	NeighborReader  string     `json:"neighbor_reader"`
	Phase           TurnPhase  `json:"phase"`
	IdeologyPreview []string   `json:"ideology_preview"`
	VoteBankPreview []string   `json:"vote_bank_preview"`
	IdeologyCardID  string     `json:"ideology_card_id,omitempty"`
	IdeologyChoice  Choice     `json:"ideology_choice,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

// Completed reports whether the turn has ended.
func (t *Turn) Completed() bool {
	return t.Phase == PhaseCompleted || t.EndedAt != nil
}

// Require checks that actor may act on the turn in one of phases.
func (t *Turn) Require(actor string, phases ...TurnPhase) error {
	if t.ActivePlayer != actor {
		return ErrNotYourTurn
	}
	if t.Completed() {
		return ErrTurnAlreadyCompleted
	}
	for _, p := range phases {
		if t.Phase == p {
			return nil
		}
	}
	return ErrInvalidPhase
}

// Advance moves the turn to the next phase. Skipping or regressing is refused.
func (t *Turn) Advance(to TurnPhase) error {
	cur, ok := phaseRank[t.Phase]
	next, ok2 := phaseRank[to]
	if !ok || !ok2 || next != cur+1 {
		return ErrInvalidPhase
	}
	t.Phase = to
	return nil
}

// Complete ends the turn at the given time.
func (t *Turn) Complete(at time.Time) {
	t.Phase = PhaseCompleted
	ended := at
	t.EndedAt = &ended
}

// Offers reports whether cardID is in preview.
func Offers(preview []string, cardID string) bool {
	for _, id := range preview {
		if id == cardID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (t *Turn) Clone() *Turn {
	out := *t
	out.IdeologyPreview = append([]string{}, t.IdeologyPreview...)
	out.VoteBankPreview = append([]string{}, t.VoteBankPreview...)
	if t.EndedAt != nil {
		ended := *t.EndedAt
		out.EndedAt = &ended
	}
	return &out
}

// NextSeat returns the seat after seat, wrapping at count.
func NextSeat(seat, count int) int {
	if count <= 0 {
		return 0
	}
	return (seat + 1) % count
}

// PrecedingSeat returns the seat before seat, wrapping at count.
func PrecedingSeat(seat, count int) int {
	if count <= 0 {
		return 0
	}
	return (seat - 1 + count) % count
}
