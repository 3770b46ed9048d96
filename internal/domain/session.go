package domain

import "time"

// Status is the lifecycle stage of a session.
type Status string

const (
	StatusLobby     Status = "lobby"
	StatusActive    Status = "active"
	StatusEndgame   Status = "endgame"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Closed reports whether no further actions or transitions are possible.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AcceptsActions reports whether players may act in this status.
func (s Status) AcceptsActions() bool {
	return s == StatusActive || s == StatusEndgame
}

// EndReason names the board condition that moved a session to endgame.
type EndReason string

const (
	EndAllMajorities EndReason = "all_majorities"
	EndBoardFull     EndReason = "board_full"
)

// Session is the aggregate root of one game.
type Session struct {
	ID        string    `json:"id"`
	HostID    string    `json:"host_id"`
	Status    Status    `json:"status"`
	EndReason EndReason `json:"end_reason,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	// ActionSeq is the sequence number of the last appended action log entry.
	ActionSeq int64     `json:"action_seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EvaluateEnd checks the terminal board predicates over every zone in the catalog.
// All-majorities wins over board-full when both hold.
func EvaluateEnd(zones []Zone, controls map[string]*ZoneControl) (EndReason, bool) {
	if len(zones) == 0 {
		return "", false
	}

	allMajorities, boardFull := true, true
	for _, zone := range zones {
		zc, ok := controls[zone.ID]
		if !ok {
			return "", false
		}
		if !zc.HasMajority(zone) {
			allMajorities = false
		}
		if zc.Placed() < zone.TotalVoters {
			boardFull = false
		}
	}

	switch {
	case allMajorities:
		return EndAllMajorities, true
	case boardFull:
		return EndBoardFull, true
	default:
		return "", false
	}
}
