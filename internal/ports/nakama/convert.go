package nakama

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"ballotbox/internal/app"
	"ballotbox/internal/domain"
)

// SessionView is what a player sees of a session. Conspiracy hands are private unless the owner is
// the viewer or carries the reveal flag.
type SessionView struct {
	Session  domain.Session                 `json:"session"`
	Revision string                         `json:"revision"`
	Players  []PlayerView                   `json:"players"`
	Zones    map[string]*domain.ZoneControl `json:"zones"`
	Decks    map[domain.DeckType]DeckView   `json:"decks"`
	Offer    *app.TurnOffer                 `json:"current_turn,omitempty"`
}

type PlayerView struct {
	ID         string               `json:"id"`
	Seat       int                  `json:"seat"`
	Ready      bool                 `json:"ready"`
	Resources  domain.Bundle        `json:"resources"`
	Ideologies domain.IdeologyTally `json:"ideologies"`
	Hand       []string             `json:"hand,omitempty"`
	HandSize   int                  `json:"hand_size"`
	Flags      []domain.Flag        `json:"flags"`
}

// DeckView exposes pile sizes only.
type DeckView struct {
	Remaining int `json:"remaining"`
	Discarded int `json:"discarded"`
}

func sessionToView(st *domain.SessionState, offer *app.TurnOffer, viewerID string) SessionView {
	view := SessionView{
		Session:  st.Session,
		Revision: st.Revision,
		Players:  make([]PlayerView, 0, len(st.Players)),
		Zones:    st.Zones,
		Decks:    make(map[domain.DeckType]DeckView, len(st.Decks)),
		Offer:    offer,
	}
	for _, p := range st.Players {
		pv := PlayerView{
			ID:         p.ID,
			Seat:       p.Seat,
			Ready:      p.Ready,
			Resources:  p.Resources,
			Ideologies: p.Ideologies,
			HandSize:   len(p.Hand),
			Flags:      []domain.Flag{},
		}
		if p.ID == viewerID || p.HasFlag(domain.FlagRevealHand) {
			pv.Hand = p.Hand
		}
		for _, f := range []domain.Flag{domain.FlagSkipConspiracyPlay, domain.FlagSkipGerrymander, domain.FlagRevealHand} {
			if p.HasFlag(f) {
				pv.Flags = append(pv.Flags, f)
			}
		}
		view.Players = append(view.Players, pv)
	}
	for t, d := range st.Decks {
		view.Decks[t] = DeckView{Remaining: len(d.Cards), Discarded: len(d.Discard)}
	}
	return view
}

// ActionView is one action log entry with its payload rendered as a google.protobuf.Struct.
type ActionView struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	TurnIndex *int            `json:"turn_index"`
	ActorID   string          `json:"actor_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// payloadToStruct normalises payload through JSON so every value is one structpb accepts.
func payloadToStruct(payload map[string]any) (*structpb.Struct, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}
	return structpb.NewStruct(normalized)
}

func actionsToView(entries []domain.ActionLogEntry) ([]ActionView, error) {
	out := make([]ActionView, 0, len(entries))
	for _, e := range entries {
		payload, err := payloadToStruct(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to convert payload of action %d: %w", e.Seq, err)
		}
		rendered, err := protojson.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to render payload of action %d: %w", e.Seq, err)
		}
		out = append(out, ActionView{
			ID:        e.ID,
			Seq:       e.Seq,
			TurnIndex: e.TurnIndex,
			ActorID:   e.ActorID,
			Type:      e.Type,
			Payload:   rendered,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

func encodeResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
