package app

import (
	"context"
	"fmt"

	"ballotbox/internal/domain"
)

// TurnAction addresses an intent at one turn of a session.
type TurnAction struct {
	SessionID string
	ActorID   string
	TurnIndex int
}

// startTurn opens turn index for the player at seat: previews are peeked, the preceding seat reads
// the ideology prompt, and passive income is paid out.
func (s *Service) startTurn(t *txn, index, seat int) error {
	st := t.st
	player, ok := st.PlayerAtSeat(seat)
	if !ok {
		return fmt.Errorf("%w: seat %d", domain.ErrUnknownPlayer, seat)
	}
	reader := ""
	if p, ok := st.PlayerAtSeat(domain.PrecedingSeat(seat, len(st.Players))); ok {
		reader = p.ID
	}

	ideologyDeck, err := st.Deck(domain.DeckIdeology)
	if err != nil {
		return err
	}
	voteBankDeck, err := st.Deck(domain.DeckVoteBank)
	if err != nil {
		return err
	}

	turn := &domain.Turn{
		Index:           index,
		ActivePlayer:    player.ID,
		NeighborReader:  reader,
		Phase:           domain.PhaseAwaitingIdeology,
		IdeologyPreview: ideologyDeck.Peek(s.cfg.IdeologyPreviewSize),
		VoteBankPreview: voteBankDeck.Peek(s.cfg.VoteBankPreviewSize),
		StartedAt:       t.now,
	}
	// With the ideology pile exhausted there is nothing to answer.
	if len(turn.IdeologyPreview) == 0 {
		if err := turn.Advance(domain.PhaseAwaitingInfluence); err != nil {
			return err
		}
	}
	st.Turns = append(st.Turns, turn)

	ref := turnRef(index)
	t.log(ref, player.ID, ActionTurnStart, map[string]any{
		"turn_index":        index,
		"neighbor_reader":   reader,
		"phase":             string(turn.Phase),
		"ideology_preview":  turn.IdeologyPreview,
		"vote_bank_preview": turn.VoteBankPreview,
	})

	income := domain.PassiveIncome(player.Ideologies)
	if income.Total() > 0 {
		before := player.Resources.Total()
		clamped := domain.ClampBundle(domain.AddBundles(player.Resources, income))
		player.Resources = clamped.Bundle
		t.log(ref, player.ID, ActionPassiveGain, map[string]any{
			"passive_income": income,
			"applied_income": clamped.Bundle.Total() - before,
			"discarded":      clamped.Discarded,
		})
		logCapDiscard(t, ref, player.ID, DiscardSourcePassiveIncome, clamped)
	}

	s.logger.Info("StartTurn [Session:%s]: turn %d for %s (reader %s)", st.Session.ID, index, player.ID, reader)
	return nil
}

func logCapDiscard(t *txn, ref *int, playerID, source string, clamped domain.ClampResult) {
	if clamped.Overflow == 0 {
		return
	}
	t.log(ref, playerID, ActionResourceCapDiscard, map[string]any{
		"source":    source,
		"discarded": clamped.Discarded,
		"overflow":  clamped.Overflow,
	})
}

// completeTurn closes turn, expires the ending player's turn-scoped flags and rotates to the next
// seat in the same commit.
func (s *Service) completeTurn(t *txn, turn *domain.Turn) error {
	st := t.st
	player, ok := st.Player(turn.ActivePlayer)
	if !ok {
		return domain.ErrUnknownPlayer
	}
	turn.Complete(t.now)

	cleared := []string{}
	for _, f := range player.ExpireTurnFlags(turn.Index) {
		cleared = append(cleared, string(f))
	}
	t.log(turnRef(turn.Index), player.ID, ActionTurnEnd, map[string]any{"cleared_flags": cleared})

	if st.Session.Status.Closed() {
		return nil
	}
	return s.startTurn(t, turn.Index+1, domain.NextSeat(player.Seat, len(st.Players)))
}

// ResolveIdeology answers the offered ideology prompt. The chosen answer's rewards are paid, clamped
// to the resource cap, its ideologue is added to the tally and the turn moves on to influence.
func (s *Service) ResolveIdeology(ctx context.Context, a TurnAction, cardID string, choice domain.Choice) (*domain.SessionState, error) {
	return s.mutate(ctx, "ResolveIdeology", a.SessionID, a.ActorID, func(t *txn) error {
		st := t.st
		turn, err := requireTurn(st, a.TurnIndex, a.ActorID, domain.PhaseAwaitingIdeology)
		if err != nil {
			return err
		}
		if choice != domain.ChoiceA && choice != domain.ChoiceB {
			return fmt.Errorf("%w: choice %q", ErrInvalidInput, choice)
		}
		if !domain.Offers(turn.IdeologyPreview, cardID) {
			return domain.ErrCardNotOffered
		}
		card, ok := s.catalog.IdeologyCard(cardID)
		if !ok {
			return domain.ErrUnknownCard
		}
		answer, _ := card.Answer(choice)

		deck, err := st.Deck(domain.DeckIdeology)
		if err != nil {
			return err
		}
		if !deck.Take(cardID) {
			return domain.ErrCardNotOffered
		}

		player, ok := st.Player(a.ActorID)
		if !ok {
			return domain.ErrUnknownPlayer
		}
		clamped := domain.ClampBundle(domain.AddBundles(player.Resources, answer.Rewards))
		player.Resources = clamped.Bundle
		player.Ideologies = player.Ideologies.Increment(answer.Ideology)

		turn.IdeologyCardID = cardID
		turn.IdeologyChoice = choice
		if err := turn.Advance(domain.PhaseAwaitingInfluence); err != nil {
			return err
		}

		ref := turnRef(turn.Index)
		t.log(ref, a.ActorID, ActionIdeologyAnswer, map[string]any{
			"card_id":  cardID,
			"choice":   string(choice),
			"rewards":  answer.Rewards.Clone(),
			"ideology": string(answer.Ideology),
		})
		logCapDiscard(t, ref, a.ActorID, DiscardSourceIdeologyAnswer, clamped)
		return nil
	})
}

// PlaceVoters buys an offered vote-bank card and places its voters in zoneID. Placement may claim
// the zone, fill volatile slots (drawing a headline) and end the game. The turn then completes and
// the next seat's turn starts.
//
// An empty card id passes the influence step instead, allowed only when none of the offered cards
// can be paid for and placed in some zone (an exhausted pile offers none).
func (s *Service) PlaceVoters(ctx context.Context, a TurnAction, voteBankCardID, zoneID string) (*domain.SessionState, error) {
	return s.mutate(ctx, "PlaceVoters", a.SessionID, a.ActorID, func(t *txn) error {
		st := t.st
		turn, err := requireTurn(st, a.TurnIndex, a.ActorID, domain.PhaseAwaitingInfluence)
		if err != nil {
			return err
		}
		ref := turnRef(turn.Index)

		if voteBankCardID == "" {
			player, ok := st.Player(a.ActorID)
			if !ok {
				return domain.ErrUnknownPlayer
			}
			if s.canInfluence(st, player, turn.VoteBankPreview) {
				return domain.ErrCardNotOffered
			}
			t.log(ref, a.ActorID, ActionInfluencePassed, map[string]any{
				"vote_bank_preview": turn.VoteBankPreview,
				"resources":         player.Resources.Clone(),
			})
			return s.completeTurn(t, turn)
		}
		if !domain.Offers(turn.VoteBankPreview, voteBankCardID) {
			return domain.ErrCardNotOffered
		}
		card, ok := s.catalog.VoteBankCard(voteBankCardID)
		if !ok {
			return domain.ErrUnknownCard
		}
		zone, ok := s.catalog.Zone(zoneID)
		if !ok {
			return domain.ErrUnknownZone
		}
		player, ok := st.Player(a.ActorID)
		if !ok {
			return domain.ErrUnknownPlayer
		}

		player.Resources, err = domain.SubtractBundle(player.Resources, card.Cost)
		if err != nil {
			return err
		}
		placed, err := st.ZoneControl(zoneID).PlaceVoters(zone, a.ActorID, card.Voters)
		if err != nil {
			return err
		}

		deck, err := st.Deck(domain.DeckVoteBank)
		if err != nil {
			return err
		}
		if !deck.Take(voteBankCardID) {
			return domain.ErrCardNotOffered
		}

		t.log(ref, a.ActorID, ActionInfluenceVoters, map[string]any{
			"vote_bank_card_id":  voteBankCardID,
			"zone_id":            zoneID,
			"voters_added":       placed.VotersAdded,
			"resources_spent":    card.Cost.Clone(),
			"coalition_eligible": placed.CoalitionEligible,
			"slots_filled":       placed.SlotsFilled,
		})
		if placed.MajorityClaimed {
			t.log(ref, a.ActorID, ActionMajorityFormed, map[string]any{"zone_id": zoneID, "player_id": a.ActorID})
			s.logger.Info("PlaceVoters [Session:%s]: zone %s majority claimed by %s", st.Session.ID, zoneID, a.ActorID)
		}
		if placed.HeadlineTriggered {
			if err := s.triggerHeadline(t, a.ActorID, turn.Index); err != nil {
				return err
			}
		}
		s.evaluateEnd(t)
		return s.completeTurn(t, turn)
	})
}

// triggerHeadline draws the next headline and applies it to the player who filled the slot.
// An exhausted headline pile triggers nothing.
func (s *Service) triggerHeadline(t *txn, playerID string, turnIndex int) error {
	st := t.st
	deck, err := st.Deck(domain.DeckHeadline)
	if err != nil {
		return err
	}
	drawn := deck.Draw(1)
	if len(drawn) == 0 {
		s.logger.Debug("PlaceVoters [Session:%s]: headline pile exhausted", st.Session.ID)
		return nil
	}
	cardID := drawn[0]
	card, _ := s.catalog.HeadlineCard(cardID)

	result, err := domain.ApplyHeadline(st, cardID, domain.HeadlineContext{
		Zones:     s.catalog.Zones,
		PlayerID:  playerID,
		TurnIndex: turnIndex,
		Drain:     s.cfg.HeadlineResourceDrain,
	})
	if err != nil {
		return err
	}

	t.log(nil, playerID, ActionHeadlineTriggered, map[string]any{
		"headline_id": cardID,
		"title":       card.Title,
		"effect":      card.Effect,
		"sentiment":   card.Sentiment,
		"result":      result.Payload(),
	})
	s.logger.Info("PlaceVoters [Session:%s]: headline %q resolved as %s for %s", st.Session.ID, card.Title, result.Type, playerID)
	return nil
}

// canInfluence reports whether player can afford some offered vote-bank card that fits in at least
// one zone.
func (s *Service) canInfluence(st *domain.SessionState, player *domain.Player, preview []string) bool {
	for _, id := range preview {
		card, ok := s.catalog.VoteBankCard(id)
		if !ok || !domain.HasSufficient(player.Resources, card.Cost) {
			continue
		}
		for _, zone := range s.catalog.Zones {
			spare := zone.TotalVoters
			if zc, ok := st.Zones[zone.ID]; ok && zc != nil {
				spare = zc.Spare(zone)
			}
			if spare >= card.Voters {
				return true
			}
		}
	}
	return false
}
