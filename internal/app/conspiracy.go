package app

import (
	"context"

	"ballotbox/internal/domain"
)

// BuyConspiracy draws the next playable conspiracy card into the actor's hand, paying its cost
// with generic resources. Cards without a working effect are drawn past, up to the configured
// number of attempts.
func (s *Service) BuyConspiracy(ctx context.Context, a TurnAction) (*domain.SessionState, error) {
	return s.mutate(ctx, "BuyConspiracy", a.SessionID, a.ActorID, func(t *txn) error {
		st := t.st
		turn, err := requireTurn(st, a.TurnIndex, a.ActorID, domain.OpenPhases...)
		if err != nil {
			return err
		}
		player, ok := st.Player(a.ActorID)
		if !ok {
			return domain.ErrUnknownPlayer
		}
		deck, err := st.Deck(domain.DeckConspiracy)
		if err != nil {
			return err
		}

		for attempt := 0; attempt < s.cfg.ConspiracyBuyAttempts; attempt++ {
			next := deck.Peek(1)
			if len(next) == 0 {
				return domain.ErrNoConspiracyCards
			}
			card, ok := s.catalog.ConspiracyCard(next[0])
			if !ok || !domain.ConspiracyAvailable(card.ID) {
				deck.Draw(1)
				continue
			}

			cost := card.Cost
			if cost == 0 {
				cost = s.cfg.ConspiracyDefaultCost
			}
			before := player.Resources
			player.Resources, err = domain.SpendGeneric(player.Resources, cost)
			if err != nil {
				return err
			}
			deck.Draw(1)
			player.Hand = append(player.Hand, card.ID)

			t.log(turnRef(turn.Index), a.ActorID, ActionBuyConspiracy, map[string]any{
				"card_id":         card.ID,
				"title":           card.Title,
				"cost":            cost,
				"resources_spent": spentBetween(before, player.Resources),
			})
			return nil
		}
		return domain.ErrNoConspiracyCards
	})
}

// PlayConspiracy resolves a conspiracy card from the actor's hand. A silenced player loses the
// attempt: the silence is lifted, the card stays in hand and ErrPlaySilenced is returned.
func (s *Service) PlayConspiracy(ctx context.Context, a TurnAction, cardID, targetID string) (*domain.SessionState, error) {
	return s.mutate(ctx, "PlayConspiracy", a.SessionID, a.ActorID, func(t *txn) error {
		st := t.st
		turn, err := requireTurn(st, a.TurnIndex, a.ActorID, domain.OpenPhases...)
		if err != nil {
			return err
		}
		player, ok := st.Player(a.ActorID)
		if !ok {
			return domain.ErrUnknownPlayer
		}
		if player.HandIndex(cardID) < 0 {
			return domain.ErrCardNotInHand
		}

		ref := turnRef(turn.Index)
		if player.ClearFlag(domain.FlagSkipConspiracyPlay) {
			t.log(ref, a.ActorID, ActionConspiracySilenced, map[string]any{"card_id": cardID})
			return consumed(domain.ErrPlaySilenced)
		}

		result, err := domain.ApplyConspiracy(st, cardID, a.ActorID, targetID, turn.Index)
		if err != nil {
			return err
		}
		player.RemoveFromHand(cardID)

		card, _ := s.catalog.ConspiracyCard(cardID)
		t.log(ref, a.ActorID, ActionPlayConspiracy, map[string]any{
			"card_id":   cardID,
			"title":     card.Title,
			"target_id": targetID,
			"effect":    result.Payload(),
		})
		return nil
	})
}

func spentBetween(before, after domain.Bundle) domain.Bundle {
	out := domain.Bundle{}
	for k, v := range before {
		if d := v - after[k]; d > 0 {
			out[k] = d
		}
	}
	return out
}
