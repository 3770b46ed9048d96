package app

import (
	"context"
	"errors"

	"ballotbox/internal/domain"
)

// FormCoalition pools the actor's voters with the zone's majority owner. Each party gives up one
// unit of its dominant ideology. Coalitions are not tied to a turn.
func (s *Service) FormCoalition(ctx context.Context, sessionID, actorID, zoneID, partnerID string) (*domain.SessionState, error) {
	return s.mutate(ctx, "FormCoalition", sessionID, actorID, func(t *txn) error {
		st := t.st
		if err := requireActive(st); err != nil {
			return err
		}
		zone, ok := s.catalog.Zone(zoneID)
		if !ok {
			return domain.ErrUnknownZone
		}
		proposer, ok := st.Player(actorID)
		if !ok {
			return domain.ErrUnknownPlayer
		}
		if partnerID == "" || partnerID == actorID {
			return domain.ErrInvalidPartner
		}
		partner, ok := st.Player(partnerID)
		if !ok {
			return domain.ErrUnknownPlayer
		}

		zc := st.ZoneControl(zoneID)
		proposerIdeology, partnerIdeology, err := zc.FormCoalition(zone, actorID, partnerID, proposer.Ideologies, partner.Ideologies)
		if err != nil {
			return err
		}
		proposer.Ideologies = proposer.Ideologies.Decrement(proposerIdeology)
		partner.Ideologies = partner.Ideologies.Decrement(partnerIdeology)

		t.log(nil, actorID, ActionCoalitionFormed, map[string]any{
			"zone_id": zoneID,
			"players": []string{actorID, partnerID},
			"ideologies_traded": map[string]string{
				actorID:   string(proposerIdeology),
				partnerID: string(partnerIdeology),
			},
		})
		s.logger.Info("FormCoalition [Session:%s]: %s and %s share %s", st.Session.ID, actorID, partnerID, zoneID)
		return nil
	})
}

// Gerrymander moves one of the actor's voters from a zone they control into an adjacent zone.
// A pending skip-gerrymander penalty is consumed instead, returning ErrGerrymanderSkipped.
func (s *Service) Gerrymander(ctx context.Context, a TurnAction, sourceZoneID, targetZoneID string) (*domain.SessionState, error) {
	return s.mutate(ctx, "Gerrymander", a.SessionID, a.ActorID, func(t *txn) error {
		st := t.st
		turn, err := requireTurn(st, a.TurnIndex, a.ActorID, domain.OpenPhases...)
		if err != nil {
			return err
		}
		sourceZone, ok := s.catalog.Zone(sourceZoneID)
		if !ok {
			return domain.ErrUnknownZone
		}
		targetZone, ok := s.catalog.Zone(targetZoneID)
		if !ok {
			return domain.ErrUnknownZone
		}
		player, ok := st.Player(a.ActorID)
		if !ok {
			return domain.ErrUnknownPlayer
		}

		source := st.ZoneControl(sourceZoneID)
		target := st.ZoneControl(targetZoneID)
		previousOwner := target.MajorityOwner

		ref := turnRef(turn.Index)
		err = domain.Gerrymander(sourceZone, targetZone, source, target, a.ActorID, player.HasFlag(domain.FlagSkipGerrymander))
		if errors.Is(err, domain.ErrGerrymanderSkipped) {
			player.ClearFlag(domain.FlagSkipGerrymander)
			t.log(ref, a.ActorID, ActionGerrymanderSkipped, map[string]any{"from": sourceZoneID, "to": targetZoneID})
			return consumed(err)
		}
		if err != nil {
			return err
		}

		t.log(ref, a.ActorID, ActionGerrymander, map[string]any{"from": sourceZoneID, "to": targetZoneID})
		if target.MajorityOwner == a.ActorID && previousOwner != a.ActorID {
			t.log(ref, a.ActorID, ActionMajorityFormed, map[string]any{"zone_id": targetZoneID, "player_id": a.ActorID})
		}
		s.evaluateEnd(t)
		return nil
	})
}
