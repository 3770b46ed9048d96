package domain

// ConspiracyEffect enumerates the conspiracy handlers the engine knows about.
type ConspiracyEffect int

const (
	EffectMediaSmear ConspiracyEffect = iota + 1
	EffectBackroomBargain
)

func (e ConspiracyEffect) String() string {
	switch e {
	case EffectMediaSmear:
		return "media_smear"
	case EffectBackroomBargain:
		return "backroom_bargain"
	default:
		return "unknown"
	}
}

// Conspiracy card ids with registered effects.
const (
	MediaSmearCardID      = "40404040-dddd-4ddd-8ddd-dddddddddddd"
	BackroomBargainCardID = "30303030-cccc-4ccc-8ccc-cccccccccccc"
)

// ConspiracyEffectConfig describes a registered conspiracy card.
type ConspiracyEffectConfig struct {
	Effect         ConspiracyEffect
	RequiresTarget bool
	Implemented    bool
	Instructions   string
}

var conspiracyEffects = map[string]ConspiracyEffectConfig{
	MediaSmearCardID: {
		Effect:         EffectMediaSmear,
		RequiresTarget: true,
		Implemented:    true,
		Instructions:   "Pick an opponent to strip 1 media and silence their next conspiracy play.",
	},
	BackroomBargainCardID: {
		Effect:         EffectBackroomBargain,
		RequiresTarget: true,
		Implemented:    false,
		Instructions:   "Trade two resources with another player without their approval.",
	},
}

// ConspiracyEffectFor returns the registry entry for cardID.
func ConspiracyEffectFor(cardID string) (ConspiracyEffectConfig, bool) {
	cfg, ok := conspiracyEffects[cardID]
	return cfg, ok
}

// ConspiracyAvailable reports whether cardID is registered and implemented.
func ConspiracyAvailable(cardID string) bool {
	cfg, ok := conspiracyEffects[cardID]
	return ok && cfg.Implemented
}

// EffectResult describes exactly what an effect changed.
type EffectResult struct {
	Type   string         `json:"type"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Payload flattens the result for the action log.
func (r EffectResult) Payload() map[string]any {
	out := map[string]any{"type": r.Type}
	for k, v := range r.Detail {
		out[k] = v
	}
	return out
}

// ApplyConspiracy resolves cardID played by actor against st.
func ApplyConspiracy(st *SessionState, cardID, actorID, targetID string, turnIndex int) (EffectResult, error) {
	cfg, ok := ConspiracyEffectFor(cardID)
	if !ok || !cfg.Implemented {
		return EffectResult{}, ErrEffectNotAvailable
	}
	if cfg.RequiresTarget && targetID == "" {
		return EffectResult{}, ErrTargetRequired
	}

	switch cfg.Effect {
	case EffectMediaSmear:
		return mediaSmear(st, actorID, targetID, turnIndex)
	case EffectBackroomBargain:
		return EffectResult{}, ErrEffectNotAvailable
	default:
		return EffectResult{}, ErrEffectNotAvailable
	}
}

func mediaSmear(st *SessionState, actorID, targetID string, turnIndex int) (EffectResult, error) {
	if targetID == actorID {
		return EffectResult{}, ErrInvalidTarget
	}
	target, ok := st.Player(targetID)
	if !ok {
		return EffectResult{}, ErrUnknownPlayer
	}

	var removed int
	target.Resources, removed = RemoveUpTo(target.Resources, Media, 1)
	target.SetFlag(FlagSkipConspiracyPlay, turnIndex)

	return EffectResult{
		Type: EffectMediaSmear.String(),
		Detail: map[string]any{
			"target_id":     targetID,
			"media_removed": removed,
		},
	}, nil
}

// HeadlineEffect enumerates headline handlers.
type HeadlineEffect int

const (
	HeadlineLoggedOnly HeadlineEffect = iota
	HeadlineResourceDrain
	HeadlineMediaGag
	HeadlineBonusVoter
	HeadlineVoterConversion
	HeadlineHandReveal
)

var headlineEffects = map[string]HeadlineEffect{
	"aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa": HeadlineResourceDrain,
	"bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb": HeadlineBonusVoter,
	"cccccccc-cccc-4ccc-8ccc-cccccccccccc": HeadlineMediaGag,
	"dddddddd-dddd-4ddd-8ddd-dddddddddddd": HeadlineVoterConversion,
	"eeeeeeee-eeee-4eee-8eee-eeeeeeeeeeee": HeadlineHandReveal,
}

// HeadlineEffectFor returns the handler for a headline card. Unknown ids are logged only.
func HeadlineEffectFor(cardID string) HeadlineEffect {
	if e, ok := headlineEffects[cardID]; ok {
		return e
	}
	return HeadlineLoggedOnly
}

// HeadlineContext carries what a headline handler needs besides the session state.
type HeadlineContext struct {
	Zones     []Zone
	PlayerID  string
	TurnIndex int
	// Drain is how many generic resources HeadlineResourceDrain removes.
	Drain int
}

// ApplyHeadline resolves cardID for the player who triggered it. Headlines never fail on the
// player's holdings; a player with less than the drain amount loses what they have.
func ApplyHeadline(st *SessionState, cardID string, hc HeadlineContext) (EffectResult, error) {
	player, ok := st.Player(hc.PlayerID)
	if !ok {
		return EffectResult{}, ErrUnknownPlayer
	}

	switch HeadlineEffectFor(cardID) {
	case HeadlineResourceDrain:
		var removed Bundle
		player.Resources, removed = DrainGeneric(player.Resources, hc.Drain)
		return EffectResult{Type: "resources_removed", Detail: map[string]any{
			"amount":  removed.Total(),
			"removed": removed,
		}}, nil

	case HeadlineMediaGag:
		var removed int
		player.Resources, removed = RemoveUpTo(player.Resources, Media, 1)
		player.SetFlag(FlagSkipGerrymander, hc.TurnIndex)
		return EffectResult{Type: "media_loss_and_skip", Detail: map[string]any{
			"media_removed": removed,
		}}, nil

	case HeadlineBonusVoter:
		zoneID, granted := grantBonusVoter(st, hc)
		return EffectResult{Type: "bonus_voter", Detail: map[string]any{
			"zone_id": nullable(zoneID, granted),
		}}, nil

	case HeadlineVoterConversion:
		for _, zone := range hc.Zones {
			zc, ok := st.Zones[zone.ID]
			if !ok {
				continue
			}
			if from, converted := zc.ConvertVoter(zone, hc.PlayerID, st.SeatOrder()); converted {
				return EffectResult{Type: "convert_voter", Detail: map[string]any{
					"zone_id":        zone.ID,
					"converted_from": from,
				}}, nil
			}
		}
		zoneID, granted := grantBonusVoter(st, hc)
		return EffectResult{Type: "convert_voter", Detail: map[string]any{
			"zone_id":  nullable(zoneID, granted),
			"fallback": "bonus_voter",
		}}, nil

	case HeadlineHandReveal:
		player.SetFlag(FlagRevealHand, hc.TurnIndex)
		return EffectResult{Type: "reveal_hand", Detail: map[string]any{
			"hand": append([]string{}, player.Hand...),
		}}, nil

	default:
		return EffectResult{Type: "logged_only"}, nil
	}
}

func grantBonusVoter(st *SessionState, hc HeadlineContext) (string, bool) {
	for _, zone := range hc.Zones {
		zc, ok := st.Zones[zone.ID]
		if !ok {
			zc = NewZoneControl(zone.ID)
		}
		if !zc.GrantVoter(zone, hc.PlayerID) {
			continue
		}
		if st.Zones == nil {
			st.Zones = map[string]*ZoneControl{}
		}
		st.Zones[zone.ID] = zc
		return zone.ID, true
	}
	return "", false
}

func nullable(s string, ok bool) any {
	if !ok {
		return nil
	}
	return s
}
