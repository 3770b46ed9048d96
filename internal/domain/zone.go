package domain

import "sort"

// Coalition pools two players' voters in one zone. Split records each party's count when formed.
type Coalition struct {
	Players [2]string      `json:"players"`
	Split   map[string]int `json:"split"`
}

// VolatileSlot is a filled volatile slot and the player who filled it.
type VolatileSlot struct {
	Slot     int    `json:"slot"`
	PlayerID string `json:"player_id"`
}

// ZoneControl is the per-session state of one zone.
type ZoneControl struct {
	ZoneID          string         `json:"zone_id"`
	VoterCounts     map[string]int `json:"voter_counts"`
	MajorityOwner   string         `json:"majority_owner,omitempty"`
	Coalition       *Coalition     `json:"coalition,omitempty"`
	GerrymanderUses int            `json:"gerrymander_uses"`
	VolatileSlots   []VolatileSlot `json:"volatile_slots"`
}

// PlacementResult describes the outcome of PlaceVoters.
type PlacementResult struct {
	VotersAdded       int    `json:"voters_added"`
	MajorityOwner     string `json:"majority_owner,omitempty"`
	MajorityClaimed   bool   `json:"majority_claimed"`
	CoalitionEligible bool   `json:"coalition_eligible"`
	SlotsFilled       int    `json:"slots_filled"`
	HeadlineTriggered bool   `json:"headline_triggered"`
}

// NewZoneControl returns empty control state for a zone.
func NewZoneControl(zoneID string) *ZoneControl {
	return &ZoneControl{
		ZoneID:        zoneID,
		VoterCounts:   map[string]int{},
		VolatileSlots: []VolatileSlot{},
	}
}

// Placed returns the total voters in the zone.
func (zc *ZoneControl) Placed() int {
	total := 0
	for _, v := range zc.VoterCounts {
		total += v
	}
	return total
}

// Count returns the voters a player holds in the zone.
func (zc *ZoneControl) Count(playerID string) int {
	return zc.VoterCounts[playerID]
}

// HasMajority reports whether the recorded owner still meets the zone threshold.
func (zc *ZoneControl) HasMajority(zone Zone) bool {
	return zc.MajorityOwner != "" && zc.Count(zc.MajorityOwner) >= zone.MajorityRequired
}

// Spare returns how many more voters the zone can hold.
func (zc *ZoneControl) Spare(zone Zone) int {
	return max(0, zone.TotalVoters-zc.Placed())
}

// Clone returns a deep copy.
func (zc *ZoneControl) Clone() *ZoneControl {
	out := &ZoneControl{
		ZoneID:          zc.ZoneID,
		VoterCounts:     make(map[string]int, len(zc.VoterCounts)),
		MajorityOwner:   zc.MajorityOwner,
		GerrymanderUses: zc.GerrymanderUses,
		VolatileSlots:   append([]VolatileSlot{}, zc.VolatileSlots...),
	}
	for k, v := range zc.VoterCounts {
		out.VoterCounts[k] = v
	}
	if zc.Coalition != nil {
		c := &Coalition{Players: zc.Coalition.Players, Split: make(map[string]int, len(zc.Coalition.Split))}
		for k, v := range zc.Coalition.Split {
			c.Split[k] = v
		}
		out.Coalition = c
	}
	return out
}

// PlaceVoters adds n voters for player. The zone capacity is a hard limit. Filling at least one
// volatile slot triggers a headline, at most once per call. An existing coalition is left alone.
func (zc *ZoneControl) PlaceVoters(zone Zone, playerID string, n int) (PlacementResult, error) {
	if n <= 0 {
		return PlacementResult{MajorityOwner: zc.MajorityOwner}, nil
	}
	if zc.Placed()+n > zone.TotalVoters {
		return PlacementResult{}, ErrZoneCapacityExceeded
	}

	previousOwner := zc.MajorityOwner
	zc.VoterCounts[playerID] += n
	count := zc.VoterCounts[playerID]

	res := PlacementResult{VotersAdded: n}
	if count >= zone.MajorityRequired && previousOwner != playerID {
		res.MajorityClaimed = true
	}
	if count < zone.MajorityRequired && previousOwner != "" && previousOwner != playerID &&
		count+zc.Count(previousOwner) >= zone.MajorityRequired {
		res.CoalitionEligible = true
	}
	zc.settleMajority(zone, playerID)
	res.MajorityOwner = zc.MajorityOwner

	res.SlotsFilled = zc.fillVolatileSlots(zone, playerID, n)
	res.HeadlineTriggered = res.SlotsFilled > 0
	return res, nil
}

func (zc *ZoneControl) fillVolatileSlots(zone Zone, playerID string, voters int) int {
	filled := 0
	for len(zc.VolatileSlots) < zone.VolatileSlots && filled < voters {
		zc.VolatileSlots = append(zc.VolatileSlots, VolatileSlot{Slot: len(zc.VolatileSlots), PlayerID: playerID})
		filled++
	}
	return filled
}

// settleMajority keeps MajorityOwner consistent with the counts after a change that gained
// candidate voters. An owner who fell below the threshold is cleared; a candidate at or above
// the threshold holds the zone.
func (zc *ZoneControl) settleMajority(zone Zone, candidate string) {
	if zc.MajorityOwner != "" && zc.Count(zc.MajorityOwner) < zone.MajorityRequired {
		zc.MajorityOwner = ""
	}
	if candidate != "" && zc.Count(candidate) >= zone.MajorityRequired {
		zc.MajorityOwner = candidate
	}
}

// FormCoalition records a coalition between proposer and partner. The partner must own the
// majority, the proposer must hold voters, and together they must meet the threshold. Both
// tallies must hold an ideology to trade; the traded ideologies are returned and the caller is
// expected to remove them from each player's tally.
func (zc *ZoneControl) FormCoalition(zone Zone, proposer, partner string, proposerTally, partnerTally IdeologyTally) (Ideology, Ideology, error) {
	if proposer == "" || partner == "" || proposer == partner {
		return "", "", ErrInvalidPartner
	}
	if zc.Coalition != nil {
		return "", "", ErrCoalitionExists
	}
	if zc.MajorityOwner != partner {
		return "", "", ErrPartnerNotMajorityOwner
	}
	if zc.Count(proposer) < 1 {
		return "", "", ErrNoVotersInZone
	}
	if zc.Count(proposer)+zc.Count(partner) < zone.MajorityRequired {
		return "", "", ErrCoalitionThresholdNotMet
	}

	proposerIdeology, ok := DominantIdeology(proposerTally)
	if !ok {
		return "", "", ErrNoIdeologyToTrade
	}
	partnerIdeology, ok := DominantIdeology(partnerTally)
	if !ok {
		return "", "", ErrNoIdeologyToTrade
	}

	zc.Coalition = &Coalition{
		Players: [2]string{proposer, partner},
		Split: map[string]int{
			proposer: zc.Count(proposer),
			partner:  zc.Count(partner),
		},
	}
	return proposerIdeology, partnerIdeology, nil
}

// Gerrymander moves one of player's voters from source to target. skipPending is the player's
// skip-gerrymander flag; when set the move is refused with ErrGerrymanderSkipped.
func Gerrymander(sourceZone, targetZone Zone, source, target *ZoneControl, playerID string, skipPending bool) error {
	if source.Coalition != nil {
		return ErrCoalitionActive
	}
	if source.MajorityOwner != playerID {
		return ErrNotMajorityOwner
	}
	if skipPending {
		return ErrGerrymanderSkipped
	}
	if sourceZone.ID == targetZone.ID ||
		(!sourceZone.IsAdjacent(targetZone.ID) && !targetZone.IsAdjacent(sourceZone.ID)) {
		return ErrZonesNotAdjacent
	}
	if source.Count(playerID)-1 < sourceZone.MajorityRequired {
		return ErrMajorityLocked
	}
	if target.Spare(targetZone) < 1 {
		return ErrZoneCapacityExceeded
	}

	source.VoterCounts[playerID]--
	target.VoterCounts[playerID]++
	source.GerrymanderUses++
	target.settleMajority(targetZone, playerID)
	return nil
}

// GrantVoter adds one free voter for player if the zone has room.
func (zc *ZoneControl) GrantVoter(zone Zone, playerID string) bool {
	if zc.Spare(zone) < 1 {
		return false
	}
	zc.VoterCounts[playerID]++
	zc.settleMajority(zone, playerID)
	return true
}

// ConvertVoter turns one opposing voter into one of player's. Opponents are tried in the order
// given. It returns the converted opponent, or false when nobody else holds a voter.
func (zc *ZoneControl) ConvertVoter(zone Zone, playerID string, opponentOrder []string) (string, bool) {
	opponent := ""
	for _, id := range opponentOrder {
		if id != playerID && zc.Count(id) > 0 {
			opponent = id
			break
		}
	}
	if opponent == "" {
		// Counts may hold players missing from the order; fall back to a stable scan.
		ids := make([]string, 0, len(zc.VoterCounts))
		for id, count := range zc.VoterCounts {
			if id != playerID && count > 0 {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return "", false
		}
		sort.Strings(ids)
		opponent = ids[0]
	}

	zc.VoterCounts[opponent]--
	if zc.VoterCounts[opponent] == 0 {
		delete(zc.VoterCounts, opponent)
	}
	zc.VoterCounts[playerID]++
	zc.settleMajority(zone, playerID)
	return opponent, true
}
