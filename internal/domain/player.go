package domain

// Flag is a transient penalty or marker carried by a player.
type Flag string

const (
	// FlagSkipConspiracyPlay silences the next conspiracy play attempt.
	FlagSkipConspiracyPlay Flag = "skip_conspiracy_play"
	// FlagSkipGerrymander refuses the next gerrymander attempt.
	FlagSkipGerrymander Flag = "skip_gerrymander"
	// FlagRevealHand shows the player's conspiracy hand to the table.
	FlagRevealHand Flag = "reveal_hand"
)

// NoTurn marks a flag set outside any turn.
const NoTurn = -1

// Player holds one seat's state within a session.
type Player struct {
	ID         string        `json:"id"`
	Seat       int           `json:"seat"`
	Ready      bool          `json:"ready"`
	Resources  Bundle        `json:"resources"`
	Ideologies IdeologyTally `json:"ideologies"`
	Hand       []string      `json:"hand"`
	// Flags maps each active flag to the index of the turn during which it was set.
	Flags map[Flag]int `json:"flags"`
}

// NewPlayer returns a player with empty holdings.
func NewPlayer(id string, seat int) *Player {
	return &Player{
		ID:         id,
		Seat:       seat,
		Resources:  Bundle{},
		Ideologies: IdeologyTally{},
		Hand:       []string{},
		Flags:      map[Flag]int{},
	}
}

// HasFlag reports whether f is set. Flags set during a turn outlive that turn's end.
func (p *Player) HasFlag(f Flag) bool {
	_, ok := p.Flags[f]
	return ok
}

// SetFlag marks f as set during turnIndex.
func (p *Player) SetFlag(f Flag, turnIndex int) {
	if p.Flags == nil {
		p.Flags = map[Flag]int{}
	}
	p.Flags[f] = turnIndex
}

// ClearFlag removes f and reports whether it was set.
func (p *Player) ClearFlag(f Flag) bool {
	if !p.HasFlag(f) {
		return false
	}
	delete(p.Flags, f)
	return true
}

// ExpireTurnFlags clears the turn-scoped flags that were set before endingTurn.
// A flag set during endingTurn itself survives until the player's next turn ends.
func (p *Player) ExpireTurnFlags(endingTurn int) []Flag {
	var cleared []Flag
	for _, f := range []Flag{FlagSkipGerrymander, FlagRevealHand} {
		setAt, ok := p.Flags[f]
		if !ok || setAt == endingTurn {
			continue
		}
		delete(p.Flags, f)
		cleared = append(cleared, f)
	}
	return cleared
}

// HandIndex returns the position of cardID in the hand or -1.
func (p *Player) HandIndex(cardID string) int {
	for i, id := range p.Hand {
		if id == cardID {
			return i
		}
	}
	return -1
}

// RemoveFromHand drops the first copy of cardID from the hand.
func (p *Player) RemoveFromHand(cardID string) bool {
	i := p.HandIndex(cardID)
	if i < 0 {
		return false
	}
	p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
	return true
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	out := *p
	out.Resources = p.Resources.Clone()
	out.Ideologies = p.Ideologies.Clone()
	out.Hand = append([]string{}, p.Hand...)
	out.Flags = make(map[Flag]int, len(p.Flags))
	for k, v := range p.Flags {
		out.Flags[k] = v
	}
	return &out
}
