package domain

import "math/rand"

// DeckType identifies one of the per-session draw piles.
type DeckType string

const (
	DeckIdeology   DeckType = "ideology"
	DeckVoteBank   DeckType = "vote_bank"
	DeckConspiracy DeckType = "conspiracy"
	DeckHeadline   DeckType = "headline"
)

// DeckTypes lists every deck a session holds.
var DeckTypes = [...]DeckType{DeckIdeology, DeckVoteBank, DeckConspiracy, DeckHeadline}

// Deck is an ordered draw pile plus the cards already drawn from it.
// Cards never return from Discard; an exhausted deck stays empty.
type Deck struct {
	Type    DeckType `json:"type"`
	Cards   []string `json:"cards"`
	Discard []string `json:"discard"`
}

// NewDeck returns a deck holding each id once, in an order produced by one uniform shuffle.
func NewDeck(t DeckType, ids []string, rng *rand.Rand) *Deck {
	seen := make(map[string]struct{}, len(ids))
	cards := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		cards = append(cards, id)
	}
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return &Deck{Type: t, Cards: cards, Discard: []string{}}
}

// Peek returns up to n leading ids without changing the deck.
func (d *Deck) Peek(n int) []string {
	if n <= 0 || len(d.Cards) == 0 {
		return []string{}
	}
	n = min(n, len(d.Cards))
	out := make([]string, n)
	copy(out, d.Cards[:n])
	return out
}

// Draw moves up to n leading ids to the discard pile and returns them.
func (d *Deck) Draw(n int) []string {
	drawn := d.Peek(n)
	d.Cards = d.Cards[len(drawn):]
	d.Discard = append(d.Discard, drawn...)
	return drawn
}

// Take discards a specific card from the draw pile, wherever it sits.
// It reports false when the card is not in the pile.
func (d *Deck) Take(id string) bool {
	for i, c := range d.Cards {
		if c != id {
			continue
		}
		d.Cards = append(d.Cards[:i:i], d.Cards[i+1:]...)
		d.Discard = append(d.Discard, id)
		return true
	}
	return false
}

// Remaining returns the number of cards left to draw.
func (d *Deck) Remaining() int {
	return len(d.Cards)
}

// Clone returns a deep copy of the deck.
func (d *Deck) Clone() *Deck {
	return &Deck{
		Type:    d.Type,
		Cards:   append([]string{}, d.Cards...),
		Discard: append([]string{}, d.Discard...),
	}
}
