package domain

// Choice selects one of the two answers printed on an ideology card.
type Choice string

const (
	ChoiceA Choice = "answer_a"
	ChoiceB Choice = "answer_b"
)

// Answer is one side of an ideology prompt.
type Answer struct {
	Text     string   `yaml:"text" json:"text"`
	Ideology Ideology `yaml:"ideologue" json:"ideologue"`
	Rewards  Bundle   `yaml:"resources" json:"resources"`
}

// IdeologyCard is a prompt read aloud by the neighbor reader.
type IdeologyCard struct {
	ID      string `yaml:"id" json:"id"`
	Prompt  string `yaml:"prompt" json:"prompt"`
	AnswerA Answer `yaml:"answer_a" json:"answer_a"`
	AnswerB Answer `yaml:"answer_b" json:"answer_b"`
}

// Answer returns the answer for choice.
func (c IdeologyCard) Answer(choice Choice) (Answer, bool) {
	switch choice {
	case ChoiceA:
		return c.AnswerA, true
	case ChoiceB:
		return c.AnswerB, true
	default:
		return Answer{}, false
	}
}

// VoteBankCard places Voters into a zone for Cost.
type VoteBankCard struct {
	ID         string `yaml:"id" json:"id"`
	Title      string `yaml:"title" json:"title"`
	Voters     int    `yaml:"voters" json:"voters"`
	Cost       Bundle `yaml:"cost" json:"cost"`
	MarkedCost string `yaml:"marked_cost" json:"marked_cost,omitempty"`
}

// ConspiracyCard is bought with generic resources and played for its registered effect.
// A zero Cost means the configured default applies.
type ConspiracyCard struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Cost        int    `yaml:"cost" json:"cost"`
	Description string `yaml:"description" json:"description"`
}

// HeadlineCard is drawn when a volatile slot fills.
type HeadlineCard struct {
	ID        string `yaml:"id" json:"id"`
	Title     string `yaml:"title" json:"title"`
	Effect    string `yaml:"effect" json:"effect"`
	Sentiment string `yaml:"sentiment" json:"sentiment"`
}

// Zone is immutable board reference data.
type Zone struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"display_name" json:"display_name"`
	TotalVoters      int      `yaml:"total_voters" json:"total_voters"`
	MajorityRequired int      `yaml:"majority_required" json:"majority_required"`
	VolatileSlots    int      `yaml:"volatile_slots" json:"volatile_slots"`
	Adjacent         []string `yaml:"adjacency" json:"adjacency"`
}

// IsAdjacent reports whether other is listed as a neighbour of z.
func (z Zone) IsAdjacent(other string) bool {
	for _, id := range z.Adjacent {
		if id == other {
			return true
		}
	}
	return false
}

// Catalog is the reference data every session is played against.
type Catalog struct {
	Zones           []Zone           `yaml:"zones" json:"zones"`
	IdeologyCards   []IdeologyCard   `yaml:"ideology_cards" json:"ideology_cards"`
	VoteBankCards   []VoteBankCard   `yaml:"vote_bank_cards" json:"vote_bank_cards"`
	ConspiracyCards []ConspiracyCard `yaml:"conspiracy_cards" json:"conspiracy_cards"`
	HeadlineCards   []HeadlineCard   `yaml:"headline_cards" json:"headline_cards"`
}

// Zone looks up a zone by id.
func (c *Catalog) Zone(id string) (Zone, bool) {
	for _, z := range c.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// IdeologyCard looks up an ideology card by id.
func (c *Catalog) IdeologyCard(id string) (IdeologyCard, bool) {
	for _, card := range c.IdeologyCards {
		if card.ID == id {
			return card, true
		}
	}
	return IdeologyCard{}, false
}

// VoteBankCard looks up a vote bank card by id.
func (c *Catalog) VoteBankCard(id string) (VoteBankCard, bool) {
	for _, card := range c.VoteBankCards {
		if card.ID == id {
			return card, true
		}
	}
	return VoteBankCard{}, false
}

// ConspiracyCard looks up a conspiracy card by id.
func (c *Catalog) ConspiracyCard(id string) (ConspiracyCard, bool) {
	for _, card := range c.ConspiracyCards {
		if card.ID == id {
			return card, true
		}
	}
	return ConspiracyCard{}, false
}

// HeadlineCard looks up a headline card by id.
func (c *Catalog) HeadlineCard(id string) (HeadlineCard, bool) {
	for _, card := range c.HeadlineCards {
		if card.ID == id {
			return card, true
		}
	}
	return HeadlineCard{}, false
}

// CardIDs lists every reference id for a deck type in catalog order.
// Conspiracy ids are filtered to effects that are implemented so nothing unplayable circulates.
func (c *Catalog) CardIDs(t DeckType) []string {
	var ids []string
	switch t {
	case DeckIdeology:
		for _, card := range c.IdeologyCards {
			ids = append(ids, card.ID)
		}
	case DeckVoteBank:
		for _, card := range c.VoteBankCards {
			ids = append(ids, card.ID)
		}
	case DeckConspiracy:
		for _, card := range c.ConspiracyCards {
			if ConspiracyAvailable(card.ID) {
				ids = append(ids, card.ID)
			}
		}
	case DeckHeadline:
		for _, card := range c.HeadlineCards {
			ids = append(ids, card.ID)
		}
	}
	return ids
}
