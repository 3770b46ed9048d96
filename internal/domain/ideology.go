package domain

import "sort"

// Ideology identifies an ideologue card family.
type Ideology string

const (
	Capitalist Ideology = "capitalist"
	Showman    Ideology = "showman"
	Supremo    Ideology = "supremo"
	Idealist   Ideology = "idealist"
)

// IdeologyOrder is the tie-break order for DominantIdeology.
var IdeologyOrder = [...]Ideology{Capitalist, Showman, Supremo, Idealist}

// IdeologyResources maps each ideologue to the resource its passive income yields.
var IdeologyResources = map[Ideology]Resource{
	Capitalist: Funds,
	Showman:    Media,
	Supremo:    Clout,
	Idealist:   Trust,
}

// IdeologyTally counts ideology cards a player has answered.
type IdeologyTally map[Ideology]int

// Clone returns a copy of the tally with zero entries dropped.
func (t IdeologyTally) Clone() IdeologyTally {
	out := make(IdeologyTally, len(t))
	for k, v := range t {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

// Increment returns a copy of the tally with ideology counted once more.
// An empty ideology leaves the tally unchanged.
func (t IdeologyTally) Increment(ideology Ideology) IdeologyTally {
	out := t.Clone()
	if ideology == "" {
		return out
	}
	out[ideology]++
	return out
}

// Decrement returns a copy of the tally with one ideology card removed, never below zero.
func (t IdeologyTally) Decrement(ideology Ideology) IdeologyTally {
	out := t.Clone()
	if out[ideology] > 1 {
		out[ideology]--
	} else {
		delete(out, ideology)
	}
	return out
}

// PassiveIncome yields one unit of an ideologue's resource for every two cards of that ideology.
func PassiveIncome(t IdeologyTally) Bundle {
	income := Bundle{}
	for ideology, count := range t {
		resource, ok := IdeologyResources[ideology]
		if !ok {
			continue
		}
		if gain := count / 2; gain > 0 {
			income[resource] += gain
		}
	}
	return income
}

// DominantIdeology returns the most held ideology. Ties go to the ideologue listed first in
// IdeologyOrder, then to the lexically smaller name. It returns false when nothing is held.
func DominantIdeology(t IdeologyTally) (Ideology, bool) {
	rank := func(i Ideology) int {
		for idx, k := range IdeologyOrder {
			if k == i {
				return idx
			}
		}
		return len(IdeologyOrder)
	}

	candidates := make([]Ideology, 0, len(t))
	for k, v := range t {
		if v > 0 {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if t[a] != t[b] {
			return t[a] > t[b]
		}
		if rank(a) != rank(b) {
			return rank(a) < rank(b)
		}
		return a < b
	})
	return candidates[0], true
}
