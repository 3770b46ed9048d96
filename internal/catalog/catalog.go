// Package catalog loads the zone and card reference data sessions are played against.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"ballotbox/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// ErrInvalidCatalog wraps every validation failure.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Load reads and validates a catalog file.
func Load(path string) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*domain.Catalog, error) {
	var c domain.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the catalog compiled into the binary.
func Default() *domain.Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadOrDefault loads path, falling back to the embedded catalog when path is empty.
func LoadOrDefault(path string) (*domain.Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks every section of the catalog and reports all problems found.
func Validate(c *domain.Catalog) error {
	return errors.Join(
		ValidateZones(c.Zones),
		ValidateIdeologyCards(c.IdeologyCards),
		ValidateVoteBankCards(c.VoteBankCards),
		ValidateConspiracyCards(c.ConspiracyCards),
		ValidateHeadlineCards(c.HeadlineCards),
	)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}

func checkID(seen map[string]struct{}, kind, id string) error {
	if id == "" {
		return invalid("%s with empty id", kind)
	}
	if _, dup := seen[id]; dup {
		return invalid("duplicate %s id %q", kind, id)
	}
	seen[id] = struct{}{}
	return nil
}

// ValidateZones checks zone capacities and that adjacency only names known zones.
func ValidateZones(zones []domain.Zone) error {
	if len(zones) == 0 {
		return invalid("no zones defined")
	}

	var errs []error
	seen := map[string]struct{}{}
	for _, z := range zones {
		if err := checkID(seen, "zone", z.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		if z.TotalVoters <= 0 {
			errs = append(errs, invalid("zone %q has no voter capacity", z.ID))
		}
		if z.MajorityRequired <= 0 || z.MajorityRequired > z.TotalVoters {
			errs = append(errs, invalid("zone %q majority %d outside 1..%d", z.ID, z.MajorityRequired, z.TotalVoters))
		}
		if z.VolatileSlots < 0 || z.VolatileSlots > z.TotalVoters {
			errs = append(errs, invalid("zone %q volatile slots %d outside 0..%d", z.ID, z.VolatileSlots, z.TotalVoters))
		}
	}
	for _, z := range zones {
		for _, adj := range z.Adjacent {
			if _, ok := seen[adj]; !ok || adj == z.ID {
				errs = append(errs, invalid("zone %q lists unknown neighbour %q", z.ID, adj))
			}
		}
	}
	return errors.Join(errs...)
}

func checkBundle(owner string, b domain.Bundle) error {
	for r, v := range b {
		if !r.IsKnown() {
			return invalid("%s uses unknown resource %q", owner, r)
		}
		if v < 0 {
			return invalid("%s has negative %s", owner, r)
		}
	}
	return nil
}

// ValidateIdeologyCards checks answers name a known ideologue and resources.
func ValidateIdeologyCards(cards []domain.IdeologyCard) error {
	var errs []error
	seen := map[string]struct{}{}
	for _, card := range cards {
		if err := checkID(seen, "ideology card", card.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, choice := range []domain.Choice{domain.ChoiceA, domain.ChoiceB} {
			answer, _ := card.Answer(choice)
			owner := fmt.Sprintf("ideology card %q %s", card.ID, choice)
			if _, ok := domain.IdeologyResources[answer.Ideology]; !ok {
				errs = append(errs, invalid("%s has unknown ideologue %q", owner, answer.Ideology))
			}
			if err := checkBundle(owner, answer.Rewards); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ValidateVoteBankCards checks voter counts and costs.
func ValidateVoteBankCards(cards []domain.VoteBankCard) error {
	var errs []error
	seen := map[string]struct{}{}
	for _, card := range cards {
		if err := checkID(seen, "vote bank card", card.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		if card.Voters <= 0 {
			errs = append(errs, invalid("vote bank card %q places no voters", card.ID))
		}
		if err := checkBundle(fmt.Sprintf("vote bank card %q", card.ID), card.Cost); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateConspiracyCards checks conspiracy ids are unique and costs are not negative.
func ValidateConspiracyCards(cards []domain.ConspiracyCard) error {
	var errs []error
	seen := map[string]struct{}{}
	for _, card := range cards {
		if err := checkID(seen, "conspiracy card", card.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		if card.Cost < 0 {
			errs = append(errs, invalid("conspiracy card %q has negative cost", card.ID))
		}
	}
	return errors.Join(errs...)
}

// ValidateHeadlineCards checks headline ids are present and unique.
func ValidateHeadlineCards(cards []domain.HeadlineCard) error {
	var errs []error
	seen := map[string]struct{}{}
	for _, card := range cards {
		if err := checkID(seen, "headline card", card.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
