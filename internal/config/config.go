package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// GameConfig holds the tunable rules of the engine.
type GameConfig struct {
	MinPlayers            int `json:"min_players"`
	MaxPlayers            int `json:"max_players"`
	ConspiracyDefaultCost int `json:"conspiracy_default_cost"`
	// ConspiracyBuyAttempts bounds how many unplayable cards a purchase may skip past.
	ConspiracyBuyAttempts int `json:"conspiracy_buy_attempts"`
	IdeologyPreviewSize   int `json:"ideology_preview_size"`
	VoteBankPreviewSize   int `json:"vote_bank_preview_size"`
	SummaryMaxLength      int `json:"summary_max_length"`
	HeadlineResourceDrain int `json:"headline_resource_drain"`

	CatalogPath     string `json:"catalog_path"`
	AuditIssuer     string `json:"audit_issuer"`
	AuditTTLSeconds int    `json:"audit_ttl_seconds"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// Default returns the standard rules.
func Default() *GameConfig {
	return &GameConfig{
		MinPlayers:            2,
		MaxPlayers:            5,
		ConspiracyDefaultCost: 4,
		ConspiracyBuyAttempts: 20,
		IdeologyPreviewSize:   1,
		VoteBankPreviewSize:   3,
		SummaryMaxLength:      500,
		HeadlineResourceDrain: 2,
		AuditIssuer:           "ballotbox",
		AuditTTLSeconds:       3600,
	}
}

// Parse decodes JSON over the defaults, so omitted fields keep their standard values.
func Parse(data []byte) (*GameConfig, error) {
	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *GameConfig) Validate() error {
	if c.MinPlayers < 2 || c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("invalid player bounds %d..%d", c.MinPlayers, c.MaxPlayers)
	}
	if c.IdeologyPreviewSize < 1 || c.VoteBankPreviewSize < 1 {
		return fmt.Errorf("preview sizes must be positive")
	}
	if c.ConspiracyDefaultCost < 0 || c.ConspiracyBuyAttempts < 1 {
		return fmt.Errorf("invalid conspiracy purchase settings")
	}
	if c.SummaryMaxLength < 0 || c.HeadlineResourceDrain < 0 || c.AuditTTLSeconds < 0 {
		return fmt.Errorf("negative limits are not allowed")
	}
	return nil
}

// ApplyEnv overrides fields from Nakama runtime environment keys prefixed with ballotbox_.
func (c *GameConfig) ApplyEnv(env map[string]string) error {
	ints := map[string]*int{
		"ballotbox_min_players":             &c.MinPlayers,
		"ballotbox_max_players":             &c.MaxPlayers,
		"ballotbox_conspiracy_default_cost": &c.ConspiracyDefaultCost,
		"ballotbox_conspiracy_buy_attempts": &c.ConspiracyBuyAttempts,
		"ballotbox_summary_max_length":      &c.SummaryMaxLength,
		"ballotbox_headline_resource_drain": &c.HeadlineResourceDrain,
		"ballotbox_audit_ttl_seconds":       &c.AuditTTLSeconds,
	}
	for key, dst := range ints {
		raw, ok := env[key]
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = v
	}
	if v := env["ballotbox_catalog_path"]; v != "" {
		c.CatalogPath = v
	}
	if v := env["ballotbox_audit_issuer"]; v != "" {
		c.AuditIssuer = v
	}
	return c.Validate()
}

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		c, err := Parse(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or the defaults if none was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return Default()
	}
	return cfg
}
