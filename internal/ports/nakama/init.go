package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"ballotbox/internal/app"
	"ballotbox/internal/catalog"
	"ballotbox/internal/config"
)

// InitModule loads configuration and reference data, builds the engine on Nakama storage and
// registers its RPCs.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	cfg, err := loadConfig(env)
	if err != nil {
		logger.Error("InitModule: invalid game config: %v", err)
		return err
	}
	cat, err := catalog.LoadOrDefault(cfg.CatalogPath)
	if err != nil {
		logger.Error("InitModule: failed to load catalog %q: %v", cfg.CatalogPath, err)
		return err
	}

	secret := env[envAuditSecret]
	if secret == "" {
		logger.Warn("Audit secret missing from env, audit receipts are disabled.")
		auditService = nil
	} else {
		auditService = app.NewAuditService(secret, cfg.AuditIssuer, time.Duration(cfg.AuditTTLSeconds)*time.Second)
	}
	ballotService = app.NewService(NewStore(nk), cat, cfg, logger, nil)

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"zones":      len(cat.Zones),
		"conspiracy": len(cat.ConspiracyCards),
	}).Info("Ballot box Go module loaded.")
	return nil
}

// loadConfig reads the JSON rules file named by the environment, if any, and applies env overrides
// on a copy so the process-wide config is left untouched.
func loadConfig(env map[string]string) (*config.GameConfig, error) {
	if path := env[envConfigPath]; path != "" {
		if err := config.LoadGameConfig(path); err != nil {
			return nil, err
		}
	}
	cfg := *config.GetGameConfig()
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	return &cfg, nil
}
