package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ballotbox/internal/app"
	"ballotbox/internal/catalog"
	"ballotbox/internal/config"
	"ballotbox/internal/domain"
	"ballotbox/internal/logging"
	"ballotbox/internal/store/sqlite"
)

var (
	createID   string
	logAfter   int64
	logLimit   int
	logReceipt bool
	logVerify  string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Seed, start and inspect sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <host-id> <player-id>...",
	Short: "Create a lobby session; seats follow argument order",
	Long: `Creates a session in the lobby. The host must be one of the seated players,
and seats are assigned in the order the players are given.

Example:
  ballotctl session create alice alice bob carol`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSessionCreate,
}

var sessionReadyCmd = &cobra.Command{
	Use:   "ready <session-id> <player-id>...",
	Short: "Mark players ready in the lobby",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSessionReady,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <session-id> <host-id>",
	Short: "Start the session, or the next turn once the current one has ended",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionStart,
}

var sessionLogCmd = &cobra.Command{
	Use:   "log <session-id>",
	Short: "Print a session's action log as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionLog,
}

// openService loads rules and reference data and opens the engine on the SQLite database.
func openService() (*app.Service, *sqlite.Store, *config.GameConfig, error) {
	if configPath != "" {
		if err := config.LoadGameConfig(configPath); err != nil {
			return nil, nil, nil, err
		}
	}
	cfg := config.GetGameConfig()

	path := catalogPath
	if path == "" {
		path = cfg.CatalogPath
	}
	cat, err := catalog.LoadOrDefault(path)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Debug("opened session store", zap.String("db", store.Path()))
	return app.NewService(store, cat, cfg, logging.NewZapLogger(logger), nil), store, cfg, nil
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	svc, store, _, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := svc.CreateSession(context.Background(), createID, args[0], args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created session %s with %d players\n", st.Session.ID, len(st.Players))
	return nil
}

func runSessionReady(cmd *cobra.Command, args []string) error {
	svc, store, _, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, player := range args[1:] {
		if _, err := svc.SetReady(context.Background(), args[0], player, true); err != nil {
			return fmt.Errorf("failed to ready %s: %w", player, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s ready\n", player)
	}
	return nil
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	svc, store, _, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := svc.StartTurn(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	offer := svc.CurrentOffer(st)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "turn %d: %s to act, %s reads (%s)\n",
		offer.Turn.Index, offer.Turn.ActivePlayer, offer.Turn.NeighborReader, offer.Turn.Phase)
	for _, c := range offer.IdeologyCards {
		fmt.Fprintf(out, "  ideology  %s  %s\n", c.ID, c.Prompt)
	}
	for _, c := range offer.VoteBankCards {
		fmt.Fprintf(out, "  vote bank %s  %s\n", c.ID, c.Title)
	}
	return nil
}

func runSessionLog(cmd *cobra.Command, args []string) error {
	svc, store, cfg, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()
	sessionID := args[0]

	if _, err := svc.SessionState(ctx, sessionID); err != nil {
		return err
	}

	var entries []domain.ActionLogEntry
	if logLimit > 0 {
		entries, err = svc.ActionLog(ctx, sessionID, logAfter, logLimit)
	} else {
		entries, err = svc.FullActionLog(ctx, sessionID)
		if err == nil && logAfter > 0 {
			entries = entriesAfter(entries, logAfter)
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}

	if !logReceipt && logVerify == "" {
		return nil
	}
	if auditSecret == "" {
		return errors.New("an audit secret is required for receipts")
	}
	full, err := svc.FullActionLog(ctx, sessionID)
	if err != nil {
		return err
	}
	audit := app.NewAuditService(auditSecret, cfg.AuditIssuer, time.Duration(cfg.AuditTTLSeconds)*time.Second)

	if logVerify != "" {
		receipt, err := audit.VerifyPrefix(logVerify, full)
		if err != nil {
			return fmt.Errorf("receipt rejected: %w", err)
		}
		fmt.Fprintf(out, "receipt valid: %d entries through seq %d\n", receipt.Entries, receipt.LastSeq)
		return nil
	}
	receipt, err := audit.Issue(sessionID, full)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "receipt: %s\n", receipt.Token)
	return nil
}

func entriesAfter(entries []domain.ActionLogEntry, after int64) []domain.ActionLogEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}
