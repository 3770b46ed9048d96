package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"

	"ballotbox/internal/app"
	"ballotbox/internal/domain"
)

var (
	ballotService *app.Service
	auditService  *app.AuditService
)

// RegisterRPCs registers every ballot box RPC with the Nakama initializer.
func RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcCreateSession:   RpcCreateSessionHandler,
		RpcSetReady:        RpcSetReadyHandler,
		RpcStartTurn:       RpcStartTurnHandler,
		RpcResolveIdeology: RpcResolveIdeologyHandler,
		RpcPlaceVoters:     RpcPlaceVotersHandler,
		RpcBuyConspiracy:   RpcBuyConspiracyHandler,
		RpcPlayConspiracy:  RpcPlayConspiracyHandler,
		RpcFormCoalition:   RpcFormCoalitionHandler,
		RpcGerrymander:     RpcGerrymanderHandler,
		RpcCompleteSession: RpcCompleteSessionHandler,
		RpcSessionState:    RpcSessionStateHandler,
		RpcActionLog:       RpcActionLogHandler,
		RpcAuditReceipt:    RpcAuditReceiptHandler,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

// callerID returns the authenticated user and fails when the service is not wired or the call
// carries no user.
func callerID(ctx context.Context) (string, error) {
	if ballotService == nil {
		return "", errNotInitialized
	}
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", errUnauthenticated
	}
	return userID, nil
}

func decodePayload(payload string, v any) error {
	if payload == "" {
		payload = "{}"
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return errInvalidPayload
	}
	return nil
}

// turnRequest identifies the turn an intent was made against.
type turnRequest struct {
	SessionID string `json:"session_id"`
	TurnIndex int    `json:"turn_index"`
}

func (r turnRequest) action(userID string) app.TurnAction {
	return app.TurnAction{SessionID: r.SessionID, ActorID: userID, TurnIndex: r.TurnIndex}
}

// respondState renders the state returned by a mutation, or the mapped error.
func respondState(logger runtime.Logger, op, sessionID, userID string, st *domain.SessionState, err error) (string, error) {
	if err != nil {
		return "", rpcError(logger, op, sessionID, userID, err)
	}
	logger.Debug("%s [Session:%s User:%s]: committed revision %s", op, sessionID, userID, st.Revision)
	out, err := encodeResponse(sessionToView(st, ballotService.CurrentOffer(st), userID))
	if err != nil {
		return "", rpcError(logger, op, sessionID, userID, err)
	}
	return out, nil
}

// RpcCreateSessionHandler seeds a lobby session hosted by the caller.
// Payload: {"session_id": "optional", "roster": ["user-1", "user-2"]}
func RpcCreateSessionHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		SessionID string   `json:"session_id"`
		Roster    []string `json:"roster"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.CreateSession(ctx, req.SessionID, userID, req.Roster)
	if err != nil {
		return "", rpcError(logger, "RpcCreateSession", req.SessionID, userID, err)
	}
	logger.Info("RpcCreateSession [Session:%s User:%s]: created with %d players", st.Session.ID, userID, len(st.Players))
	return respondState(logger, "RpcCreateSession", st.Session.ID, userID, st, nil)
}

// RpcSetReadyHandler toggles the caller's readiness in the lobby.
// Payload: {"session_id": "...", "ready": true}
func RpcSetReadyHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		SessionID string `json:"session_id"`
		Ready     bool   `json:"ready"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.SetReady(ctx, req.SessionID, userID, req.Ready)
	return respondState(logger, "RpcSetReady", req.SessionID, userID, st, err)
}

// RpcStartTurnHandler starts the session or the next turn. Host only.
// Payload: {"session_id": "..."}
func RpcStartTurnHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.StartTurn(ctx, req.SessionID, userID)
	return respondState(logger, "RpcStartTurn", req.SessionID, userID, st, err)
}

// RpcResolveIdeologyHandler answers the offered ideology prompt.
// Payload: {"session_id": "...", "turn_index": 0, "card_id": "...", "choice": "answer_a"}
func RpcResolveIdeologyHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		turnRequest
		CardID string        `json:"card_id"`
		Choice domain.Choice `json:"choice"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.ResolveIdeology(ctx, req.action(userID), req.CardID, req.Choice)
	return respondState(logger, "RpcResolveIdeology", req.SessionID, userID, st, err)
}

// RpcPlaceVotersHandler takes an offered vote-bank card and places its voters. An empty card id
// passes when no offered card can be paid for and placed.
// Payload: {"session_id": "...", "turn_index": 0, "vote_bank_card_id": "...", "zone_id": "..."}
func RpcPlaceVotersHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		turnRequest
		VoteBankCardID string `json:"vote_bank_card_id"`
		ZoneID         string `json:"zone_id"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.PlaceVoters(ctx, req.action(userID), req.VoteBankCardID, req.ZoneID)
	return respondState(logger, "RpcPlaceVoters", req.SessionID, userID, st, err)
}

// RpcBuyConspiracyHandler buys the top playable conspiracy card.
// Payload: {"session_id": "...", "turn_index": 0}
func RpcBuyConspiracyHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req turnRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.BuyConspiracy(ctx, req.action(userID))
	return respondState(logger, "RpcBuyConspiracy", req.SessionID, userID, st, err)
}

// RpcPlayConspiracyHandler plays a conspiracy card from the caller's hand.
// Payload: {"session_id": "...", "turn_index": 0, "card_id": "...", "target_id": "optional"}
func RpcPlayConspiracyHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		turnRequest
		CardID   string `json:"card_id"`
		TargetID string `json:"target_id"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.PlayConspiracy(ctx, req.action(userID), req.CardID, req.TargetID)
	return respondState(logger, "RpcPlayConspiracy", req.SessionID, userID, st, err)
}

// RpcFormCoalitionHandler joins the caller with the zone's majority owner.
// Payload: {"session_id": "...", "zone_id": "...", "partner_id": "..."}
func RpcFormCoalitionHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		SessionID string `json:"session_id"`
		ZoneID    string `json:"zone_id"`
		PartnerID string `json:"partner_id"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.FormCoalition(ctx, req.SessionID, userID, req.ZoneID, req.PartnerID)
	return respondState(logger, "RpcFormCoalition", req.SessionID, userID, st, err)
}

// RpcGerrymanderHandler moves one of the caller's voters to an adjacent zone.
// Payload: {"session_id": "...", "turn_index": 0, "from_zone_id": "...", "to_zone_id": "..."}
func RpcGerrymanderHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		turnRequest
		FromZoneID string `json:"from_zone_id"`
		ToZoneID   string `json:"to_zone_id"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.Gerrymander(ctx, req.action(userID), req.FromZoneID, req.ToZoneID)
	return respondState(logger, "RpcGerrymander", req.SessionID, userID, st, err)
}

// RpcCompleteSessionHandler closes the session with a summary. Host only.
// Payload: {"session_id": "...", "summary": "..."}
func RpcCompleteSessionHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		SessionID string `json:"session_id"`
		Summary   string `json:"summary"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.CompleteSession(ctx, req.SessionID, userID, req.Summary)
	if err == nil {
		logger.Info("RpcCompleteSession [Session:%s User:%s]: session completed", req.SessionID, userID)
	}
	return respondState(logger, "RpcCompleteSession", req.SessionID, userID, st, err)
}

// RpcSessionStateHandler returns the caller's view of a session.
// Payload: {"session_id": "..."}
func RpcSessionStateHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	st, err := ballotService.SessionState(ctx, req.SessionID)
	return respondState(logger, "RpcSessionState", req.SessionID, userID, st, err)
}

// ActionLogResponse is one page of the action log.
type ActionLogResponse struct {
	Entries []ActionView `json:"entries"`
	// NextAfterSeq is the cursor for the following page.
	NextAfterSeq int64 `json:"next_after_seq"`
}

// RpcActionLogHandler pages through a session's action log.
// Payload: {"session_id": "...", "after_seq": 0, "limit": 100}
func RpcActionLogHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req struct {
		SessionID string `json:"session_id"`
		AfterSeq  int64  `json:"after_seq"`
		Limit     int    `json:"limit"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	entries, err := ballotService.ActionLog(ctx, req.SessionID, req.AfterSeq, req.Limit)
	if err != nil {
		return "", rpcError(logger, "RpcActionLog", req.SessionID, userID, err)
	}
	views, err := actionsToView(entries)
	if err != nil {
		return "", rpcError(logger, "RpcActionLog", req.SessionID, userID, err)
	}
	resp := ActionLogResponse{Entries: views, NextAfterSeq: req.AfterSeq}
	if n := len(entries); n > 0 {
		resp.NextAfterSeq = entries[n-1].Seq
	}
	return encodeResponse(resp)
}

// AuditResponse carries a freshly issued receipt, or the outcome of verifying one.
type AuditResponse struct {
	Valid   bool              `json:"valid"`
	Reason  string            `json:"reason,omitempty"`
	Receipt *app.AuditReceipt `json:"receipt,omitempty"`
}

// RpcAuditReceiptHandler issues a signed receipt over the session's full action log, or verifies
// that the log stored now still begins with the entries the given token was issued over.
// Payload: {"session_id": "...", "token": "optional"}
func RpcAuditReceiptHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	if auditService == nil {
		return "", errNotInitialized
	}
	var req struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	if _, err := ballotService.SessionState(ctx, req.SessionID); err != nil {
		return "", rpcError(logger, "RpcAuditReceipt", req.SessionID, userID, err)
	}
	entries, err := ballotService.FullActionLog(ctx, req.SessionID)
	if err != nil {
		return "", rpcError(logger, "RpcAuditReceipt", req.SessionID, userID, err)
	}

	if req.Token == "" {
		receipt, err := auditService.Issue(req.SessionID, entries)
		if err != nil {
			return "", rpcError(logger, "RpcAuditReceipt", req.SessionID, userID, err)
		}
		logger.Info("RpcAuditReceipt [Session:%s User:%s]: issued receipt over %d entries", req.SessionID, userID, receipt.Entries)
		return encodeResponse(AuditResponse{Valid: true, Receipt: &receipt})
	}

	receipt, err := auditService.VerifyPrefix(req.Token, entries)
	switch {
	case errors.Is(err, app.ErrInvalidReceipt), errors.Is(err, app.ErrLogMismatch):
		logger.Warn("RpcAuditReceipt [Session:%s User:%s]: verification failed: %v", req.SessionID, userID, err)
		return encodeResponse(AuditResponse{Valid: false, Reason: err.Error()})
	case err != nil:
		return "", rpcError(logger, "RpcAuditReceipt", req.SessionID, userID, err)
	}
	if receipt.SessionID != req.SessionID {
		return encodeResponse(AuditResponse{Valid: false, Reason: "receipt was issued for another session"})
	}
	return encodeResponse(AuditResponse{Valid: true, Receipt: &receipt})
}
