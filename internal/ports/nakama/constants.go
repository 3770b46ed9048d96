package nakama

// Nakama RPC ids registered by InitModule.
const (
	RpcCreateSession   = "ballotbox_create_session"
	RpcSetReady        = "ballotbox_set_ready"
	RpcStartTurn       = "ballotbox_start_turn"
	RpcResolveIdeology = "ballotbox_resolve_ideology"
	RpcPlaceVoters     = "ballotbox_place_voters"
	RpcBuyConspiracy   = "ballotbox_buy_conspiracy"
	RpcPlayConspiracy  = "ballotbox_play_conspiracy"
	RpcFormCoalition   = "ballotbox_form_coalition"
	RpcGerrymander     = "ballotbox_gerrymander"
	RpcCompleteSession = "ballotbox_complete_session"
	RpcSessionState    = "ballotbox_session_state"
	RpcActionLog       = "ballotbox_action_log"
	RpcAuditReceipt    = "ballotbox_audit_receipt"
)

// Runtime environment keys read at module load. Rule overrides use the ballotbox_ prefix as well
// and are applied by config.GameConfig.ApplyEnv.
const (
	envConfigPath  = "ballotbox_config_path"
	envAuditSecret = "ballotbox_audit_secret"
)
