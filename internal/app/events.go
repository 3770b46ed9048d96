package app

// ActionType identifies an action log entry.
type ActionType string

const (
	ActionPlayerReady         ActionType = "PLAYER_READY"
	ActionSessionStarted      ActionType = "SESSION_STARTED"
	ActionTurnStart           ActionType = "TURN_START"
	ActionPassiveGain         ActionType = "IDEOLOGUE_PASSIVE_GAIN"
	ActionResourceCapDiscard  ActionType = "RESOURCE_CAP_DISCARD"
	ActionIdeologyAnswer      ActionType = "IDEOLOGY_ANSWER"
	ActionInfluenceVoters     ActionType = "INFLUENCE_VOTERS"
	ActionInfluencePassed     ActionType = "INFLUENCE_PASSED"
	ActionMajorityFormed      ActionType = "MAJORITY_FORMED"
	ActionHeadlineTriggered   ActionType = "HEADLINE_TRIGGERED"
	ActionBuyConspiracy       ActionType = "BUY_CONSPIRACY"
	ActionPlayConspiracy      ActionType = "PLAY_CONSPIRACY"
	ActionConspiracySilenced  ActionType = "CONSPIRACY_SILENCED"
	ActionCoalitionFormed     ActionType = "COALITION_FORMED"
	ActionGerrymander         ActionType = "GERRYMANDER"
	ActionGerrymanderSkipped  ActionType = "GERRYMANDER_SKIPPED"
	ActionTurnEnd             ActionType = "TURN_END"
	ActionSessionEndTriggered ActionType = "SESSION_END_TRIGGERED"
	ActionSessionCompleted    ActionType = "SESSION_COMPLETED"
)

// Sources recorded on RESOURCE_CAP_DISCARD entries.
const (
	DiscardSourcePassiveIncome  = "passive_income"
	DiscardSourceIdeologyAnswer = "ideology_answer"
)
