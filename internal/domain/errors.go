package domain

import "errors"

// Rule violations. Every one of these rejects the attempted action before anything is persisted,
// except ErrPlaySilenced and ErrGerrymanderSkipped which consume the flag that caused them.
var (
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrDeckNotInitialized    = errors.New("deck not initialized")

	ErrNotYourTurn          = errors.New("not your turn")
	ErrTurnAlreadyCompleted = errors.New("turn already completed")
	ErrInvalidPhase         = errors.New("turn is not in the required phase")
	ErrTurnNotFound         = errors.New("turn not found")
	ErrTurnInProgress       = errors.New("turn still in progress")
	ErrCardNotOffered       = errors.New("card is not on offer this turn")

	ErrUnknownZone              = errors.New("zone not found")
	ErrUnknownCard              = errors.New("card not found")
	ErrUnknownPlayer            = errors.New("player not found")
	ErrZoneCapacityExceeded     = errors.New("zone capacity exceeded")
	ErrCoalitionExists          = errors.New("coalition already active in zone")
	ErrPartnerNotMajorityOwner  = errors.New("partner does not own the zone majority")
	ErrNoVotersInZone           = errors.New("player has no voters in zone")
	ErrCoalitionThresholdNotMet = errors.New("combined voters do not meet the majority requirement")
	ErrInvalidPartner           = errors.New("invalid coalition partner")
	ErrNoIdeologyToTrade        = errors.New("no ideology to trade")

	ErrNotMajorityOwner   = errors.New("player does not own the zone majority")
	ErrCoalitionActive    = errors.New("coalition zones cannot gerrymander")
	ErrZonesNotAdjacent   = errors.New("zones are not adjacent")
	ErrMajorityLocked     = errors.New("moving a voter would break the majority")
	ErrGerrymanderSkipped = errors.New("gerrymander skipped by headline penalty")

	ErrEffectNotAvailable = errors.New("conspiracy effect not available")
	ErrTargetRequired     = errors.New("conspiracy effect requires a target")
	ErrInvalidTarget      = errors.New("invalid conspiracy target")
	ErrCardNotInHand      = errors.New("card not in hand")
	ErrPlaySilenced       = errors.New("player is silenced for this conspiracy play")
	ErrNoConspiracyCards  = errors.New("no playable conspiracy cards remaining")

	ErrSessionNotActive = errors.New("session is not active")
	ErrSessionClosed    = errors.New("session already closed")
	ErrPlayersNotReady  = errors.New("not every player is ready")
	ErrInvalidRoster    = errors.New("invalid roster")
)
