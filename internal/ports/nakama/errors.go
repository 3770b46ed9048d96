package nakama

import (
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"

	"ballotbox/internal/app"
	"ballotbox/internal/domain"
	"ballotbox/internal/ports"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeAborted            = 10
	codeInternal           = 13
	codeUnavailable        = 14
	codeUnauthenticated    = 16
)

var (
	errInvalidPayload  = runtime.NewError("Invalid payload", codeInvalidArgument)
	errUnauthenticated = runtime.NewError("Authentication required", codeUnauthenticated)
	errNotInitialized  = runtime.NewError("Ballot box service not initialized", codeUnavailable)
	errInternal        = runtime.NewError("Internal error", codeInternal)
)

var invalidArgument = []error{
	app.ErrInvalidInput,
	domain.ErrInvalidRoster,
	domain.ErrInvalidPartner,
	domain.ErrTargetRequired,
	domain.ErrInvalidTarget,
}

var notFound = []error{
	ports.ErrNotFound,
	domain.ErrUnknownZone,
	domain.ErrUnknownCard,
	domain.ErrUnknownPlayer,
	domain.ErrTurnNotFound,
}

var permissionDenied = []error{
	domain.ErrNotYourTurn,
	app.ErrNotHost,
}

// failedPrecondition lists every rule violation that depends on the current session state.
var failedPrecondition = []error{
	app.ErrNotInLobby,
	domain.ErrInsufficientResources,
	domain.ErrDeckNotInitialized,
	domain.ErrTurnAlreadyCompleted,
	domain.ErrInvalidPhase,
	domain.ErrTurnInProgress,
	domain.ErrCardNotOffered,
	domain.ErrZoneCapacityExceeded,
	domain.ErrCoalitionExists,
	domain.ErrPartnerNotMajorityOwner,
	domain.ErrNoVotersInZone,
	domain.ErrCoalitionThresholdNotMet,
	domain.ErrNoIdeologyToTrade,
	domain.ErrNotMajorityOwner,
	domain.ErrCoalitionActive,
	domain.ErrZonesNotAdjacent,
	domain.ErrMajorityLocked,
	domain.ErrGerrymanderSkipped,
	domain.ErrEffectNotAvailable,
	domain.ErrCardNotInHand,
	domain.ErrPlaySilenced,
	domain.ErrNoConspiracyCards,
	domain.ErrSessionNotActive,
	domain.ErrSessionClosed,
	domain.ErrPlayersNotReady,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusCode classifies an engine error into the gRPC code returned to the client.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ports.ErrConflict):
		return codeAborted
	case isAny(err, invalidArgument):
		return codeInvalidArgument
	case isAny(err, notFound):
		return codeNotFound
	case isAny(err, permissionDenied):
		return codePermissionDenied
	case isAny(err, failedPrecondition):
		return codeFailedPrecondition
	default:
		return codeInternal
	}
}

// rpcError logs err and converts it for the client. Internal failures are not described to the caller.
func rpcError(logger runtime.Logger, op, sessionID, userID string, err error) error {
	code := statusCode(err)
	if code == codeInternal {
		logger.Error("%s [Session:%s User:%s]: %v", op, sessionID, userID, err)
		return errInternal
	}
	logger.Warn("%s [Session:%s User:%s]: rejected: %v", op, sessionID, userID, err)
	return runtime.NewError(err.Error(), code)
}
