package models

import (
	"errors"
	"fmt"
)

// Domain errors. Handlers map these to HTTP status codes; services return
// them (possibly wrapped) and never write responses themselves.
var (
	ErrUnauthenticated        = errors.New("missing or invalid credential")
	ErrUnauthorized           = errors.New("caller is not a party to this session")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrRateNotConfigured      = errors.New("astrologer has no rate configured for this session type")
	ErrAstrologerNotAvailable = errors.New("astrologer is not active")
	ErrStateConflict          = errors.New("a concurrent transition won the race")
)

// StateTransitionError reports an action that is not legal from the session's
// current state. The current state travels with the error so clients can
// resynchronize instead of retrying blindly.
type StateTransitionError struct {
	Action  string
	Current string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a session in state %q", e.Action, e.Current)
}

// NewInvalidTransition builds a StateTransitionError for action against the
// session's current state.
func NewInvalidTransition(action, current string) *StateTransitionError {
	return &StateTransitionError{Action: action, Current: current}
}

// IsInvalidTransition reports whether err is a StateTransitionError and, if
// so, returns it.
func IsInvalidTransition(err error) (*StateTransitionError, bool) {
	var ste *StateTransitionError
	if errors.As(err, &ste) {
		return ste, true
	}
	return nil, false
}
