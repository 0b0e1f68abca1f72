package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAction indicates the caller dispatched an action ID that is
	// not in the action table.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNoHandlerFound indicates no handler accepted the turn. With a
	// catch-all registered this is a configuration bug, never user input.
	ErrNoHandlerFound = errors.New("no handler accepted the intent")

	// ErrCollaboratorUnavailable indicates an AI collaborator call failed.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// TurnError wraps a failure that happened inside a handler, keeping the
// handler name for logs.
type TurnError struct {
	Handler string
	Err     error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("handler %s failed: %v", e.Handler, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// NewTurnError creates a TurnError.
func NewTurnError(handler string, err error) *TurnError {
	return &TurnError{Handler: handler, Err: err}
}

// IsCollaboratorUnavailable checks whether an error chain bottoms out in a
// collaborator failure.
func IsCollaboratorUnavailable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable)
}
