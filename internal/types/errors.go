// README: Error taxonomy shared across modules; modules wrap these with %w.
package types

import "errors"

var (
	// ErrInput marks malformed caller input (coordinates, severity, urgency).
	ErrInput = errors.New("invalid input")
	// ErrConflict marks a lost optimistic race; the caller should re-run matching.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrTransientIO marks a failing collaborator (hazard supply, driver directory, stores).
	ErrTransientIO = errors.New("transient io failure")
)
