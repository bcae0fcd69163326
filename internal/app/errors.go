package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidDeleteMode    = errors.New("invalid delete mode")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrSameColumn           = errors.New("item is already in the target column")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrUnsupportedSnapshot  = errors.New("unsupported snapshot version")
)

// ConfirmationError reports a guarded move that was attempted without confirmation.
type ConfirmationError struct {
	ItemID string
	Column string
	Prompt string
}

// Error implements error.
func (e *ConfirmationError) Error() string {
	return "confirmation required: " + e.Prompt
}

// Unwrap lets errors.Is match ErrConfirmationRequired.
func (e *ConfirmationError) Unwrap() error {
	return ErrConfirmationRequired
}
