package consultations

import "errors"

var (
	ErrNotFound          = errors.New("consultation not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRunInProgress     = errors.New("consultation run already in progress")
)
