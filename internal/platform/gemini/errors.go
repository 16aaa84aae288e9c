package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyVideoID is returned when a request carries no video ID.
	ErrEmptyVideoID = errors.New("video ID cannot be empty")
)
