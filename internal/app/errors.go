package service

import "errors"

// Sentinel kinds for validation errors. The HTTP layer maps these to
// 400 responses.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidKind       = errors.New("invalid object kind")
	ErrInvalidState      = errors.New("invalid object state")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrMissingName       = errors.New("object name is required")
	ErrMissingUser       = errors.New("user id is required")
)
