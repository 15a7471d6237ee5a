package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by storage, services and handlers. Lower layers wrap
// these with fmt.Errorf("...: %w", err) and handlers classify with errors.Is.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrRateLimited      = errors.New("rate limited")
	ErrUpstream         = errors.New("upstream failure")
)

// ErrNameTaken is returned when a display name is already held by another contact key
var ErrNameTaken = fmt.Errorf("name already taken: %w", ErrInvalidOperation)

// ErrUserNotFound is the NotFound flavour used for unknown user identifiers
var ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
