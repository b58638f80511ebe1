package service

import "errors"

// Errors returned by the registry. Callers match with errors.Is.
//
// ErrNotFound deliberately collapses absent, inactive and expired links
// into one observable outcome, so clients cannot probe for the
// existence of deactivated or expired codes.
var (
	ErrInvalidDestination = errors.New("invalid destination URL")
	ErrBlockedDestination = errors.New("destination host is blocked")
	ErrAliasInvalid       = errors.New("invalid custom alias")
	ErrAliasTaken         = errors.New("custom alias already taken")
	ErrCodeExhausted      = errors.New("failed to generate a unique code")
	ErrNotFound           = errors.New("link not found")
)

// Store contract errors. Implementations of LinkStore return these so
// the registry can distinguish outcomes without knowing the backend.
var (
	// ErrCodeExists signals a unique-constraint violation on the short
	// code. The registry maps it to ErrAliasTaken for custom aliases
	// and to another collision-retry round for generated codes.
	ErrCodeExists = errors.New("short code already exists")
)
