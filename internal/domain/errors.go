package domain

import "errors"

var (
	// ErrValidation marks caller input that fails domain validation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup that matched no record.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured means the tenant has no delivery settings on file.
	ErrNotConfigured = errors.New("tenant delivery settings not configured")

	// ErrConfigUnavailable means the settings store could not be read.
	// Distinct from ErrNotConfigured so callers can tell "no settings yet"
	// from "store is down".
	ErrConfigUnavailable = errors.New("tenant delivery settings unavailable")

	// ErrInvalidRecipient marks a recipient that cannot be canonicalized.
	ErrInvalidRecipient = errors.New("invalid recipient number")
)
