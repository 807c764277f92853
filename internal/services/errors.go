package services

import "errors"

var (
	// ErrValidation marks a malformed request payload.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing asset or session.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an ownership mismatch.
	ErrForbidden = errors.New("forbidden")

	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
