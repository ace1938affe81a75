package domain

import "errors"

// Authentication and session failures surfaced to callers.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNoValidRole         = errors.New("no valid role for this account")
	ErrBackendUnavailable  = errors.New("identity backend unavailable")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPasswordResetFailed = errors.New("password reset failed")
	ErrSessionExpired      = errors.New("session expired")
)

// State machine and storage failures.
var (
	ErrBusy              = errors.New("another sign-in operation is in progress")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSuperseded        = errors.New("session attempt superseded")
	ErrNotFound          = errors.New("not found")
)
