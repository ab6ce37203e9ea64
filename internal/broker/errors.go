package broker

import "errors"

// Sentinel errors shared across backends.
var (
	// ErrAuthFailed indicates login or session acquisition failed.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInvalidCredentials indicates the backend refused the
	// configured credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired indicates the session is no longer live.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoSession indicates no stored session artifact exists.
	ErrNoSession = errors.New("no stored session")

	// ErrQuoteUnavailable indicates a price lookup failed or returned
	// no usable bid/ask.
	ErrQuoteUnavailable = errors.New("quote unavailable")
)
