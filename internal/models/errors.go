package models

import "errors"

// Core error taxonomy. Fatal errors abort a forecast request; the rest
// trigger a documented per-component fallback in the orchestrator.
var (
	// ErrNotFound indicates an unknown station or topology entry. Fatal.
	ErrNotFound = errors.New("station not found")

	// ErrInvalidRequest indicates a malformed request (horizon <= 0,
	// unknown model kind). Rejected before any work starts. Fatal.
	ErrInvalidRequest = errors.New("invalid forecast request")

	// ErrInsufficientHistory indicates too little data for decomposition
	// or model fitting. Triggers fallback, not abort.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrModelFit indicates a numerical fitting failure (degenerate or
	// zero-variance series). Triggers fallback, not abort.
	ErrModelFit = errors.New("model fit failed")

	// ErrTimeout indicates an external model call exceeded its budget.
	// Triggers fallback, not abort.
	ErrTimeout = errors.New("model call timed out")
)
