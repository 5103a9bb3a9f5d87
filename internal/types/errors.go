// Package types holds domain errors shared across the treasury and stream
// packages. Handlers translate these into HTTP statuses; services compare
// with errors.Is.
package types

import "errors"

var (
	// ErrAlreadyInitialized indicates a component was initialized twice.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrNotInitialized indicates an operation ran before initialization.
	ErrNotInitialized = errors.New("not initialized")

	// ErrUnauthorized indicates the caller is not the principal the
	// operation requires (payer, payee, admin or authorized caller).
	ErrUnauthorized = errors.New("unauthorized caller")

	// ErrInvalidAmount indicates a non-positive amount or a parameter
	// outside its valid range.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance indicates the solvency gate rejected the
	// operation: the asset's free balance cannot cover it.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStreamNotFound indicates the stream identifier is unknown.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrStreamClosed indicates the stream is canceled or completed.
	ErrStreamClosed = errors.New("stream closed")

	// ErrStreamNotClosed indicates an operation that requires a closed
	// stream ran against an active one.
	ErrStreamNotClosed = errors.New("stream not closed")

	// ErrRetentionNotElapsed indicates a closed stream is still inside
	// its retention window and may not be removed yet.
	ErrRetentionNotElapsed = errors.New("retention period not elapsed")

	// ErrOverflow indicates 64-bit monetary arithmetic overflowed.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrPaused indicates the protocol pause switch is on.
	ErrPaused = errors.New("protocol paused")
)
