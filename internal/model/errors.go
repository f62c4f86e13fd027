package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions the UI recovers from locally.
var (
	ErrInvalidPhrase        = errors.New("invalid recovery phrase")
	ErrWalletNotInitialized = errors.New("wallet not initialized")
	ErrCooldownActive       = errors.New("cooldown active")
	ErrSubmissionInFlight   = errors.New("another submission is in flight")
)

// ValidationError is returned when an intent fails a pre-build check.
// Reason identifies the bound that failed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NetworkError is returned when both the primary and fallback RPC
// endpoints failed for a single logical call.
type NetworkError struct {
	Method string
	Cause  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("rpc %s failed on primary and fallback: %v", e.Method, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// SubmissionKind classifies a send/confirm failure.
type SubmissionKind string

const (
	SubmissionInsufficientFunds SubmissionKind = "insufficient_funds"
	SubmissionUserRejected      SubmissionKind = "user_rejected"
	SubmissionTimeout           SubmissionKind = "timeout"
	SubmissionBlockhashExpired  SubmissionKind = "blockhash_expired"
	SubmissionUnknown           SubmissionKind = "unknown"
)

// SubmissionError is a classified failure of the send or confirm step.
// A transaction may already be broadcast when this is returned, so the
// pipeline never retries it automatically.
type SubmissionError struct {
	Kind  SubmissionKind
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed (%s): %v", e.Kind, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// PersistenceError is a secure-store or local-log read/write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
