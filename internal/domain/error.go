package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnknownQueue        = errors.New("unknown queue")
	ErrEmptyDelivery       = errors.New("nothing to deliver")
	ErrInvalidExecContext  = errors.New("invalid executor context")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
)

// LedgerError wraps a storage failure inside a ledger operation so callers
// can tell "storage broke" apart from the boolean "insufficient funds"
// outcome. Use errors.As / AsLedgerError to detect it.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string { return fmt.Sprintf("ledger %s: %v", e.Op, e.Err) }
func (e *LedgerError) Unwrap() error { return e.Err }

func NewLedgerError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &LedgerError{Op: op, Err: err}
}

func IsLedgerError(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}

// nonRetryableError marks a failure the job queue must not retry:
// malformed payloads, ownership mismatches, missing prerequisite data.
// The job is closed out instead of being requeued.
type nonRetryableError struct{ err error }

func (e nonRetryableError) Error() string { return e.err.Error() }
func (e nonRetryableError) Unwrap() error { return e.err }

// NonRetryable wraps err so IsNonRetryable reports true for it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return nonRetryableError{err: err}
}

func IsNonRetryable(err error) bool {
	var nr nonRetryableError
	return errors.As(err, &nr)
}
