package post

import (
	"errors"
	"fmt"
)

// Sentinel errors for common rejection cases.
var (
	// ErrNotFound is returned when an operation targets a post that does
	// not exist or is not in the required status. No state is mutated.
	ErrNotFound = errors.New("post not found")

	// ErrAlreadyPublishing is returned when a publish is attempted on a
	// post that already holds an active publish lease.
	ErrAlreadyPublishing = errors.New("publish already in progress for this post")
)

// InvalidTransitionError reports a status change not present in the
// transition table.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ConfigError reports an invalid scheduling parameter or a post that
// violates a platform constraint. Fatal: never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// TransportError wraps a network or timeout failure talking to an external
// API. Retryable with bounded attempts; the publish attempt's recorded
// progress survives the retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ProcessingError reports that the external service failed to process a
// specific photo. Not auto-retried; the post moves to failed with the
// offending photo identified so an operator can intervene.
type ProcessingError struct {
	PostID     string
	PhotoIndex int // 1-based position in publish order
	Filename   string
	Reason     string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("post %s: photo %d (%s) failed processing: %s",
		e.PostID, e.PhotoIndex, e.Filename, e.Reason)
}
