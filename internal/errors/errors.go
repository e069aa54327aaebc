// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// InvalidTimeZoneError is returned when the configured zone is not a
// recognized IANA name.
type InvalidTimeZoneError struct {
	Zone string
	Err  error
}

func (e *InvalidTimeZoneError) Error() string {
	return fmt.Sprintf("invalid time zone %q: %v", e.Zone, e.Err)
}

func (e *InvalidTimeZoneError) Unwrap() error { return e.Err }

// DuplicateSummaryError is returned by attach-summary when the target record
// already has one. The existing summary is left untouched.
type DuplicateSummaryError struct {
	Kind string // "commit" or "pull request"
	ID   int64
}

func (e *DuplicateSummaryError) Error() string {
	return fmt.Sprintf("%s %d already has a summary", e.Kind, e.ID)
}

// StorageError wraps any failure from the persistence layer. Storage errors
// abort the current run step and are never swallowed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RepositoryNotFoundError marks a configured repository the hosting API does
// not know about. Fatal for that repository only.
type RepositoryNotFoundError struct {
	Owner string
	Name  string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository %s/%s not found", e.Owner, e.Name)
}

// RateLimitedError is returned when the hosting API rejects a call for rate
// limiting. Retryable until the bounded retry budget is exhausted.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	if e.ResetAt.IsZero() {
		return "rate limited by hosting API"
	}
	return fmt.Sprintf("rate limited by hosting API until %s", e.ResetAt.Format(time.RFC3339))
}

// GenerationError wraps failures of the text-generation capability,
// including timeouts. Never fatal; callers fall back deterministically.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("text generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrAuthentication is fatal for the whole run; no partial report is produced.
var ErrAuthentication = errors.New("hosting API authentication failed")

// NetworkError covers transient transport failures from the hosting API.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("hosting API network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
