package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks an empty or whitespace-only required field.
	// It is suppressed by callers: no message, no state change.
	ErrValidation = errors.New("validation failed: title and url are required")

	// ErrURLTaken is returned by stores when their uniqueness constraint on
	// (owner, url) rejects a write.
	ErrURLTaken = errors.New("url already stored for owner")

	// ErrUnauthenticated is returned when an operation needs a principal and
	// none is present.
	ErrUnauthenticated = errors.New("no authenticated principal")

	// ErrForbidden is returned by store access policies.
	ErrForbidden = errors.New("operation not allowed for principal")

	// ErrNotFound is returned when a referenced bookmark is not part of the
	// current collection.
	ErrNotFound = errors.New("bookmark not found")
)

// DuplicateMessage is the user-facing text shown for a URL collision.
const DuplicateMessage = "URL already exists!"

// UnavailableMessage is the user-facing text shown when the store or the
// session backend fails. Details go to the log only.
const UnavailableMessage = "Bookmarks are unavailable right now, please try again."

// DuplicateError reports a URL collision with an existing bookmark of the
// same owner.
type DuplicateError struct {
	ExistingID string
	URL        string
}

func (e *DuplicateError) Error() string {
	return DuplicateMessage
}

// TransportError wraps a failure of the store, the session provider or the
// identity provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AsDuplicate extracts a DuplicateError from err's chain.
func AsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
