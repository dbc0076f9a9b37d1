package domain

import "fmt"

// ValidationError reports malformed user input (title or URL). The
// reason strings are part of the contract and surface to users as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var (
	ErrMissingTitle = &ValidationError{Reason: "missing title"}
	ErrMissingURL   = &ValidationError{Reason: "missing url"}
	ErrInvalidURL   = &ValidationError{Reason: "invalid url"}
)

// StoreError reports a rejected read or write at the data store
// boundary: authorization denial, network failure, constraint
// violation. Message carries the store's own wording verbatim so the
// UI can show exactly what the store said.
type StoreError struct {
	Message string
	// Status is the HTTP status the store answered with, or 0 when
	// the request never produced a response.
	Status int
}

func (e *StoreError) Error() string { return e.Message }

// NotFound reports whether the store rejected the operation because
// the row does not exist or is not visible to the caller; the store
// does not distinguish the two.
func (e *StoreError) NotFound() bool { return e.Status == 404 }

// ChannelError reports a change-notification subscription failure.
// Never fatal: without the channel the client just converges on the
// next refetch.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string { return fmt.Sprintf("change channel: %v", e.Err) }

func (e *ChannelError) Unwrap() error { return e.Err }
