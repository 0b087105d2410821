package api

import "errors"

// Sentinel errors returned by the storage layer. Handlers map them to
// HTTP statuses; everything else is a 500.
var (
	// ErrNotFound signals an operation on a message or conversation
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized signals an operation the requesting user does not
	// own, such as deleting another user's message.
	ErrUnauthorized = errors.New("unauthorized")
)
