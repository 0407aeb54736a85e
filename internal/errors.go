package internal

import "errors"

// Error taxonomy for registry operations. Handlers map these onto error
// events for the acting connection; they are never broadcast to bystanders.
var (
	// ErrAuth means the credential could not be verified. The connection is
	// refused before any registry state is created.
	ErrAuth = errors.New("invalid credential")

	// ErrNotConnected means the acting user has no open connection, so the
	// requested mutation was rejected without touching any index.
	ErrNotConnected = errors.New("user has no open connection")

	// ErrPersistence means the external store call failed. Nothing is
	// broadcast for the affected post or message.
	ErrPersistence = errors.New("persistence service failure")
)
