package shared

import "errors"

var (
	// ErrSessionMissing indicates a request reached a scoped handler without a session.
	ErrSessionMissing = errors.New("session missing")
)
