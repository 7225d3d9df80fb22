package domain

import "errors"

var (
	// ErrStoreUnavailable means the backing store could not be reached or timed out.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSerialization means a stored entry could not be decoded.
	ErrSerialization = errors.New("stored payload could not be decoded")

	// ErrInvalidArgument is returned for empty room or session identifiers.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSessionNotConnected is returned by the gateway for sessions without a local connection.
	ErrSessionNotConnected = errors.New("session not connected")
)
