package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidOrder   = errors.New("invalid order parameters")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrRiskRejected   = errors.New("rejected by risk limits")
	ErrQueueFull      = errors.New("queue full")
	ErrCursorConflict = errors.New("cursor advanced concurrently")
	ErrLockHeld       = errors.New("lock already held")

	// ErrUpstreamUnavailable marks a wallet analysis where every data source
	// failed; partial failures read as empty data instead.
	ErrUpstreamUnavailable = errors.New("upstream data unavailable")
)
