package gamification

import "errors"

// ErrUnauthenticated is returned when no session token is available. Sync
// operations treat it as a silent no-op.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrRateLimited is returned when an on-demand pull arrives inside the pull floor.
var ErrRateLimited = errors.New("rate limited")

// ErrClosed is returned by operations on an engine that has been torn down.
var ErrClosed = errors.New("engine closed")

// ErrUnknownPowerUp is returned when a power-up ID is not in the catalog.
var ErrUnknownPowerUp = errors.New("unknown power-up")
