package world

import "errors"

// Request-level failures. Each is reported to the requesting connection only
// and never leaves the world half-mutated.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrDuplicateJoin    = errors.New("player already connected from another session")
	ErrNoSpawnAvailable = errors.New("no available spawn position")
	ErrInvalidMove      = errors.New("invalid move")
	ErrTargetTooFar     = errors.New("target is too far")
	ErrPathNotFound     = errors.New("no path found to target location")
	ErrPositionOccupied = errors.New("position occupied")
)

// ErrInvariant marks internal state corruption. The game loop aborts the
// current tick when it sees one.
var ErrInvariant = errors.New("world invariant violated")
