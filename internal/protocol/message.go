// Package protocol is the logical message contract between clients and the
// server: envelope types, payload shapes and the error reason mapping.
package protocol

import (
	"errors"

	"github.com/gridrealm/server/internal/cataclysm"
	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/world"
)

// Client → server message types.
const (
	TypeJoin    = "join"
	TypeCommand = "command"
	TypeLeave   = "leave"
)

// Server → client message types.
const (
	TypeGameJoined         = "game_joined"
	TypeCommandResult      = "command_result"
	TypeError              = "error"
	TypeRateLimit          = "rate_limit"
	TypePlayerJoined       = "player_joined"
	TypePlayerLeft         = "player_left"
	TypePlayerDisconnected = "player_disconnected"
	TypeGameStateDelta     = "game_state_delta"
	TypeWorldEvent         = "world_event"
)

// Collection names used in deltas.
const (
	CollectionPlayers = "players"
	CollectionNPCs    = "npcs"
	CollectionItems   = "items"
)

// Message is one outbound envelope.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Frame is one decoded inbound envelope; Payload stays encoded until the
// type is known.
type Frame struct {
	Type    string
	Payload []byte
}

type JoinRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName,omitempty"`
	Class       string `json:"class,omitempty"`
}

type GameJoined struct {
	Player world.PlayerView `json:"player"`
	World  world.Snapshot   `json:"world"`
}

type ErrorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type RateLimited struct {
	Message string `json:"message"`
}

// CommandResult answers one command. Reason is set on failure.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type PlayerRef struct {
	PlayerID string `json:"playerId"`
}

type PlayerJoinedPayload struct {
	Player world.PlayerView `json:"player"`
}

// CollectionDelta is the change set of one collection. Data holds only new
// or changed entities; Removed lists ids that vanished.
type CollectionDelta struct {
	Type    string   `json:"type"`
	Data    any      `json:"data"`
	Removed []string `json:"removed,omitempty"`
}

// WorldEvent announces a cataclysm transition or a notable fight.
type WorldEvent struct {
	Kind   string      `json:"kind"`
	Phase  world.Phase `json:"phase,omitempty"`
	Radius int         `json:"radius,omitempty"`
	Killed []string    `json:"killed,omitempty"`
	Actor  string      `json:"actor,omitempty"`
	Target string      `json:"target,omitempty"`
	Tick   uint64      `json:"tick"`
}

// Wire reasons for the error taxonomy.
const (
	ReasonNotAuthenticated = "not_authenticated"
	ReasonDuplicateJoin    = "duplicate_join"
	ReasonNoSpawn          = "no_spawn_available"
	ReasonInvalidMove      = "invalid_move"
	ReasonTargetTooFar     = "target_too_far"
	ReasonPathNotFound     = "path_not_found"
	ReasonPositionOccupied = "position_occupied"
	ReasonCataclysmActive  = "cataclysm_active"
	ReasonBadRequest       = "bad_request"
	ReasonInactive         = "inactive"
	ReasonInternal         = "internal"
)

var reasons = []struct {
	err    error
	reason string
}{
	{world.ErrNotAuthenticated, ReasonNotAuthenticated},
	{world.ErrDuplicateJoin, ReasonDuplicateJoin},
	{world.ErrNoSpawnAvailable, ReasonNoSpawn},
	{world.ErrInvalidMove, ReasonInvalidMove},
	{world.ErrTargetTooFar, ReasonTargetTooFar},
	{world.ErrPathNotFound, ReasonPathNotFound},
	{world.ErrPositionOccupied, ReasonPositionOccupied},
	{cataclysm.ErrAlreadyActive, ReasonCataclysmActive},
	{ErrBadRequest, ReasonBadRequest},
	{ErrInactive, ReasonInactive},
}

// Reason maps err to its wire reason.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}

// Error builds an error envelope for err.
func Error(err error) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Reason: Reason(err), Message: err.Error()}}
}

// Result builds the command_result envelope for r.
func Result(r command.Result) Message {
	out := CommandResult{Success: r.Success, Message: r.Message}
	if r.Err != nil {
		out.Reason = Reason(r.Err)
	}
	return Message{Type: TypeCommandResult, Payload: out}
}
