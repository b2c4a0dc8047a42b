package models

import (
	"time"

	"github.com/google/uuid"
)

// Engagement event types accepted from the player.
const (
	EventHeartbeat  = "heartbeat"
	EventTabHidden  = "tab_hidden"
	EventTabVisible = "tab_visible"
	EventPlay       = "play"
	EventPause      = "pause"
	EventCheckpoint = "checkpoint"
)

func ValidEventType(t string) bool {
	switch t {
	case EventHeartbeat, EventTabHidden, EventTabVisible, EventPlay, EventPause, EventCheckpoint:
		return true
	}
	return false
}

// EngagementEvent is an append-only record of a single player ping.
// Sequence numbers are unique and strictly increasing per
// (principal, module) in arrival-accepted order.
type EngagementEvent struct {
	ID               uuid.UUID `json:"id"`
	PrincipalID      uuid.UUID `json:"principal_id"`
	ModuleID         uuid.UUID `json:"module_id"`
	SequenceNumber   uint64    `json:"sequence_number"`
	EventType        string    `json:"event_type"`
	PositionSeconds  float64   `json:"position_seconds"`
	ServerReceivedAt time.Time `json:"server_received_at"`
}

type WatchEventRequest struct {
	ModuleID        string  `json:"module_id"`
	EventType       string  `json:"event_type"`
	SequenceNumber  uint64  `json:"sequence_number"`
	Timestamp       int64   `json:"timestamp"` // client unix seconds
	PositionSeconds float64 `json:"position_seconds"`
}
