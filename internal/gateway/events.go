package gateway

import (
	"encoding/json"
	"time"

	"github.com/quizroyale/quizroyale/internal/events"
	"github.com/quizroyale/quizroyale/internal/room"
)

// RoomEvent is the wire message pushed to WebSocket clients. Every
// event carries a fresh snapshot so clients never have to patch state
// locally; the snapshot is already redacted for the receiving viewer.
type RoomEvent struct {
	ID        string           `json:"id"`
	RoomID    string           `json:"room_id"`
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      json.RawMessage  `json:"data,omitempty"`
	Snapshot  *room.Snapshot   `json:"snapshot,omitempty"`
}

// EventTypeSnapshot is sent once on connect with the initial state.
const EventTypeSnapshot events.EventType = "Snapshot"
