package models

import (
	"time"
)

// Player is one participant in a room. The ID is a client-generated
// session token, stable per browser and room; rejoining with the same
// ID keeps the accumulated score.
type Player struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joined_at"`
}
