package models

import (
	"time"

	"github.com/google/uuid"
)

// SuddenDeathScope is the sentinel submission scope for the tiebreaker
// question. Main-round submissions use scopes 0-8; the final round is
// handled through wagers and final answers instead.
const SuddenDeathScope = 999

// Submission is one player's answer for one question scope. Judged is
// nil until the host grades it; grading is one-shot, so a non-nil
// Judged is immutable and blocks further writes from the player.
type Submission struct {
	ID          uuid.UUID  `json:"id"`
	RoomID      string     `json:"room_id"`
	Scope       int        `json:"scope"`
	PlayerID    string     `json:"player_id"`
	PlayerName  string     `json:"player_name"`
	Answer      string     `json:"answer"`
	Judged      *bool      `json:"judged"`
	SubmittedAt time.Time  `json:"submitted_at"`
	JudgedAt    *time.Time `json:"judged_at,omitempty"`
}

// Wager is a player's final-round wager, clamped on submission to
// [0, score-at-submission-time].
type Wager struct {
	RoomID     string    `json:"room_id"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Amount     int       `json:"amount"`
	PlacedAt   time.Time `json:"placed_at"`
}

// FinalAnswer is a player's final-round answer. PointsDelta is recorded
// at judging time: +wager if correct, -wager if not (0 if no wager).
type FinalAnswer struct {
	RoomID      string     `json:"room_id"`
	PlayerID    string     `json:"player_id"`
	PlayerName  string     `json:"player_name"`
	Answer      string     `json:"answer"`
	Judged      *bool      `json:"judged"`
	PointsDelta int        `json:"points_delta"`
	SubmittedAt time.Time  `json:"submitted_at"`
	JudgedAt    *time.Time `json:"judged_at,omitempty"`
}
