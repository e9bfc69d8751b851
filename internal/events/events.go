// Package events defines the room domain events published to the
// message bus after every accepted mutation. The gateway consumes them
// to push fresh snapshots to connected clients.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a room domain event.
type EventType string

const (
	EventTypeRoomCreated          EventType = "RoomCreated"
	EventTypeGameGenerated        EventType = "GameGenerated"
	EventTypeQuestionReplaced     EventType = "QuestionReplaced"
	EventTypeQuestionUpdated      EventType = "QuestionUpdated"
	EventTypeQuestionRevealed     EventType = "QuestionRevealed"
	EventTypeAnswersClosed        EventType = "AnswersClosed"
	EventTypeQuestionHidden       EventType = "QuestionHidden"
	EventTypeIndexChanged         EventType = "IndexChanged"
	EventTypeFinalWagersOpened    EventType = "FinalWagersOpened"
	EventTypeFinalAnswersOpened   EventType = "FinalAnswersOpened"
	EventTypeGameEnded            EventType = "GameEnded"
	EventTypePlayerJoined         EventType = "PlayerJoined"
	EventTypePlayerLeft           EventType = "PlayerLeft"
	EventTypeScoresReset          EventType = "ScoresReset"
	EventTypeAnswerSubmitted      EventType = "AnswerSubmitted"
	EventTypeSubmissionJudged     EventType = "SubmissionJudged"
	EventTypeWagerPlaced          EventType = "WagerPlaced"
	EventTypeFinalAnswerSubmitted EventType = "FinalAnswerSubmitted"
	EventTypeFinalJudged          EventType = "FinalJudged"
	EventTypeSuddenDeathStarted   EventType = "SuddenDeathStarted"
	EventTypeSuddenDeathRevealed  EventType = "SuddenDeathRevealed"
	EventTypeSuddenDeathClosed    EventType = "SuddenDeathClosed"
	EventTypeSuddenDeathReplaced  EventType = "SuddenDeathReplaced"
)

// Envelope wraps a payload for transport on the bus. Payloads never
// carry answer keys or host secrets; every observer receives them.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	RoomID    string          `json:"roomId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope with a fresh event ID.
func NewEnvelope(eventType EventType, roomID string, payload []byte) Envelope {
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// QuestionRevealedPayload announces an open answer window.
type QuestionRevealedPayload struct {
	Index      int       `json:"index"`
	Category   string    `json:"category"`
	RevealedAt time.Time `json:"revealed_at"`
	WindowSec  int       `json:"window_sec"`
}

// AnswersClosedPayload announces the end of an answer window.
type AnswersClosedPayload struct {
	Scope    int       `json:"scope"`
	Reason   string    `json:"reason"` // "host" or "timeout"
	ClosedAt time.Time `json:"closed_at"`
}

// IndexChangedPayload announces host navigation between questions.
type IndexChangedPayload struct {
	Index int `json:"index"`
}

// PlayerJoinedPayload announces a new or returning player.
type PlayerJoinedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
}

// PlayerLeftPayload announces an explicit leave.
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

// AnswerSubmittedPayload announces an upserted submission. The answer
// text itself travels in host-view snapshots, not on the bus.
type AnswerSubmittedPayload struct {
	SubmissionID string    `json:"submission_id"`
	PlayerID     string    `json:"player_id"`
	Scope        int       `json:"scope"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// SubmissionJudgedPayload announces a one-shot grading decision.
type SubmissionJudgedPayload struct {
	SubmissionID string `json:"submission_id"`
	PlayerID     string `json:"player_id"`
	Scope        int    `json:"scope"`
	Correct      bool   `json:"correct"`
	ScoreDelta   int    `json:"score_delta"`
}

// WagerPlacedPayload announces a stored (already clamped) wager.
type WagerPlacedPayload struct {
	PlayerID string `json:"player_id"`
	Amount   int    `json:"amount"`
}

// FinalJudgedPayload announces a graded final answer.
type FinalJudgedPayload struct {
	PlayerID    string `json:"player_id"`
	Correct     bool   `json:"correct"`
	PointsDelta int    `json:"points_delta"`
}

// SuddenDeathStartedPayload announces the tiebreaker round.
type SuddenDeathStartedPayload struct {
	EligiblePlayerIDs []string `json:"eligible_player_ids"`
	Category          string   `json:"category"`
}

// GameGeneratedPayload announces a freshly generated game.
type GameGeneratedPayload struct {
	Categories []string `json:"categories"`
	Reset      bool     `json:"reset"` // scores were reset (post-sudden-death new game)
}
