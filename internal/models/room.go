package models

import (
	"time"
)

// RoomStatus defines where a room is in its lifecycle.
type RoomStatus string

const (
	RoomStatusLobby       RoomStatus = "lobby"
	RoomStatusQuestion    RoomStatus = "question"
	RoomStatusFinalWager  RoomStatus = "final_wager"
	RoomStatusFinalAnswer RoomStatus = "final_answer"
	RoomStatusEnded       RoomStatus = "ended"
)

// QuestionCount is the fixed number of questions in a game. Index
// FinalIndex is always the final-round question.
const (
	QuestionCount = 10
	FinalIndex    = 9
)

// Question is one question/answer/category triple. Question and Answer
// may be empty while the host is editing; empty text is never surfaced
// to players as a real prompt.
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// FinalRound holds the final-round phase flags.
type FinalRound struct {
	WagersOpen     bool `json:"wagers_open"`
	AnswersOpen    bool `json:"answers_open"`
	RevealedAnswer bool `json:"revealed_answer"`
}

// SuddenDeath is the tiebreaker overlay. It is nil on Room unless a tie
// was detected after the final round, and it is removed entirely (not
// deactivated) when a new game starts.
type SuddenDeath struct {
	Active            bool       `json:"active"`
	Question          Question   `json:"question"`
	EligiblePlayerIDs []string   `json:"eligible_player_ids"`
	Revealed          bool       `json:"revealed"`
	AcceptingAnswers  bool       `json:"accepting_answers"`
	RevealedAt        *time.Time `json:"revealed_at,omitempty"`
}

// Eligible reports whether the player may answer the tiebreaker.
func (sd *SuddenDeath) Eligible(playerID string) bool {
	if sd == nil {
		return false
	}
	for _, id := range sd.EligiblePlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// Room is the authoritative state of one game session.
type Room struct {
	ID               string       `json:"id"`
	HostSecret       string       `json:"host_secret,omitempty"`
	Title            string       `json:"title"`
	Questions        []Question   `json:"questions"`
	CurrentIndex     int          `json:"current_index"`
	Status           RoomStatus   `json:"status"`
	Revealed         bool         `json:"revealed"`
	AcceptingAnswers bool         `json:"accepting_answers"`
	RevealedAt       *time.Time   `json:"revealed_at,omitempty"`
	WindowDeadline   *time.Time   `json:"window_deadline,omitempty"`
	Final            FinalRound   `json:"final"`
	SuddenDeath      *SuddenDeath `json:"sudden_death,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// CurrentQuestion returns the question in play.
func (r *Room) CurrentQuestion() Question {
	if r.CurrentIndex < 0 || r.CurrentIndex >= len(r.Questions) {
		return Question{}
	}
	return r.Questions[r.CurrentIndex]
}
