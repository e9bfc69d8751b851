package room

import (
	"github.com/quizroyale/quizroyale/internal/models"
)

// CreateRoomRequest creates a fresh room in the lobby state.
type CreateRoomRequest struct {
	Title string `json:"title"`
}

// JoinRequest registers (or re-registers) a player session. PlayerID is
// a client-generated stable identifier; rejoining with the same ID
// keeps the accumulated score and refreshes the display name.
type JoinRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// SubmitAnswerRequest upserts a player's answer for a question scope.
// Scope is the question index for main-round questions or
// models.SuddenDeathScope for the tiebreaker.
type SubmitAnswerRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Scope    int    `json:"scope"`
	Answer   string `json:"answer"`
}

// SubmitWagerRequest places a final-round wager. The stored amount is
// clamped to [0, current score].
type SubmitWagerRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Amount   int    `json:"amount"`
}

// SubmitFinalAnswerRequest upserts a player's final-round answer.
type SubmitFinalAnswerRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Answer   string `json:"answer"`
}

// UpdateQuestionRequest edits one question's fields in place.
type UpdateQuestionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Snapshot is the full materialized view of a room: the authoritative
// state plus the ledgers and the derived fields clients render from.
// The gateway redacts it per viewer before it leaves the server.
type Snapshot struct {
	Room                   models.Room          `json:"room"`
	Players                []models.Player      `json:"players"`
	Submissions            []models.Submission  `json:"submissions"`
	Wagers                 []models.Wager       `json:"wagers"`
	FinalAnswers           []models.FinalAnswer `json:"final_answers"`
	SuddenDeathSubmissions []models.Submission  `json:"sudden_death_submissions,omitempty"`

	// Derived, recomputed on every read.
	AllFinalAnswersJudged bool     `json:"all_final_answers_judged"`
	LeaderIDs             []string `json:"leader_ids"`
	SuddenDeathWinnerID   string   `json:"sudden_death_winner_id,omitempty"`
	TimeRemainingSec      *int     `json:"time_remaining_sec,omitempty"`
}
