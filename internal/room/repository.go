package room

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quizroyale/quizroyale/internal/models"
)

// WindowDeadline pairs a room with its next answer-window expiry. The
// scheduler polls for these and closes windows server-side.
type WindowDeadline struct {
	RoomID   string
	Deadline time.Time
}

// Repository defines what the room app layer needs from storage. Room
// fields are written whole-row with last-write-wins semantics; the
// judging methods are the exception and must be atomic one-shot
// compare-and-set operations (judge only while judged IS NULL).
type Repository interface {
	// Room operations
	CreateRoom(ctx context.Context, room models.Room) (*models.Room, error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	SaveRoom(ctx context.Context, room models.Room) (*models.Room, error)

	// Player operations. UpsertPlayer keeps the stored score when the
	// player already exists (rejoin refreshes the name only).
	UpsertPlayer(ctx context.Context, player models.Player) (*models.Player, error)
	GetPlayer(ctx context.Context, roomID, playerID string) (*models.Player, error)
	ListPlayers(ctx context.Context, roomID string) ([]models.Player, error)
	RemovePlayer(ctx context.Context, roomID, playerID string) error
	ResetScores(ctx context.Context, roomID string) error

	// Submission ledger. UpsertSubmission overwrites a player's unjudged
	// answer for a scope and returns ErrAlreadyJudged once graded.
	// JudgeSubmission atomically marks the submission judged and applies
	// scoreDelta to the player's score in the same transaction.
	UpsertSubmission(ctx context.Context, sub models.Submission) (*models.Submission, error)
	GetSubmission(ctx context.Context, roomID string, submissionID uuid.UUID) (*models.Submission, error)
	ListSubmissions(ctx context.Context, roomID string, scope int) ([]models.Submission, error)
	JudgeSubmission(ctx context.Context, roomID string, submissionID uuid.UUID, correct bool, scoreDelta int) (*models.Submission, error)

	// Final round ledger. JudgeFinalAnswer follows the same one-shot
	// contract as JudgeSubmission, recording pointsDelta on the row.
	UpsertWager(ctx context.Context, wager models.Wager) (*models.Wager, error)
	GetWager(ctx context.Context, roomID, playerID string) (*models.Wager, error)
	ListWagers(ctx context.Context, roomID string) ([]models.Wager, error)
	UpsertFinalAnswer(ctx context.Context, answer models.FinalAnswer) (*models.FinalAnswer, error)
	ListFinalAnswers(ctx context.Context, roomID string) ([]models.FinalAnswer, error)
	JudgeFinalAnswer(ctx context.Context, roomID, playerID string, correct bool, pointsDelta int) (*models.FinalAnswer, error)

	// ClearLedger wipes submissions, wagers, and final answers when a
	// new game replaces the old one.
	ClearLedger(ctx context.Context, roomID string) error

	// Scheduling queries over rooms with an open answer window.
	NextWindowDeadline(ctx context.Context) (*WindowDeadline, error)
	RoomsDueForClose(ctx context.Context, now time.Time, limit int) ([]string, error)
}
