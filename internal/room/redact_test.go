package room_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/room"
)

func boolPtr(b bool) *bool { return &b }

func sampleSnapshot(status models.RoomStatus) room.Snapshot {
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	questions := make([]models.Question, models.QuestionCount)
	for i := range questions {
		questions[i] = models.Question{
			ID:       "q",
			Question: "What is the capital of France?",
			Answer:   "Paris",
			Category: "Geography",
		}
	}
	return room.Snapshot{
		Room: models.Room{
			ID:           "ABC234",
			HostSecret:   "super-secret",
			Questions:    questions,
			Status:       status,
			CurrentIndex: 3,
		},
		Submissions: []models.Submission{
			{ID: uuid.New(), PlayerID: "alice", Answer: "ungraded guess"},
			{ID: uuid.New(), PlayerID: "bob", Answer: "graded guess", Judged: boolPtr(true), JudgedAt: &now},
		},
		Wagers: []models.Wager{
			{PlayerID: "alice", Amount: 7},
		},
		FinalAnswers: []models.FinalAnswer{
			{PlayerID: "alice", Answer: "pending final"},
			{PlayerID: "bob", Answer: "graded final", Judged: boolPtr(false)},
		},
	}
}

func TestRedactSnapshotHostKeepsEverythingButSecret(t *testing.T) {
	snap := sampleSnapshot(models.RoomStatusQuestion)

	got := room.RedactSnapshot(snap, true)

	assert.Empty(t, got.Room.HostSecret, "the secret never leaves the server, even to the host")
	assert.Equal(t, "Paris", got.Room.Questions[0].Answer)
	assert.Equal(t, "ungraded guess", got.Submissions[0].Answer)
	assert.Equal(t, 7, got.Wagers[0].Amount)
	assert.Equal(t, "pending final", got.FinalAnswers[0].Answer)
}

func TestRedactSnapshotPlayerView(t *testing.T) {
	snap := sampleSnapshot(models.RoomStatusQuestion)
	snap.Room.Revealed = true

	got := room.RedactSnapshot(snap, false)

	assert.Empty(t, got.Room.HostSecret)

	for i, q := range got.Room.Questions {
		assert.Empty(t, q.Answer, "answer key leaked at index %d", i)
		assert.Equal(t, "Geography", q.Category, "categories stay visible")
		if i == snap.Room.CurrentIndex {
			assert.NotEmpty(t, q.Question, "the revealed question must show")
		} else {
			assert.Empty(t, q.Question, "question text leaked at index %d", i)
		}
	}

	assert.Empty(t, got.Submissions[0].Answer, "ungraded answers stay hidden")
	assert.Equal(t, "graded guess", got.Submissions[1].Answer)
	assert.Zero(t, got.Wagers[0].Amount, "wager amounts stay secret until the reveal")
	assert.Empty(t, got.FinalAnswers[0].Answer)
	assert.Equal(t, "graded final", got.FinalAnswers[1].Answer)
}

func TestRedactSnapshotHiddenQuestionShowsNothing(t *testing.T) {
	snap := sampleSnapshot(models.RoomStatusQuestion)
	snap.Room.Revealed = false

	got := room.RedactSnapshot(snap, false)

	for i, q := range got.Room.Questions {
		assert.Empty(t, q.Question, "index %d", i)
		assert.Empty(t, q.Answer, "index %d", i)
	}
}

func TestRedactSnapshotEndedGameShowsAll(t *testing.T) {
	snap := sampleSnapshot(models.RoomStatusEnded)

	got := room.RedactSnapshot(snap, false)

	for _, q := range got.Room.Questions {
		assert.Equal(t, "What is the capital of France?", q.Question)
		assert.Equal(t, "Paris", q.Answer)
	}
	assert.Equal(t, 7, got.Wagers[0].Amount)
}

func TestRedactSnapshotFinaleRevealShowsOnlyFinaleAnswer(t *testing.T) {
	snap := sampleSnapshot(models.RoomStatusFinalAnswer)
	snap.Room.CurrentIndex = models.FinalIndex
	snap.Room.Revealed = true
	snap.Room.Final.RevealedAnswer = true

	got := room.RedactSnapshot(snap, false)

	assert.Equal(t, "Paris", got.Room.Questions[models.FinalIndex].Answer)
	for i := 0; i < models.FinalIndex; i++ {
		assert.Empty(t, got.Room.Questions[i].Answer, "index %d", i)
	}
	assert.Equal(t, 7, got.Wagers[0].Amount, "wagers show once the finale answer is out")
}

func TestRedactSnapshotSuddenDeath(t *testing.T) {
	snap := sampleSnapshot(models.RoomStatusEnded)
	snap.Room.Status = models.RoomStatusFinalAnswer
	snap.Room.SuddenDeath = &models.SuddenDeath{
		Active:            true,
		Question:          models.Question{ID: "sudden_death", Question: "Tiebreaker?", Answer: "Yes", Category: "Tiebreak"},
		EligiblePlayerIDs: []string{"alice", "bob"},
	}
	snap.SuddenDeathSubmissions = []models.Submission{
		{ID: uuid.New(), PlayerID: "alice", Scope: models.SuddenDeathScope, Answer: "secret attempt"},
	}

	got := room.RedactSnapshot(snap, false)
	assert.Empty(t, got.Room.SuddenDeath.Question.Question, "unrevealed tiebreaker stays hidden")
	assert.Empty(t, got.Room.SuddenDeath.Question.Answer)
	assert.Empty(t, got.SuddenDeathSubmissions[0].Answer)

	snap.Room.SuddenDeath.Revealed = true
	got = room.RedactSnapshot(snap, false)
	assert.Equal(t, "Tiebreaker?", got.Room.SuddenDeath.Question.Question)
	assert.Empty(t, got.Room.SuddenDeath.Question.Answer, "the tiebreaker answer key never reaches players")
}
