package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizroyale/quizroyale/internal/models"
)

func TestApplyJudgmentAllowsNegativeScores(t *testing.T) {
	p := models.Player{ID: "p1", Score: 3}

	p = ApplyJudgment(p, -5)

	assert.Equal(t, -2, p.Score, "a lost wager can overdraw the score")
}

func TestSubmissionDelta(t *testing.T) {
	assert.Equal(t, 1, SubmissionDelta(true))
	assert.Equal(t, 0, SubmissionDelta(false))
}

func TestFinalDelta(t *testing.T) {
	assert.Equal(t, 7, FinalDelta(7, true))
	assert.Equal(t, -7, FinalDelta(7, false))
	assert.Equal(t, 0, FinalDelta(0, true), "no wager means no risk")
	assert.Equal(t, 0, FinalDelta(0, false))
}

func TestClampWager(t *testing.T) {
	tests := []struct {
		name   string
		amount int
		score  int
		want   int
	}{
		{"over score clamps down", 55, 5, 5},
		{"negative clamps to zero", -5, 5, 0},
		{"within range untouched", 3, 5, 3},
		{"exact score allowed", 5, 5, 5},
		{"negative score wagers nothing", 2, -4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampWager(tt.amount, tt.score))
		})
	}
}

func TestLeaders(t *testing.T) {
	players := []models.Player{
		{ID: "a", Score: 10},
		{ID: "b", Score: 10},
		{ID: "c", Score: 8},
	}

	leaders := Leaders(players)

	assert.Len(t, leaders, 2)
	assert.Equal(t, "a", leaders[0].ID)
	assert.Equal(t, "b", leaders[1].ID)
}

func TestLeadersThreeWayTie(t *testing.T) {
	players := []models.Player{
		{ID: "a", Score: 10},
		{ID: "b", Score: 10},
		{ID: "c", Score: 10},
	}

	assert.Len(t, Leaders(players), 3)
}

func TestLeadersEmpty(t *testing.T) {
	assert.Empty(t, Leaders(nil))
}

func TestAllFinalAnswersJudged(t *testing.T) {
	yes := true
	no := false

	assert.False(t, AllFinalAnswersJudged(nil), "no answers means nothing to end on")
	assert.False(t, AllFinalAnswersJudged([]models.FinalAnswer{
		{PlayerID: "a", Judged: &yes},
		{PlayerID: "b", Judged: nil},
	}))
	assert.True(t, AllFinalAnswersJudged([]models.FinalAnswer{
		{PlayerID: "a", Judged: &yes},
		{PlayerID: "b", Judged: &no},
	}))
}
