// Package scoring holds the pure score arithmetic for judging. Nothing
// here touches storage; the room app is responsible for persisting a
// returned player exactly once.
package scoring

import (
	"github.com/quizroyale/quizroyale/internal/models"
)

// CorrectPoints is the score awarded for a correct main-round answer.
const CorrectPoints = 1

// ApplyJudgment returns the player with delta applied to their score.
// Scores are not clamped at zero; a lost final wager can go negative.
func ApplyJudgment(p models.Player, delta int) models.Player {
	p.Score += delta
	return p
}

// SubmissionDelta is the score delta for a graded main-round answer.
func SubmissionDelta(correct bool) int {
	if correct {
		return CorrectPoints
	}
	return 0
}

// FinalDelta is the score delta for a graded final answer: the wager is
// won or lost in full. A player who never wagered risks nothing.
func FinalDelta(wager int, correct bool) int {
	if correct {
		return wager
	}
	return -wager
}

// ClampWager bounds a requested wager to what the player can cover.
func ClampWager(amount, score int) int {
	if amount < 0 {
		return 0
	}
	if score < 0 {
		return 0
	}
	if amount > score {
		return score
	}
	return amount
}

// Leaders returns every player tied for the maximum score.
func Leaders(players []models.Player) []models.Player {
	if len(players) == 0 {
		return nil
	}
	max := players[0].Score
	for _, p := range players[1:] {
		if p.Score > max {
			max = p.Score
		}
	}
	var leaders []models.Player
	for _, p := range players {
		if p.Score == max {
			leaders = append(leaders, p)
		}
	}
	return leaders
}

// AllFinalAnswersJudged reports whether the final round is fully graded.
// Entries are created lazily as players submit, so a player who never
// answered does not hold the round open.
func AllFinalAnswersJudged(answers []models.FinalAnswer) bool {
	if len(answers) == 0 {
		return false
	}
	for _, a := range answers {
		if a.Judged == nil {
			return false
		}
	}
	return true
}
