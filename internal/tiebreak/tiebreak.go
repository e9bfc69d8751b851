// Package tiebreak resolves sudden-death winners. The tiebreaker is a
// single extra question restricted to the tied leaders; the first
// correctly judged answer wins. Winning only awards the badge - it
// never feeds back into recorded scores.
package tiebreak

import (
	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/scoring"
)

// Eligible returns the player IDs allowed to answer the tiebreaker,
// i.e. everyone tied for the lead.
func Eligible(players []models.Player) []string {
	leaders := scoring.Leaders(players)
	ids := make([]string, 0, len(leaders))
	for _, p := range leaders {
		ids = append(ids, p.ID)
	}
	return ids
}

// Needed reports whether a sudden-death round is required: the final
// round is fully graded and more than one player holds the top score.
func Needed(players []models.Player, answers []models.FinalAnswer) bool {
	return scoring.AllFinalAnswersJudged(answers) && len(scoring.Leaders(players)) > 1
}

// Winner picks the sudden-death winner from the scope-999 submissions.
// Only eligible players count, even if the host graded an outsider's
// answer. With the one-shot judging guard at most one submission should
// ever be judged correct; if several are, the earliest submission wins.
func Winner(subs []models.Submission, eligibleIDs []string) (string, bool) {
	eligible := make(map[string]bool, len(eligibleIDs))
	for _, id := range eligibleIDs {
		eligible[id] = true
	}

	var winner *models.Submission
	for i := range subs {
		s := subs[i]
		if s.Scope != models.SuddenDeathScope {
			continue
		}
		if s.Judged == nil || !*s.Judged {
			continue
		}
		if !eligible[s.PlayerID] {
			continue
		}
		if winner == nil || s.SubmittedAt.Before(winner.SubmittedAt) {
			winner = &subs[i]
		}
	}
	if winner == nil {
		return "", false
	}
	return winner.PlayerID, true
}
