package room

import (
	"github.com/quizroyale/quizroyale/internal/models"
)

// RedactSnapshot builds the outbound view of a snapshot. The host view
// is the snapshot minus the host secret; players additionally lose
// answer keys, unrevealed question text, ungraded submission text, and
// wager amounts that are still secret. Nothing a player's client
// receives can spoil the game.
func RedactSnapshot(snap Snapshot, isHost bool) Snapshot {
	out := snap
	out.Room = redactRoom(snap.Room, isHost)
	if isHost {
		return out
	}

	out.Submissions = redactSubmissions(snap.Submissions)
	out.SuddenDeathSubmissions = redactSubmissions(snap.SuddenDeathSubmissions)

	revealed := snap.Room.Final.RevealedAnswer || snap.Room.Status == models.RoomStatusEnded
	out.Wagers = make([]models.Wager, len(snap.Wagers))
	for i, w := range snap.Wagers {
		out.Wagers[i] = w
		if !revealed {
			out.Wagers[i].Amount = 0
		}
	}

	out.FinalAnswers = make([]models.FinalAnswer, len(snap.FinalAnswers))
	for i, fa := range snap.FinalAnswers {
		out.FinalAnswers[i] = fa
		if fa.Judged == nil {
			out.FinalAnswers[i].Answer = ""
		}
	}

	return out
}

func redactRoom(rm models.Room, isHost bool) models.Room {
	out := rm
	out.HostSecret = ""
	if isHost {
		return out
	}

	ended := rm.Status == models.RoomStatusEnded
	out.Questions = make([]models.Question, len(rm.Questions))
	for i, q := range rm.Questions {
		out.Questions[i] = models.Question{ID: q.ID, Category: q.Category}

		if ended || (i == rm.CurrentIndex && rm.Revealed) {
			out.Questions[i].Question = q.Question
		}
		// The answer key stays server-side until the game ends; the
		// finale answer shows as soon as the host reveals it.
		if ended || (i == models.FinalIndex && rm.Final.RevealedAnswer) {
			out.Questions[i].Answer = q.Answer
		}
	}

	if rm.SuddenDeath != nil {
		sd := *rm.SuddenDeath
		sd.Question = models.Question{ID: rm.SuddenDeath.Question.ID, Category: rm.SuddenDeath.Question.Category}
		if sd.Revealed {
			sd.Question.Question = rm.SuddenDeath.Question.Question
		}
		out.SuddenDeath = &sd
	}

	return out
}

// redactSubmissions hides answer text until the host has graded it, so
// players cannot crib from each other mid-window.
func redactSubmissions(subs []models.Submission) []models.Submission {
	out := make([]models.Submission, len(subs))
	for i, s := range subs {
		out[i] = s
		if s.Judged == nil {
			out[i].Answer = ""
		}
	}
	return out
}
