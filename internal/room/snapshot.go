package room

import (
	"context"
	"fmt"

	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/scoring"
	"github.com/quizroyale/quizroyale/internal/tiebreak"
)

// GetRoom retrieves a room by ID.
func (a *App) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	rm, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return rm, nil
}

// Snapshot materializes the full room view: state, ledgers, and the
// derived fields (leaders, completion, tiebreak winner, countdown).
// Redaction for non-host viewers happens in the gateway, not here.
func (a *App) Snapshot(ctx context.Context, roomID string) (*Snapshot, error) {
	rm, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	players, err := a.repo.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	subs, err := a.repo.ListSubmissions(ctx, roomID, rm.CurrentIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	wagers, err := a.repo.ListWagers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	answers, err := a.repo.ListFinalAnswers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list final answers: %w", err)
	}

	snap := &Snapshot{
		Room:         *rm,
		Players:      players,
		Submissions:  subs,
		Wagers:       wagers,
		FinalAnswers: answers,
	}

	snap.AllFinalAnswersJudged = scoring.AllFinalAnswersJudged(answers)
	for _, p := range scoring.Leaders(players) {
		snap.LeaderIDs = append(snap.LeaderIDs, p.ID)
	}

	if rm.SuddenDeath != nil {
		sdSubs, err := a.repo.ListSubmissions(ctx, roomID, models.SuddenDeathScope)
		if err != nil {
			return nil, fmt.Errorf("failed to list sudden-death submissions: %w", err)
		}
		snap.SuddenDeathSubmissions = sdSubs
		if winnerID, ok := tiebreak.Winner(sdSubs, rm.SuddenDeath.EligiblePlayerIDs); ok {
			snap.SuddenDeathWinnerID = winnerID
		}
	}

	if rm.WindowDeadline != nil {
		remaining := int(rm.WindowDeadline.Sub(a.clock.Now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		snap.TimeRemainingSec = &remaining
	}

	return snap, nil
}
