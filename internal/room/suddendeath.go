package room

import (
	"context"
	"fmt"

	"github.com/quizroyale/quizroyale/internal/events"
	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/tiebreak"
)

// StartSuddenDeath attaches the tiebreaker overlay to a room whose
// final round ended in a tie for first place. Only the tied leaders
// may answer; the result never changes recorded scores.
func (a *App) StartSuddenDeath(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.SuddenDeath != nil && rm.SuddenDeath.Active {
		return nil, fmt.Errorf("sudden death already active: %w", ErrStateConflict)
	}

	players, err := a.repo.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	answers, err := a.repo.ListFinalAnswers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list final answers: %w", err)
	}
	if !tiebreak.Needed(players, answers) {
		return nil, fmt.Errorf("no tie to break: %w", ErrStateConflict)
	}

	q, err := a.provider.GenerateOne(ctx, questionPrompts(rm), true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tiebreaker question: %w", err)
	}
	q.ID = "sudden_death"

	rm.SuddenDeath = &models.SuddenDeath{
		Active:            true,
		Question:          *q,
		EligiblePlayerIDs: tiebreak.Eligible(players),
	}
	rm.AcceptingAnswers = false
	rm.WindowDeadline = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeSuddenDeathStarted, roomID, events.SuddenDeathStartedPayload{
		EligiblePlayerIDs: saved.SuddenDeath.EligiblePlayerIDs,
		Category:          saved.SuddenDeath.Question.Category,
	})
	return saved, nil
}

// RevealSuddenDeath shows the tiebreaker question and opens its answer
// window for the eligible players.
func (a *App) RevealSuddenDeath(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.SuddenDeath == nil || !rm.SuddenDeath.Active {
		return nil, fmt.Errorf("sudden death not active: %w", ErrStateConflict)
	}

	now := a.clock.Now().UTC()
	deadline := now.Add(a.window)
	rm.SuddenDeath.Revealed = true
	rm.SuddenDeath.AcceptingAnswers = true
	rm.SuddenDeath.RevealedAt = &now
	rm.WindowDeadline = &deadline

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeSuddenDeathRevealed, roomID, events.QuestionRevealedPayload{
		Index:      models.SuddenDeathScope,
		Category:   saved.SuddenDeath.Question.Category,
		RevealedAt: now,
		WindowSec:  int(a.window.Seconds()),
	})
	return saved, nil
}

// CloseSuddenDeathAnswers closes the tiebreaker window. Idempotent.
func (a *App) CloseSuddenDeathAnswers(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.SuddenDeath == nil || !rm.SuddenDeath.Active {
		return nil, fmt.Errorf("sudden death not active: %w", ErrStateConflict)
	}
	return a.closeSuddenDeathWindow(ctx, rm, "host")
}

func (a *App) closeSuddenDeathWindow(ctx context.Context, rm *models.Room, reason string) (*models.Room, error) {
	rm.SuddenDeath.AcceptingAnswers = false
	rm.WindowDeadline = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeSuddenDeathClosed, rm.ID, events.AnswersClosedPayload{
		Scope:    models.SuddenDeathScope,
		Reason:   reason,
		ClosedAt: a.clock.Now().UTC(),
	})
	return saved, nil
}

// ReplaceSuddenDeathQuestion regenerates the tiebreaker question, e.g.
// when the generated one is unusable. Blocked while the window is open.
func (a *App) ReplaceSuddenDeathQuestion(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.SuddenDeath == nil || !rm.SuddenDeath.Active {
		return nil, fmt.Errorf("sudden death not active: %w", ErrStateConflict)
	}
	if rm.SuddenDeath.AcceptingAnswers {
		return nil, fmt.Errorf("cannot replace the tiebreaker while answers are open: %w", ErrStateConflict)
	}

	q, err := a.provider.GenerateOne(ctx, questionPrompts(rm), true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tiebreaker question: %w", err)
	}
	q.ID = "sudden_death"

	rm.SuddenDeath.Question = *q
	rm.SuddenDeath.Revealed = false
	rm.SuddenDeath.RevealedAt = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeSuddenDeathReplaced, roomID, struct{}{})
	return saved, nil
}
