package room

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quizroyale/quizroyale/internal/events"
	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/scoring"
)

const maxNameLength = 40

// Join registers a player session in a room. Rejoining with the same
// player ID keeps the score and refreshes the display name, so a
// dropped connection never costs a player their standing.
func (a *App) Join(ctx context.Context, roomID string, req JoinRequest) (*models.Player, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("player name is required: %w", ErrValidation)
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if req.PlayerID == "" {
		return nil, fmt.Errorf("player id is required: %w", ErrValidation)
	}

	if _, err := a.repo.GetRoom(ctx, roomID); err != nil {
		return nil, fmt.Errorf("room not found: %w", err)
	}

	player, err := a.repo.UpsertPlayer(ctx, models.Player{
		ID:       req.PlayerID,
		RoomID:   roomID,
		Name:     name,
		JoinedAt: a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player: %w", err)
	}

	a.emit(ctx, events.EventTypePlayerJoined, roomID, events.PlayerJoinedPayload{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Score:      player.Score,
	})
	return player, nil
}

// Leave removes a player from the roster. Their ledger entries stay.
func (a *App) Leave(ctx context.Context, roomID, playerID string) error {
	if err := a.repo.RemovePlayer(ctx, roomID, playerID); err != nil {
		return fmt.Errorf("failed to remove player: %w", err)
	}
	a.emit(ctx, events.EventTypePlayerLeft, roomID, events.PlayerLeftPayload{PlayerID: playerID})
	return nil
}

// SubmitAnswer upserts a player's answer for the given scope. Players
// may revise freely while the window is open; once the host grades the
// submission it is locked and further writes return ErrAlreadyJudged.
func (a *App) SubmitAnswer(ctx context.Context, roomID string, req SubmitAnswerRequest) (*models.Submission, error) {
	if req.PlayerID == "" {
		return nil, fmt.Errorf("player id is required: %w", ErrValidation)
	}

	rm, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room not found: %w", err)
	}

	if req.Scope == models.SuddenDeathScope {
		sd := rm.SuddenDeath
		if sd == nil || !sd.Active || !sd.AcceptingAnswers {
			return nil, fmt.Errorf("sudden death is not accepting answers: %w", ErrStateConflict)
		}
		if !sd.Eligible(req.PlayerID) {
			return nil, fmt.Errorf("player %s is not in the tiebreaker: %w", req.PlayerID, ErrStateConflict)
		}
	} else {
		if req.Scope != rm.CurrentIndex || req.Scope >= models.FinalIndex || req.Scope < 0 {
			return nil, fmt.Errorf("scope %d is not in play: %w", req.Scope, ErrStateConflict)
		}
		if !rm.Revealed || !rm.AcceptingAnswers {
			return nil, fmt.Errorf("answers are closed: %w", ErrStateConflict)
		}
	}

	sub, err := a.repo.UpsertSubmission(ctx, models.Submission{
		ID:          uuid.New(),
		RoomID:      roomID,
		Scope:       req.Scope,
		PlayerID:    req.PlayerID,
		PlayerName:  strings.TrimSpace(req.Name),
		Answer:      strings.TrimSpace(req.Answer),
		SubmittedAt: a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert submission: %w", err)
	}

	a.emit(ctx, events.EventTypeAnswerSubmitted, roomID, events.AnswerSubmittedPayload{
		SubmissionID: sub.ID.String(),
		PlayerID:     sub.PlayerID,
		Scope:        sub.Scope,
		SubmittedAt:  sub.SubmittedAt,
	})
	return sub, nil
}

// SubmitWager places or revises a final-round wager while the wager
// phase is open. The stored amount is clamped to what the player can
// actually cover at submission time.
func (a *App) SubmitWager(ctx context.Context, roomID string, req SubmitWagerRequest) (*models.Wager, error) {
	if req.PlayerID == "" {
		return nil, fmt.Errorf("player id is required: %w", ErrValidation)
	}

	rm, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room not found: %w", err)
	}
	if !rm.Final.WagersOpen {
		return nil, fmt.Errorf("wagers are closed: %w", ErrStateConflict)
	}

	player, err := a.repo.GetPlayer(ctx, roomID, req.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("player not found: %w", err)
	}

	wager, err := a.repo.UpsertWager(ctx, models.Wager{
		RoomID:     roomID,
		PlayerID:   req.PlayerID,
		PlayerName: player.Name,
		Amount:     scoring.ClampWager(req.Amount, player.Score),
		PlacedAt:   a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert wager: %w", err)
	}

	a.emit(ctx, events.EventTypeWagerPlaced, roomID, events.WagerPlacedPayload{
		PlayerID: wager.PlayerID,
		Amount:   wager.Amount,
	})
	return wager, nil
}

// SubmitFinalAnswer upserts a player's final-round answer while the
// answer window is open. Like main-round submissions it locks once
// graded.
func (a *App) SubmitFinalAnswer(ctx context.Context, roomID string, req SubmitFinalAnswerRequest) (*models.FinalAnswer, error) {
	if req.PlayerID == "" {
		return nil, fmt.Errorf("player id is required: %w", ErrValidation)
	}

	rm, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room not found: %w", err)
	}
	if !rm.Final.AnswersOpen || !rm.AcceptingAnswers {
		return nil, fmt.Errorf("final answers are closed: %w", ErrStateConflict)
	}

	answer, err := a.repo.UpsertFinalAnswer(ctx, models.FinalAnswer{
		RoomID:      roomID,
		PlayerID:    req.PlayerID,
		PlayerName:  strings.TrimSpace(req.Name),
		Answer:      strings.TrimSpace(req.Answer),
		SubmittedAt: a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert final answer: %w", err)
	}

	a.emit(ctx, events.EventTypeFinalAnswerSubmitted, roomID, events.AnswerSubmittedPayload{
		SubmissionID: answer.PlayerID,
		PlayerID:     answer.PlayerID,
		Scope:        models.FinalIndex,
		SubmittedAt:  answer.SubmittedAt,
	})
	return answer, nil
}
