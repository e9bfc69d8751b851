package room

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// NextWindowDeadline returns the earliest open answer-window deadline
// across all rooms, or nil when no window is open.
func (a *App) NextWindowDeadline(ctx context.Context) (*WindowDeadline, error) {
	deadline, err := a.repo.NextWindowDeadline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next window deadline: %w", err)
	}
	return deadline, nil
}

// RoomsDueForClose returns rooms whose answer window expired.
func (a *App) RoomsDueForClose(ctx context.Context, limit int) ([]string, error) {
	rooms, err := a.repo.RoomsDueForClose(ctx, a.clock.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rooms due for close: %w", err)
	}
	return rooms, nil
}

// CloseExpired closes a room's answer window if its deadline passed.
// Idempotent: a host close racing the scheduler leaves nothing to do.
func (a *App) CloseExpired(ctx context.Context, roomID string) error {
	rm, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if rm.WindowDeadline == nil || a.clock.Now().Before(*rm.WindowDeadline) {
		return nil
	}

	if rm.SuddenDeath != nil && rm.SuddenDeath.Active && rm.SuddenDeath.AcceptingAnswers {
		if _, err := a.closeSuddenDeathWindow(ctx, rm, "timeout"); err != nil {
			return err
		}
		log.Info().Str("room_id", roomID).Msg("closed expired sudden-death window")
		return nil
	}

	if rm.AcceptingAnswers {
		if _, err := a.closeMainWindow(ctx, rm, "timeout"); err != nil {
			return err
		}
		log.Info().Str("room_id", roomID).Int("scope", rm.CurrentIndex).Msg("closed expired answer window")
		return nil
	}

	// Deadline is stale with no window open; clear it so the scheduler
	// stops picking this room up.
	rm.WindowDeadline = nil
	if _, err := a.save(ctx, rm); err != nil {
		return err
	}
	return nil
}
