// Package scheduler closes answer windows server-side. A single loop
// sleeps until the earliest deadline across all rooms, then hands the
// due rooms to a small worker pool. Closing is idempotent, so a host
// clicking close while the window expires is harmless.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizroyale/quizroyale/internal/room"
)

// WindowCloser defines what the scheduler needs from the room app.
type WindowCloser interface {
	NextWindowDeadline(ctx context.Context) (*room.WindowDeadline, error)
	RoomsDueForClose(ctx context.Context, limit int) ([]string, error)
	CloseExpired(ctx context.Context, roomID string) error
}

// Config holds scheduler tuning knobs.
type Config struct {
	// PollInterval caps how long the loop sleeps with no known
	// deadline, so windows opened after the last check are still
	// picked up promptly.
	PollInterval time.Duration
	NumWorkers   int
	BatchSize    int
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		NumWorkers:   4,
		BatchSize:    50,
	}
}

// Scheduler drives answer-window expiry.
type Scheduler struct {
	app    WindowCloser
	clock  clockwork.Clock
	config Config

	workCh chan string
	wakeCh chan struct{}

	// inFlight dedupes rooms already queued for closing.
	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

// New creates a scheduler.
func New(app WindowCloser, clock clockwork.Clock, config Config) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = DefaultConfig().NumWorkers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Scheduler{
		app:      app,
		clock:    clock,
		config:   config,
		workCh:   make(chan string, config.BatchSize),
		wakeCh:   make(chan struct{}, 1),
		inFlight: make(map[string]bool),
	}
}

// Wake nudges the loop to re-read the next deadline, e.g. right after
// a reveal opened a window earlier than the one it is sleeping toward.
func (s *Scheduler) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Int("workers", s.config.NumWorkers).
		Dur("poll_interval", s.config.PollInterval).
		Msg("window scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < s.config.NumWorkers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}

	defer func() {
		cancelWorkers()
		close(s.workCh)
		wg.Wait()
		log.Info().Msg("window scheduler stopped")
	}()

	for {
		sleep := s.nextSleep(ctx)

		timer := s.clock.NewTimer(sleep)
		select {
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			return nil
		case <-s.wakeCh:
			stopAndDrainTimer(timer)
			continue
		case <-timer.Chan():
			s.dispatchDue(ctx)
		}
	}
}

// nextSleep returns how long to sleep before the next check: until the
// earliest deadline if one is sooner than the poll interval.
func (s *Scheduler) nextSleep(ctx context.Context) time.Duration {
	sleep := s.config.PollInterval

	next, err := s.app.NextWindowDeadline(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch next window deadline")
		return sleep
	}
	if next == nil {
		return sleep
	}

	until := next.Deadline.Sub(s.clock.Now())
	if until < 0 {
		until = 0
	}
	if until < sleep {
		sleep = until
	}
	return sleep
}

// dispatchDue queues every room with an expired window.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	due, err := s.app.RoomsDueForClose(ctx, s.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch rooms due for close")
		return
	}

	for _, roomID := range due {
		s.inFlightMu.Lock()
		if s.inFlight[roomID] {
			s.inFlightMu.Unlock()
			continue
		}
		s.inFlight[roomID] = true
		s.inFlightMu.Unlock()

		select {
		case s.workCh <- roomID:
		case <-ctx.Done():
			s.clearInFlight(roomID)
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case roomID, ok := <-s.workCh:
			if !ok {
				return
			}
			if err := s.app.CloseExpired(ctx, roomID); err != nil {
				log.Error().
					Err(err).
					Str("room_id", roomID).
					Int("worker_id", workerID).
					Msg("failed to close expired window")
			}
			s.clearInFlight(roomID)
		}
	}
}

func (s *Scheduler) clearInFlight(roomID string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, roomID)
	s.inFlightMu.Unlock()
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
