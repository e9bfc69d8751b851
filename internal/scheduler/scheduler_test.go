package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizroyale/quizroyale/internal/room"
	"github.com/quizroyale/quizroyale/internal/scheduler"
)

type fakeCloser struct {
	mu       sync.Mutex
	deadline *room.WindowDeadline
	due      []string
	closed   []string
}

func (f *fakeCloser) NextWindowDeadline(context.Context) (*room.WindowDeadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deadline == nil {
		return nil, nil
	}
	cp := *f.deadline
	return &cp, nil
}

func (f *fakeCloser) RoomsDueForClose(_ context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.due) > limit {
		return append([]string(nil), f.due[:limit]...), nil
	}
	return append([]string(nil), f.due...), nil
}

func (f *fakeCloser) CloseExpired(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, roomID)
	for i, id := range f.due {
		if id == roomID {
			f.due = append(f.due[:i], f.due[i+1:]...)
			break
		}
	}
	if len(f.due) == 0 {
		f.deadline = nil
	}
	return nil
}

func (f *fakeCloser) setDue(deadline *room.WindowDeadline, due ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = deadline
	f.due = due
}

func (f *fakeCloser) closedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

func TestSchedulerClosesDueRooms(t *testing.T) {
	start := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	app := &fakeCloser{}
	deadline := start.Add(500 * time.Millisecond)
	app.setDue(&room.WindowDeadline{RoomID: "ABC234", Deadline: deadline}, "ABC234")

	s := scheduler.New(app, clock, scheduler.Config{
		PollInterval: time.Second,
		NumWorkers:   2,
		BatchSize:    10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	// The loop sleeps toward the 500ms deadline, not the 1s poll.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(500 * time.Millisecond)

	assert.Eventually(t, func() bool {
		closed := app.closedRooms()
		return len(closed) == 1 && closed[0] == "ABC234"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSchedulerWakeTriggersImmediateDispatch(t *testing.T) {
	start := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	app := &fakeCloser{}

	s := scheduler.New(app, clock, scheduler.Config{
		PollInterval: time.Minute,
		NumWorkers:   1,
		BatchSize:    10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	// With no deadline the loop would sleep a full poll interval. A
	// window that expired in the meantime gets picked up on Wake.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	overdue := start.Add(-time.Second)
	app.setDue(&room.WindowDeadline{RoomID: "XYZ789", Deadline: overdue}, "XYZ789")
	s.Wake()

	assert.Eventually(t, func() bool {
		closed := app.closedRooms()
		return len(closed) == 1 && closed[0] == "XYZ789"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSchedulerIgnoresRoomsNotYetDue(t *testing.T) {
	start := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	app := &fakeCloser{}
	app.setDue(&room.WindowDeadline{RoomID: "ABC234", Deadline: start.Add(time.Hour)})

	s := scheduler.New(app, clock, scheduler.Config{
		PollInterval: time.Second,
		NumWorkers:   1,
		BatchSize:    10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	assert.Empty(t, app.closedRooms())

	cancel()
	<-done
}
