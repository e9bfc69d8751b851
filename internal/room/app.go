package room

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizroyale/quizroyale/internal/events"
	"github.com/quizroyale/quizroyale/internal/models"
)

// DefaultAnswerWindow is how long an answer window stays open after a
// reveal before the scheduler closes it.
const DefaultAnswerWindow = 30 * time.Second

// QuestionProvider defines what the room app layer needs from the
// question generator.
type QuestionProvider interface {
	// GenerateBatch produces a full game of models.QuestionCount
	// questions, the last one suitable as a finale.
	GenerateBatch(ctx context.Context) ([]models.Question, error)
	// GenerateOne produces a single replacement question, avoiding the
	// given prompts. Finale questions are harder, tiebreak-grade ones.
	GenerateOne(ctx context.Context, avoid []string, finale bool) (*models.Question, error)
}

// EventPublisher defines what the room app layer needs from the event
// bus. Publish failures never fail the operation that produced them.
type EventPublisher interface {
	Publish(ctx context.Context, envelope events.Envelope) error
}

// App handles room business logic: the state machine, the submission
// ledger, and the host/player operation surface.
type App struct {
	repo      Repository
	provider  QuestionProvider
	publisher EventPublisher
	clock     clockwork.Clock
	window    time.Duration
}

// NewApp creates a new room App. A zero window falls back to
// DefaultAnswerWindow.
func NewApp(repo Repository, provider QuestionProvider, publisher EventPublisher, clock clockwork.Clock, window time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultAnswerWindow
	}
	return &App{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
		clock:     clock,
		window:    window,
	}
}

// roomCodeAlphabet skips easily confused characters (0/O, 1/I/L).
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

func newRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}

// getAuthorizedRoom is the single host-authorization choke point. Every
// privileged operation fetches the room through it; a secret mismatch
// surfaces as ErrUnauthorized before anything is touched.
func (a *App) getAuthorizedRoom(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room not found: %w", err)
	}
	if hostSecret == "" || rm.HostSecret != hostSecret {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrUnauthorized)
	}
	return rm, nil
}

// save persists the room whole-row and stamps UpdatedAt.
func (a *App) save(ctx context.Context, rm *models.Room) (*models.Room, error) {
	rm.UpdatedAt = a.clock.Now().UTC()
	saved, err := a.repo.SaveRoom(ctx, *rm)
	if err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}
	return saved, nil
}

// emit publishes a domain event. Errors are logged, not returned; the
// mutation already committed and clients recover via snapshot reads.
func (a *App) emit(ctx context.Context, eventType events.EventType, roomID string, payload any) {
	if a.publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
		return
	}
	if err := a.publisher.Publish(ctx, events.NewEnvelope(eventType, roomID, data)); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Str("room_id", roomID).Msg("failed to publish event")
	}
}

func validQuestionIndex(index int) bool {
	return index >= 0 && index < models.QuestionCount
}

// blankQuestions returns the placeholder set a room starts with before
// the host generates a game.
func blankQuestions() []models.Question {
	qs := make([]models.Question, models.QuestionCount)
	for i := range qs {
		qs[i] = models.Question{ID: fmt.Sprintf("%d", i+1)}
	}
	return qs
}

// questionPrompts collects the non-empty prompts currently in play,
// used to keep replacement questions from repeating.
func questionPrompts(rm *models.Room) []string {
	avoid := make([]string, 0, len(rm.Questions)+1)
	for _, q := range rm.Questions {
		if q.Question != "" {
			avoid = append(avoid, q.Question)
		}
	}
	if rm.SuddenDeath != nil && rm.SuddenDeath.Question.Question != "" {
		avoid = append(avoid, rm.SuddenDeath.Question.Question)
	}
	return avoid
}
