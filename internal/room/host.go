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

// CreateRoom creates a new room in the lobby state with placeholder
// questions. The returned room carries the host secret; this is the
// only read that ever exposes it.
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	code, err := newRoomCode()
	if err != nil {
		return nil, err
	}

	now := a.clock.Now().UTC()
	rm := models.Room{
		ID:         code,
		HostSecret: uuid.New().String(),
		Title:      strings.TrimSpace(req.Title),
		Questions:  blankQuestions(),
		Status:     models.RoomStatusLobby,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := a.repo.CreateRoom(ctx, rm)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	a.emit(ctx, events.EventTypeRoomCreated, created.ID, struct {
		Title string `json:"title"`
	}{Title: created.Title})
	return created, nil
}

// GenerateGame replaces the room's question set with a freshly
// generated batch and resets all round state and ledgers. A provider
// failure leaves the room untouched.
func (a *App) GenerateGame(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}

	questions, err := a.provider.GenerateBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate game: %w", err)
	}
	if len(questions) != models.QuestionCount {
		return nil, fmt.Errorf("provider returned %d questions, want %d", len(questions), models.QuestionCount)
	}
	for i := range questions {
		questions[i].ID = fmt.Sprintf("%d", i+1)
	}

	if err := a.repo.ClearLedger(ctx, roomID); err != nil {
		return nil, fmt.Errorf("failed to clear ledger: %w", err)
	}

	rm.Questions = questions
	a.resetRoundState(rm)
	rm.Status = models.RoomStatusLobby
	rm.CurrentIndex = 0
	rm.SuddenDeath = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeGameGenerated, roomID, events.GameGeneratedPayload{
		Categories: categories(saved.Questions),
	})
	return saved, nil
}

// StartNewGame is the post-game restart: scores reset, ledgers wiped,
// a new question set generated, and the sudden-death overlay removed.
func (a *App) StartNewGame(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}

	questions, err := a.provider.GenerateBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate game: %w", err)
	}
	if len(questions) != models.QuestionCount {
		return nil, fmt.Errorf("provider returned %d questions, want %d", len(questions), models.QuestionCount)
	}
	for i := range questions {
		questions[i].ID = fmt.Sprintf("%d", i+1)
	}

	if err := a.repo.ResetScores(ctx, roomID); err != nil {
		return nil, fmt.Errorf("failed to reset scores: %w", err)
	}
	if err := a.repo.ClearLedger(ctx, roomID); err != nil {
		return nil, fmt.Errorf("failed to clear ledger: %w", err)
	}

	rm.Questions = questions
	a.resetRoundState(rm)
	rm.Status = models.RoomStatusLobby
	rm.CurrentIndex = 0
	rm.SuddenDeath = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeGameGenerated, roomID, events.GameGeneratedPayload{
		Categories: categories(saved.Questions),
		Reset:      true,
	})
	return saved, nil
}

// ReplaceQuestion swaps one question for a newly generated one, keeping
// the slot's ID. The finale slot gets a finale-grade question.
func (a *App) ReplaceQuestion(ctx context.Context, roomID, hostSecret string, index int) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if !validQuestionIndex(index) {
		return nil, fmt.Errorf("question index %d out of range: %w", index, ErrValidation)
	}

	q, err := a.provider.GenerateOne(ctx, questionPrompts(rm), index == models.FinalIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to generate replacement question: %w", err)
	}
	q.ID = rm.Questions[index].ID
	rm.Questions[index] = *q

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeQuestionReplaced, roomID, events.IndexChangedPayload{Index: index})
	return saved, nil
}

// UpdateQuestion edits a question's text fields in place.
func (a *App) UpdateQuestion(ctx context.Context, roomID, hostSecret string, index int, req UpdateQuestionRequest) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if !validQuestionIndex(index) {
		return nil, fmt.Errorf("question index %d out of range: %w", index, ErrValidation)
	}

	rm.Questions[index].Question = strings.TrimSpace(req.Question)
	rm.Questions[index].Answer = strings.TrimSpace(req.Answer)
	rm.Questions[index].Category = strings.TrimSpace(req.Category)

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeQuestionUpdated, roomID, events.IndexChangedPayload{Index: index})
	return saved, nil
}

// Reveal shows a main-round question and opens its answer window. The
// finale is never revealed this way; it runs through the final-round
// flow instead.
func (a *App) Reveal(ctx context.Context, roomID, hostSecret string, index int) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.SuddenDeath != nil && rm.SuddenDeath.Active {
		return nil, fmt.Errorf("cannot reveal while sudden death is active: %w", ErrStateConflict)
	}
	if index < 0 || index >= models.FinalIndex {
		return nil, fmt.Errorf("reveal index %d out of range: %w", index, ErrValidation)
	}

	now := a.clock.Now().UTC()
	deadline := now.Add(a.window)
	rm.CurrentIndex = index
	rm.Status = models.RoomStatusQuestion
	rm.Revealed = true
	rm.AcceptingAnswers = true
	rm.RevealedAt = &now
	rm.WindowDeadline = &deadline

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeQuestionRevealed, roomID, events.QuestionRevealedPayload{
		Index:      index,
		Category:   saved.Questions[index].Category,
		RevealedAt: now,
		WindowSec:  int(a.window.Seconds()),
	})
	return saved, nil
}

// CloseAnswers closes the current answer window. Idempotent.
func (a *App) CloseAnswers(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	return a.closeMainWindow(ctx, rm, "host")
}

func (a *App) closeMainWindow(ctx context.Context, rm *models.Room, reason string) (*models.Room, error) {
	rm.AcceptingAnswers = false
	rm.WindowDeadline = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	scope := rm.CurrentIndex
	if rm.Status == models.RoomStatusFinalAnswer {
		scope = models.FinalIndex
	}
	a.emit(ctx, events.EventTypeAnswersClosed, rm.ID, events.AnswersClosedPayload{
		Scope:    scope,
		Reason:   reason,
		ClosedAt: a.clock.Now().UTC(),
	})
	return saved, nil
}

// Hide takes the current question back off screen and closes its
// window. Submissions already made stay in the ledger.
func (a *App) Hide(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}

	rm.Revealed = false
	rm.AcceptingAnswers = false
	rm.RevealedAt = nil
	rm.WindowDeadline = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeQuestionHidden, roomID, events.IndexChangedPayload{Index: rm.CurrentIndex})
	return saved, nil
}

// Goto navigates to a question without revealing it.
func (a *App) Goto(ctx context.Context, roomID, hostSecret string, index int) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.SuddenDeath != nil && rm.SuddenDeath.Active {
		return nil, fmt.Errorf("cannot navigate while sudden death is active: %w", ErrStateConflict)
	}
	if !validQuestionIndex(index) {
		return nil, fmt.Errorf("goto index %d out of range: %w", index, ErrValidation)
	}

	rm.CurrentIndex = index
	rm.Revealed = false
	rm.AcceptingAnswers = false
	rm.RevealedAt = nil
	rm.WindowDeadline = nil

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeIndexChanged, roomID, events.IndexChangedPayload{Index: index})
	return saved, nil
}

// OpenFinalWagers starts the final round's wager phase. Only valid on
// the finale question.
func (a *App) OpenFinalWagers(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.SuddenDeath != nil && rm.SuddenDeath.Active {
		return nil, fmt.Errorf("cannot open wagers while sudden death is active: %w", ErrStateConflict)
	}
	if rm.CurrentIndex != models.FinalIndex {
		return nil, fmt.Errorf("wagers only open on the finale question: %w", ErrStateConflict)
	}

	rm.Status = models.RoomStatusFinalWager
	rm.Revealed = true
	rm.AcceptingAnswers = false
	rm.RevealedAt = nil
	rm.WindowDeadline = nil
	rm.Final = models.FinalRound{WagersOpen: true}

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeFinalWagersOpened, roomID, struct{}{})
	return saved, nil
}

// OpenFinalAnswers closes wagers and opens the final answer window.
func (a *App) OpenFinalAnswers(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}
	if rm.CurrentIndex != models.FinalIndex {
		return nil, fmt.Errorf("final answers only open on the finale question: %w", ErrStateConflict)
	}

	now := a.clock.Now().UTC()
	deadline := now.Add(a.window)
	rm.Status = models.RoomStatusFinalAnswer
	rm.Revealed = true
	rm.AcceptingAnswers = true
	rm.RevealedAt = &now
	rm.WindowDeadline = &deadline
	rm.Final.WagersOpen = false
	rm.Final.AnswersOpen = true

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeFinalAnswersOpened, roomID, events.QuestionRevealedPayload{
		Index:      models.FinalIndex,
		Category:   saved.Questions[models.FinalIndex].Category,
		RevealedAt: now,
		WindowSec:  int(a.window.Seconds()),
	})
	return saved, nil
}

// EndGame reveals the final answer and freezes the room. Only valid
// once every submitted final answer has been graded.
func (a *App) EndGame(ctx context.Context, roomID, hostSecret string) (*models.Room, error) {
	rm, err := a.getAuthorizedRoom(ctx, roomID, hostSecret)
	if err != nil {
		return nil, err
	}

	answers, err := a.repo.ListFinalAnswers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list final answers: %w", err)
	}
	if !scoring.AllFinalAnswersJudged(answers) {
		return nil, fmt.Errorf("final answers still ungraded: %w", ErrStateConflict)
	}

	rm.Status = models.RoomStatusEnded
	rm.AcceptingAnswers = false
	rm.WindowDeadline = nil
	rm.Final.AnswersOpen = false
	rm.Final.RevealedAnswer = true

	saved, err := a.save(ctx, rm)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, events.EventTypeGameEnded, roomID, struct{}{})
	return saved, nil
}

// JudgeSubmission grades a main-round or sudden-death submission.
// Grading is one-shot: a second attempt returns ErrAlreadyJudged and
// changes nothing. Sudden-death submissions never move scores.
func (a *App) JudgeSubmission(ctx context.Context, roomID, hostSecret string, submissionID uuid.UUID, correct bool) (*models.Submission, error) {
	if _, err := a.getAuthorizedRoom(ctx, roomID, hostSecret); err != nil {
		return nil, err
	}

	sub, err := a.repo.GetSubmission(ctx, roomID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("submission not found: %w", err)
	}

	delta := 0
	if sub.Scope != models.SuddenDeathScope {
		delta = scoring.SubmissionDelta(correct)
	}

	judged, err := a.repo.JudgeSubmission(ctx, roomID, submissionID, correct, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to judge submission: %w", err)
	}

	a.emit(ctx, events.EventTypeSubmissionJudged, roomID, events.SubmissionJudgedPayload{
		SubmissionID: judged.ID.String(),
		PlayerID:     judged.PlayerID,
		Scope:        judged.Scope,
		Correct:      correct,
		ScoreDelta:   delta,
	})
	return judged, nil
}

// JudgeFinal grades a player's final answer, applying +wager or -wager
// to their score. A player with no stored wager risks nothing.
func (a *App) JudgeFinal(ctx context.Context, roomID, hostSecret, playerID string, correct bool) (*models.FinalAnswer, error) {
	if _, err := a.getAuthorizedRoom(ctx, roomID, hostSecret); err != nil {
		return nil, err
	}

	amount := 0
	wager, err := a.repo.GetWager(ctx, roomID, playerID)
	if err == nil {
		amount = wager.Amount
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}

	delta := scoring.FinalDelta(amount, correct)
	judged, err := a.repo.JudgeFinalAnswer(ctx, roomID, playerID, correct, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to judge final answer: %w", err)
	}

	a.emit(ctx, events.EventTypeFinalJudged, roomID, events.FinalJudgedPayload{
		PlayerID:    playerID,
		Correct:     correct,
		PointsDelta: delta,
	})
	return judged, nil
}

// ResetScores zeroes every player's score.
func (a *App) ResetScores(ctx context.Context, roomID, hostSecret string) error {
	if _, err := a.getAuthorizedRoom(ctx, roomID, hostSecret); err != nil {
		return err
	}
	if err := a.repo.ResetScores(ctx, roomID); err != nil {
		return fmt.Errorf("failed to reset scores: %w", err)
	}
	a.emit(ctx, events.EventTypeScoresReset, roomID, struct{}{})
	return nil
}

// resetRoundState clears the per-round flags that a new game or a
// navigation away from a revealed question invalidates.
func (a *App) resetRoundState(rm *models.Room) {
	rm.Revealed = false
	rm.AcceptingAnswers = false
	rm.RevealedAt = nil
	rm.WindowDeadline = nil
	rm.Final = models.FinalRound{}
}

func categories(questions []models.Question) []string {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		if q.Category != "" {
			out = append(out, q.Category)
		}
	}
	return out
}
