package room_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizroyale/quizroyale/internal/events"
	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/room"
	"github.com/quizroyale/quizroyale/internal/room/memory"
)

type stubProvider struct {
	batchErr error
	oneErr   error
	oneCalls int
}

func (p *stubProvider) GenerateBatch(context.Context) ([]models.Question, error) {
	if p.batchErr != nil {
		return nil, p.batchErr
	}
	qs := make([]models.Question, models.QuestionCount)
	for i := range qs {
		qs[i] = models.Question{
			Question: fmt.Sprintf("Question %d?", i+1),
			Answer:   fmt.Sprintf("Answer %d", i+1),
			Category: "General",
		}
	}
	qs[models.FinalIndex].Category = "Finale"
	return qs, nil
}

func (p *stubProvider) GenerateOne(context.Context, []string, bool) (*models.Question, error) {
	p.oneCalls++
	if p.oneErr != nil {
		return nil, p.oneErr
	}
	return &models.Question{
		Question: fmt.Sprintf("Replacement %d?", p.oneCalls),
		Answer:   fmt.Sprintf("Replacement answer %d", p.oneCalls),
		Category: "Tiebreak",
	}, nil
}

type capturePublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, envelope events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, envelope)
	return nil
}

func (p *capturePublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.envelopes))
	for i, e := range p.envelopes {
		out[i] = e.EventType
	}
	return out
}

type testEnv struct {
	app   *room.App
	repo  *memory.Repository
	pub   *capturePublisher
	clock *clockwork.FakeClock
}

func newTestEnv(t *testing.T) (*testEnv, *stubProvider) {
	t.Helper()
	provider := &stubProvider{}
	env := &testEnv{
		repo:  memory.NewRepository(),
		pub:   &capturePublisher{},
		clock: clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)),
	}
	env.app = room.NewApp(env.repo, provider, env.pub, env.clock, 30*time.Second)
	return env, provider
}

// newRunningGame creates a room with two joined players and a
// generated question set, ready for hosting.
func (e *testEnv) newRunningGame(t *testing.T) *models.Room {
	t.Helper()
	ctx := context.Background()

	rm, err := e.app.CreateRoom(ctx, room.CreateRoomRequest{Title: "Pub Night"})
	require.NoError(t, err)
	require.NotEmpty(t, rm.HostSecret)

	_, err = e.app.Join(ctx, rm.ID, room.JoinRequest{PlayerID: "alice", Name: "Alice"})
	require.NoError(t, err)
	_, err = e.app.Join(ctx, rm.ID, room.JoinRequest{PlayerID: "bob", Name: "Bob"})
	require.NoError(t, err)

	rm, err = e.app.GenerateGame(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	return rm
}

func TestCreateRoomStartsInLobby(t *testing.T) {
	env, _ := newTestEnv(t)

	rm, err := env.app.CreateRoom(context.Background(), room.CreateRoomRequest{Title: "  Quiz  "})

	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusLobby, rm.Status)
	assert.Equal(t, "Quiz", rm.Title)
	assert.Len(t, rm.ID, 6)
	assert.Len(t, rm.Questions, models.QuestionCount)
	assert.False(t, rm.AcceptingAnswers)
	assert.Nil(t, rm.SuddenDeath)
}

func TestJoinKeepsScoreOnRejoin(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	// Earn a point, then rejoin under a new name.
	revealAndScore(t, env, rm, "alice", true)

	p, err := env.app.Join(ctx, rm.ID, room.JoinRequest{PlayerID: "alice", Name: "Alice II"})

	require.NoError(t, err)
	assert.Equal(t, 1, p.Score, "rejoin must not reset the score")
	assert.Equal(t, "Alice II", p.Name)
}

func TestJoinRejectsEmptyName(t *testing.T) {
	env, _ := newTestEnv(t)
	rm := env.newRunningGame(t)

	_, err := env.app.Join(context.Background(), rm.ID, room.JoinRequest{PlayerID: "p", Name: "   "})

	assert.ErrorIs(t, err, room.ErrValidation)
}

// revealAndScore reveals question 0, submits an answer for the player,
// and judges it. It leaves the window open.
func revealAndScore(t *testing.T, env *testEnv, rm *models.Room, playerID string, correct bool) {
	t.Helper()
	ctx := context.Background()

	_, err := env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)

	sub, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: playerID, Name: playerID, Scope: 0, Answer: "Paris",
	})
	require.NoError(t, err)

	_, err = env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, sub.ID, correct)
	require.NoError(t, err)
}

func TestRevealOpensAnswerWindow(t *testing.T) {
	env, _ := newTestEnv(t)
	rm := env.newRunningGame(t)

	got, err := env.app.Reveal(context.Background(), rm.ID, rm.HostSecret, 2)

	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentIndex)
	assert.Equal(t, models.RoomStatusQuestion, got.Status)
	assert.True(t, got.Revealed)
	assert.True(t, got.AcceptingAnswers)
	require.NotNil(t, got.RevealedAt)
	require.NotNil(t, got.WindowDeadline)
	assert.Equal(t, 30*time.Second, got.WindowDeadline.Sub(*got.RevealedAt))
}

func TestRevealRejectsFinaleIndex(t *testing.T) {
	env, _ := newTestEnv(t)
	rm := env.newRunningGame(t)

	_, err := env.app.Reveal(context.Background(), rm.ID, rm.HostSecret, models.FinalIndex)

	assert.ErrorIs(t, err, room.ErrValidation)
}

func TestSubmitAnswerRequiresOpenWindow(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	_, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "alice", Name: "Alice", Scope: 0, Answer: "early",
	})
	assert.ErrorIs(t, err, room.ErrStateConflict, "no reveal yet")

	_, err = env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)

	_, err = env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "alice", Name: "Alice", Scope: 3, Answer: "wrong scope",
	})
	assert.ErrorIs(t, err, room.ErrStateConflict, "scope must match the current question")

	_, err = env.app.CloseAnswers(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)

	_, err = env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "alice", Name: "Alice", Scope: 0, Answer: "late",
	})
	assert.ErrorIs(t, err, room.ErrStateConflict, "window closed")
}

func TestPlayerMayReviseUntilJudged(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	_, err := env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)

	first, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "alice", Name: "Alice", Scope: 0, Answer: "Rome",
	})
	require.NoError(t, err)

	second, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "alice", Name: "Alice", Scope: 0, Answer: "Paris",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "revision keeps the submission identity")
	assert.Equal(t, "Paris", second.Answer)

	_, err = env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, second.ID, true)
	require.NoError(t, err)

	_, err = env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "alice", Name: "Alice", Scope: 0, Answer: "Lyon",
	})
	assert.ErrorIs(t, err, room.ErrAlreadyJudged, "graded answers are locked")
}

func TestJudgeSubmissionIsOneShot(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	_, err := env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)
	sub, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "alice", Name: "Alice", Scope: 0, Answer: "Paris",
	})
	require.NoError(t, err)

	judged, err := env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, sub.ID, true)
	require.NoError(t, err)
	require.NotNil(t, judged.Judged)
	assert.True(t, *judged.Judged)

	p, err := env.repo.GetPlayer(ctx, rm.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Score)

	// The double-click: flipping the verdict must change nothing.
	_, err = env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, sub.ID, false)
	assert.ErrorIs(t, err, room.ErrAlreadyJudged)

	p, err = env.repo.GetPlayer(ctx, rm.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Score, "second judgment must not touch the score")
}

func TestIncorrectSubmissionScoresNothing(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	revealAndScore(t, env, rm, "alice", false)

	p, err := env.repo.GetPlayer(ctx, rm.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Score)
}

func TestHostSecretGuardsEveryHostOperation(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	calls := map[string]func() error{
		"generate": func() error { _, err := env.app.GenerateGame(ctx, rm.ID, "wrong"); return err },
		"reveal":   func() error { _, err := env.app.Reveal(ctx, rm.ID, "wrong", 0); return err },
		"close":    func() error { _, err := env.app.CloseAnswers(ctx, rm.ID, "wrong"); return err },
		"goto":     func() error { _, err := env.app.Goto(ctx, rm.ID, "wrong", 3); return err },
		"end":      func() error { _, err := env.app.EndGame(ctx, rm.ID, "wrong"); return err },
		"reset":    func() error { return env.app.ResetScores(ctx, rm.ID, "wrong") },
		"empty":    func() error { _, err := env.app.Reveal(ctx, rm.ID, "", 0); return err },
	}
	for name, call := range calls {
		assert.ErrorIs(t, call(), room.ErrUnauthorized, name)
	}

	got, err := env.repo.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusLobby, got.Status, "rejected calls must not mutate the room")
	assert.False(t, got.Revealed)
}

func TestGenerateGameProviderFailureLeavesRoomUntouched(t *testing.T) {
	env, provider := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)
	before, err := env.repo.GetRoom(ctx, rm.ID)
	require.NoError(t, err)

	provider.batchErr = errors.New("model on fire")

	_, err = env.app.GenerateGame(ctx, rm.ID, rm.HostSecret)
	require.Error(t, err)

	after, err := env.repo.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Questions, after.Questions)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestReplaceQuestionKeepsSlotID(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)
	oldID := rm.Questions[4].ID

	got, err := env.app.ReplaceQuestion(ctx, rm.ID, rm.HostSecret, 4)

	require.NoError(t, err)
	assert.Equal(t, oldID, got.Questions[4].ID)
	assert.Equal(t, "Replacement 1?", got.Questions[4].Question)
}

func TestFinalRoundFlow(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	// Alice banks 2 points in the main rounds.
	_, err := env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)
	sub, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{PlayerID: "alice", Name: "Alice", Scope: 0, Answer: "a"})
	require.NoError(t, err)
	_, err = env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, sub.ID, true)
	require.NoError(t, err)

	_, err = env.app.Reveal(ctx, rm.ID, rm.HostSecret, 1)
	require.NoError(t, err)
	sub, err = env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{PlayerID: "alice", Name: "Alice", Scope: 1, Answer: "b"})
	require.NoError(t, err)
	_, err = env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, sub.ID, true)
	require.NoError(t, err)

	// Finale: wagers only open on the last question.
	_, err = env.app.OpenFinalWagers(ctx, rm.ID, rm.HostSecret)
	assert.ErrorIs(t, err, room.ErrStateConflict)

	_, err = env.app.Goto(ctx, rm.ID, rm.HostSecret, models.FinalIndex)
	require.NoError(t, err)
	got, err := env.app.OpenFinalWagers(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinalWager, got.Status)
	assert.True(t, got.Final.WagersOpen)

	// Wagers clamp to what the player can cover.
	w, err := env.app.SubmitWager(ctx, rm.ID, room.SubmitWagerRequest{PlayerID: "alice", Name: "Alice", Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, w.Amount)

	w, err = env.app.SubmitWager(ctx, rm.ID, room.SubmitWagerRequest{PlayerID: "bob", Name: "Bob", Amount: -3})
	require.NoError(t, err)
	assert.Equal(t, 0, w.Amount, "bob has nothing to risk and wagered garbage anyway")

	got, err = env.app.OpenFinalAnswers(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinalAnswer, got.Status)
	assert.False(t, got.Final.WagersOpen)
	assert.True(t, got.Final.AnswersOpen)
	assert.True(t, got.AcceptingAnswers)

	_, err = env.app.SubmitWager(ctx, rm.ID, room.SubmitWagerRequest{PlayerID: "alice", Name: "Alice", Amount: 1})
	assert.ErrorIs(t, err, room.ErrStateConflict, "wagers locked once answers open")

	_, err = env.app.SubmitFinalAnswer(ctx, rm.ID, room.SubmitFinalAnswerRequest{PlayerID: "alice", Name: "Alice", Answer: "right"})
	require.NoError(t, err)
	_, err = env.app.SubmitFinalAnswer(ctx, rm.ID, room.SubmitFinalAnswerRequest{PlayerID: "bob", Name: "Bob", Answer: "wrong"})
	require.NoError(t, err)

	// Ending is blocked until every final answer is graded.
	_, err = env.app.EndGame(ctx, rm.ID, rm.HostSecret)
	assert.ErrorIs(t, err, room.ErrStateConflict)

	fa, err := env.app.JudgeFinal(ctx, rm.ID, rm.HostSecret, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, 2, fa.PointsDelta)

	fa, err = env.app.JudgeFinal(ctx, rm.ID, rm.HostSecret, "bob", false)
	require.NoError(t, err)
	assert.Equal(t, 0, fa.PointsDelta, "no wager means no risk")

	alice, err := env.repo.GetPlayer(ctx, rm.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, alice.Score)
	bob, err := env.repo.GetPlayer(ctx, rm.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, bob.Score)

	got, err = env.app.EndGame(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusEnded, got.Status)
	assert.True(t, got.Final.RevealedAnswer)
	assert.False(t, got.AcceptingAnswers)
}

func TestJudgeFinalIsOneShot(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	_, err := env.app.Goto(ctx, rm.ID, rm.HostSecret, models.FinalIndex)
	require.NoError(t, err)
	_, err = env.app.OpenFinalWagers(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	_, err = env.app.OpenFinalAnswers(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	_, err = env.app.SubmitFinalAnswer(ctx, rm.ID, room.SubmitFinalAnswerRequest{PlayerID: "alice", Name: "Alice", Answer: "x"})
	require.NoError(t, err)

	_, err = env.app.JudgeFinal(ctx, rm.ID, rm.HostSecret, "alice", false)
	require.NoError(t, err)
	_, err = env.app.JudgeFinal(ctx, rm.ID, rm.HostSecret, "alice", true)
	assert.ErrorIs(t, err, room.ErrAlreadyJudged)

	alice, err := env.repo.GetPlayer(ctx, rm.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, alice.Score)
}

// finishTiedFinal drives a game to a judged final round with both
// players at the same score.
func (e *testEnv) finishTiedFinal(t *testing.T, rm *models.Room) {
	t.Helper()
	ctx := context.Background()

	_, err := e.app.Goto(ctx, rm.ID, rm.HostSecret, models.FinalIndex)
	require.NoError(t, err)
	_, err = e.app.OpenFinalWagers(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	_, err = e.app.OpenFinalAnswers(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)

	for _, id := range []string{"alice", "bob"} {
		_, err = e.app.SubmitFinalAnswer(ctx, rm.ID, room.SubmitFinalAnswerRequest{PlayerID: id, Name: id, Answer: "same"})
		require.NoError(t, err)
		_, err = e.app.JudgeFinal(ctx, rm.ID, rm.HostSecret, id, true)
		require.NoError(t, err)
	}
}

func TestSuddenDeathFlow(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	// Put alice and bob at 1 point each so a latecomer at 0 sits below
	// the tie.
	_, err := env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)
	for _, id := range []string{"alice", "bob"} {
		sub, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
			PlayerID: id, Name: id, Scope: 0, Answer: "same",
		})
		require.NoError(t, err)
		_, err = env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, sub.ID, true)
		require.NoError(t, err)
	}

	env.finishTiedFinal(t, rm)

	// A third player below the tie must stay out of the tiebreaker.
	_, err = env.app.Join(ctx, rm.ID, room.JoinRequest{PlayerID: "carol", Name: "Carol"})
	require.NoError(t, err)

	got, err := env.app.StartSuddenDeath(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	require.NotNil(t, got.SuddenDeath)
	assert.True(t, got.SuddenDeath.Active)
	assert.ElementsMatch(t, []string{"alice", "bob"}, got.SuddenDeath.EligiblePlayerIDs)
	assert.False(t, got.SuddenDeath.Revealed)

	// Navigation is frozen while the tiebreaker runs.
	_, err = env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	assert.ErrorIs(t, err, room.ErrStateConflict)
	_, err = env.app.Goto(ctx, rm.ID, rm.HostSecret, 0)
	assert.ErrorIs(t, err, room.ErrStateConflict)

	got, err = env.app.RevealSuddenDeath(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	assert.True(t, got.SuddenDeath.Revealed)
	assert.True(t, got.SuddenDeath.AcceptingAnswers)
	require.NotNil(t, got.WindowDeadline)

	_, err = env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "carol", Name: "Carol", Scope: models.SuddenDeathScope, Answer: "let me in",
	})
	assert.ErrorIs(t, err, room.ErrStateConflict, "only tied leaders may answer")

	sub, err := env.app.SubmitAnswer(ctx, rm.ID, room.SubmitAnswerRequest{
		PlayerID: "bob", Name: "Bob", Scope: models.SuddenDeathScope, Answer: "42",
	})
	require.NoError(t, err)

	_, err = env.app.JudgeSubmission(ctx, rm.ID, rm.HostSecret, sub.ID, true)
	require.NoError(t, err)

	snap, err := env.app.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", snap.SuddenDeathWinnerID)

	// The badge is the whole prize: recorded scores stay tied.
	alice, err := env.repo.GetPlayer(ctx, rm.ID, "alice")
	require.NoError(t, err)
	bob, err := env.repo.GetPlayer(ctx, rm.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, alice.Score, bob.Score)
}

func TestStartSuddenDeathRequiresTie(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	_, err := env.app.StartSuddenDeath(ctx, rm.ID, rm.HostSecret)
	assert.ErrorIs(t, err, room.ErrStateConflict, "final round not graded yet")
}

func TestStartNewGameResetsEverything(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)
	env.finishTiedFinal(t, rm)
	_, err := env.app.StartSuddenDeath(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)

	got, err := env.app.StartNewGame(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)

	assert.Equal(t, models.RoomStatusLobby, got.Status)
	assert.Equal(t, 0, got.CurrentIndex)
	assert.Nil(t, got.SuddenDeath, "overlay is removed, not deactivated")
	assert.Equal(t, models.FinalRound{}, got.Final)

	alice, err := env.repo.GetPlayer(ctx, rm.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, alice.Score)

	answers, err := env.repo.ListFinalAnswers(ctx, rm.ID)
	require.NoError(t, err)
	assert.Empty(t, answers, "ledger is wiped with the old game")
}

func TestCloseExpiredClosesWindowIdempotently(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	_, err := env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)

	// Not due yet.
	env.clock.Advance(10 * time.Second)
	require.NoError(t, env.app.CloseExpired(ctx, rm.ID))
	got, err := env.repo.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.True(t, got.AcceptingAnswers)

	env.clock.Advance(21 * time.Second)
	require.NoError(t, env.app.CloseExpired(ctx, rm.ID))
	got, err = env.repo.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.False(t, got.AcceptingAnswers)
	assert.Nil(t, got.WindowDeadline)

	// Second run finds nothing to do.
	require.NoError(t, env.app.CloseExpired(ctx, rm.ID))
}

func TestCloseExpiredClosesSuddenDeathWindow(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)
	env.finishTiedFinal(t, rm)

	_, err := env.app.StartSuddenDeath(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)
	_, err = env.app.RevealSuddenDeath(ctx, rm.ID, rm.HostSecret)
	require.NoError(t, err)

	env.clock.Advance(31 * time.Second)
	require.NoError(t, env.app.CloseExpired(ctx, rm.ID))

	got, err := env.repo.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.False(t, got.SuddenDeath.AcceptingAnswers)
	assert.Nil(t, got.WindowDeadline)
}

func TestSnapshotCountdown(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	rm := env.newRunningGame(t)

	_, err := env.app.Reveal(ctx, rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)
	env.clock.Advance(10 * time.Second)

	snap, err := env.app.Snapshot(ctx, rm.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.TimeRemainingSec)
	assert.Equal(t, 20, *snap.TimeRemainingSec)
}

func TestOperationsEmitEvents(t *testing.T) {
	env, _ := newTestEnv(t)
	rm := env.newRunningGame(t)

	_, err := env.app.Reveal(context.Background(), rm.ID, rm.HostSecret, 0)
	require.NoError(t, err)

	types := env.pub.types()
	assert.Contains(t, types, events.EventTypeRoomCreated)
	assert.Contains(t, types, events.EventTypePlayerJoined)
	assert.Contains(t, types, events.EventTypeGameGenerated)
	assert.Contains(t, types, events.EventTypeQuestionRevealed)
}
