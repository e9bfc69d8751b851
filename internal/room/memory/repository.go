// Package memory provides an in-process implementation of the room
// repository. It backs local development and tests; production runs on
// the postgres implementation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/room"
)

type playerKey struct {
	roomID   string
	playerID string
}

type submissionKey struct {
	roomID   string
	scope    int
	playerID string
}

// Repository is a mutex-guarded in-memory room store.
type Repository struct {
	mu           sync.RWMutex
	rooms        map[string]*models.Room
	players      map[playerKey]*models.Player
	submissions  map[submissionKey]*models.Submission
	wagers       map[playerKey]*models.Wager
	finalAnswers map[playerKey]*models.FinalAnswer
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		rooms:        make(map[string]*models.Room),
		players:      make(map[playerKey]*models.Player),
		submissions:  make(map[submissionKey]*models.Submission),
		wagers:       make(map[playerKey]*models.Wager),
		finalAnswers: make(map[playerKey]*models.FinalAnswer),
	}
}

func (r *Repository) CreateRoom(_ context.Context, rm models.Room) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[rm.ID]; ok {
		return nil, fmt.Errorf("room %s already exists", rm.ID)
	}
	stored := cloneRoom(&rm)
	r.rooms[rm.ID] = stored
	return cloneRoom(stored), nil
}

func (r *Repository) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, room.ErrNotFound)
	}
	return cloneRoom(rm), nil
}

func (r *Repository) SaveRoom(_ context.Context, rm models.Room) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[rm.ID]; !ok {
		return nil, fmt.Errorf("room %s: %w", rm.ID, room.ErrNotFound)
	}
	stored := cloneRoom(&rm)
	r.rooms[rm.ID] = stored
	return cloneRoom(stored), nil
}

func (r *Repository) UpsertPlayer(_ context.Context, p models.Player) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := playerKey{p.RoomID, p.ID}
	if existing, ok := r.players[key]; ok {
		existing.Name = p.Name
		cp := *existing
		return &cp, nil
	}
	cp := p
	r.players[key] = &cp
	out := cp
	return &out, nil
}

func (r *Repository) GetPlayer(_ context.Context, roomID, playerID string) (*models.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerKey{roomID, playerID}]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, room.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *Repository) ListPlayers(_ context.Context, roomID string) ([]models.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Player
	for key, p := range r.players {
		if key.roomID == roomID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *Repository) RemovePlayer(_ context.Context, roomID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, playerKey{roomID, playerID})
	return nil
}

func (r *Repository) ResetScores(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.players {
		if key.roomID == roomID {
			p.Score = 0
		}
	}
	return nil
}

func (r *Repository) UpsertSubmission(_ context.Context, sub models.Submission) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := submissionKey{sub.RoomID, sub.Scope, sub.PlayerID}
	if existing, ok := r.submissions[key]; ok {
		if existing.Judged != nil {
			return nil, fmt.Errorf("submission for player %s scope %d: %w", sub.PlayerID, sub.Scope, room.ErrAlreadyJudged)
		}
		// Revision keeps the original submission ID so the host's view
		// stays stable while the player edits.
		existing.PlayerName = sub.PlayerName
		existing.Answer = sub.Answer
		existing.SubmittedAt = sub.SubmittedAt
		cp := *existing
		return &cp, nil
	}
	cp := sub
	r.submissions[key] = &cp
	out := cp
	return &out, nil
}

func (r *Repository) GetSubmission(_ context.Context, roomID string, submissionID uuid.UUID) (*models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub := r.findSubmission(roomID, submissionID)
	if sub == nil {
		return nil, fmt.Errorf("submission %s: %w", submissionID, room.ErrNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (r *Repository) ListSubmissions(_ context.Context, roomID string, scope int) ([]models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Submission
	for key, sub := range r.submissions {
		if key.roomID == roomID && key.scope == scope {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *Repository) JudgeSubmission(_ context.Context, roomID string, submissionID uuid.UUID, correct bool, scoreDelta int) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.findSubmission(roomID, submissionID)
	if sub == nil {
		return nil, fmt.Errorf("submission %s: %w", submissionID, room.ErrNotFound)
	}
	if sub.Judged != nil {
		return nil, fmt.Errorf("submission %s: %w", submissionID, room.ErrAlreadyJudged)
	}
	now := time.Now().UTC()
	sub.Judged = &correct
	sub.JudgedAt = &now
	if scoreDelta != 0 {
		if p, ok := r.players[playerKey{roomID, sub.PlayerID}]; ok {
			p.Score += scoreDelta
		}
	}
	cp := *sub
	return &cp, nil
}

func (r *Repository) UpsertWager(_ context.Context, w models.Wager) (*models.Wager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := w
	r.wagers[playerKey{w.RoomID, w.PlayerID}] = &cp
	out := cp
	return &out, nil
}

func (r *Repository) GetWager(_ context.Context, roomID, playerID string) (*models.Wager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wagers[playerKey{roomID, playerID}]
	if !ok {
		return nil, fmt.Errorf("wager for player %s: %w", playerID, room.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (r *Repository) ListWagers(_ context.Context, roomID string) ([]models.Wager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Wager
	for key, w := range r.wagers {
		if key.roomID == roomID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

func (r *Repository) UpsertFinalAnswer(_ context.Context, fa models.FinalAnswer) (*models.FinalAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := playerKey{fa.RoomID, fa.PlayerID}
	if existing, ok := r.finalAnswers[key]; ok {
		if existing.Judged != nil {
			return nil, fmt.Errorf("final answer for player %s: %w", fa.PlayerID, room.ErrAlreadyJudged)
		}
		existing.PlayerName = fa.PlayerName
		existing.Answer = fa.Answer
		existing.SubmittedAt = fa.SubmittedAt
		cp := *existing
		return &cp, nil
	}
	cp := fa
	r.finalAnswers[key] = &cp
	out := cp
	return &out, nil
}

func (r *Repository) ListFinalAnswers(_ context.Context, roomID string) ([]models.FinalAnswer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.FinalAnswer
	for key, fa := range r.finalAnswers {
		if key.roomID == roomID {
			out = append(out, *fa)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *Repository) JudgeFinalAnswer(_ context.Context, roomID, playerID string, correct bool, pointsDelta int) (*models.FinalAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fa, ok := r.finalAnswers[playerKey{roomID, playerID}]
	if !ok {
		return nil, fmt.Errorf("final answer for player %s: %w", playerID, room.ErrNotFound)
	}
	if fa.Judged != nil {
		return nil, fmt.Errorf("final answer for player %s: %w", playerID, room.ErrAlreadyJudged)
	}
	now := time.Now().UTC()
	fa.Judged = &correct
	fa.JudgedAt = &now
	fa.PointsDelta = pointsDelta
	if pointsDelta != 0 {
		if p, ok := r.players[playerKey{roomID, playerID}]; ok {
			p.Score += pointsDelta
		}
	}
	cp := *fa
	return &cp, nil
}

func (r *Repository) ClearLedger(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.submissions {
		if key.roomID == roomID {
			delete(r.submissions, key)
		}
	}
	for key := range r.wagers {
		if key.roomID == roomID {
			delete(r.wagers, key)
		}
	}
	for key := range r.finalAnswers {
		if key.roomID == roomID {
			delete(r.finalAnswers, key)
		}
	}
	return nil
}

func (r *Repository) NextWindowDeadline(_ context.Context) (*room.WindowDeadline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var next *room.WindowDeadline
	for _, rm := range r.rooms {
		if rm.WindowDeadline == nil {
			continue
		}
		if next == nil || rm.WindowDeadline.Before(next.Deadline) {
			next = &room.WindowDeadline{RoomID: rm.ID, Deadline: *rm.WindowDeadline}
		}
	}
	return next, nil
}

func (r *Repository) RoomsDueForClose(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []string
	for _, rm := range r.rooms {
		if rm.WindowDeadline != nil && !rm.WindowDeadline.After(now) {
			due = append(due, rm.ID)
		}
	}
	sort.Strings(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// findSubmission must be called with the lock held.
func (r *Repository) findSubmission(roomID string, submissionID uuid.UUID) *models.Submission {
	for key, sub := range r.submissions {
		if key.roomID == roomID && sub.ID == submissionID {
			return sub
		}
	}
	return nil
}

func cloneRoom(rm *models.Room) *models.Room {
	cp := *rm
	cp.Questions = append([]models.Question(nil), rm.Questions...)
	cp.RevealedAt = cloneTime(rm.RevealedAt)
	cp.WindowDeadline = cloneTime(rm.WindowDeadline)
	if rm.SuddenDeath != nil {
		sd := *rm.SuddenDeath
		sd.EligiblePlayerIDs = append([]string(nil), rm.SuddenDeath.EligiblePlayerIDs...)
		sd.RevealedAt = cloneTime(rm.SuddenDeath.RevealedAt)
		cp.SuddenDeath = &sd
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
