// Package postgres implements the room repository on Postgres. Rooms
// are a single row with the question set and sudden-death overlay as
// JSONB; ledgers are plain relational tables so the one-shot judging
// guard can be a compare-and-set on the judged column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/quizroyale/quizroyale/internal/models"
	"github.com/quizroyale/quizroyale/internal/room"
	"github.com/quizroyale/quizroyale/internal/sqlutil"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

const roomColumns = `id, host_secret, title, questions, current_index, status, revealed,
	accepting_answers, revealed_at, window_deadline,
	final_wagers_open, final_answers_open, final_revealed_answer,
	sudden_death, created_at, updated_at`

func (r *Repository) CreateRoom(ctx context.Context, rm models.Room) (*models.Room, error) {
	questions, err := json.Marshal(rm.Questions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal questions: %w", err)
	}
	suddenDeath, err := marshalSuddenDeath(rm.SuddenDeath)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO rooms (id, host_secret, title, questions, current_index, status, revealed,
			accepting_answers, revealed_at, window_deadline,
			final_wagers_open, final_answers_open, final_revealed_answer,
			sudden_death, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+roomColumns,
		rm.ID, rm.HostSecret, rm.Title, questions, rm.CurrentIndex, rm.Status, rm.Revealed,
		rm.AcceptingAnswers, nullTime(rm.RevealedAt), nullTime(rm.WindowDeadline),
		rm.Final.WagersOpen, rm.Final.AnswersOpen, rm.Final.RevealedAnswer,
		suddenDeath, rm.CreatedAt, rm.UpdatedAt,
	)
	created, err := scanRoom(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return created, nil
}

func (r *Repository) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, roomID)
	rm, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", roomID, room.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return rm, nil
}

func (r *Repository) SaveRoom(ctx context.Context, rm models.Room) (*models.Room, error) {
	questions, err := json.Marshal(rm.Questions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal questions: %w", err)
	}
	suddenDeath, err := marshalSuddenDeath(rm.SuddenDeath)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE rooms
		SET title = $2, questions = $3, current_index = $4, status = $5, revealed = $6,
			accepting_answers = $7, revealed_at = $8, window_deadline = $9,
			final_wagers_open = $10, final_answers_open = $11, final_revealed_answer = $12,
			sudden_death = $13, updated_at = $14
		WHERE id = $1
		RETURNING `+roomColumns,
		rm.ID, rm.Title, questions, rm.CurrentIndex, rm.Status, rm.Revealed,
		rm.AcceptingAnswers, nullTime(rm.RevealedAt), nullTime(rm.WindowDeadline),
		rm.Final.WagersOpen, rm.Final.AnswersOpen, rm.Final.RevealedAnswer,
		suddenDeath, rm.UpdatedAt,
	)
	saved, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", rm.ID, room.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}
	return saved, nil
}

func (r *Repository) UpsertPlayer(ctx context.Context, p models.Player) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO players (room_id, id, name, score, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, id) DO UPDATE SET name = EXCLUDED.name
		RETURNING room_id, id, name, score, joined_at`,
		p.RoomID, p.ID, p.Name, p.Score, p.JoinedAt,
	)
	out, err := scanPlayer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player: %w", err)
	}
	return out, nil
}

func (r *Repository) GetPlayer(ctx context.Context, roomID, playerID string) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT room_id, id, name, score, joined_at FROM players WHERE room_id = $1 AND id = $2`,
		roomID, playerID,
	)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", playerID, room.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room_id, id, name, score, joined_at FROM players WHERE room_id = $1 ORDER BY joined_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.RoomID, &p.ID, &p.Name, &p.Score, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) RemovePlayer(ctx context.Context, roomID, playerID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM players WHERE room_id = $1 AND id = $2`, roomID, playerID,
	); err != nil {
		return fmt.Errorf("failed to remove player: %w", err)
	}
	return nil
}

func (r *Repository) ResetScores(ctx context.Context, roomID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE players SET score = 0 WHERE room_id = $1`, roomID,
	); err != nil {
		return fmt.Errorf("failed to reset scores: %w", err)
	}
	return nil
}

const submissionColumns = `id, room_id, scope, player_id, player_name, answer, judged, submitted_at, judged_at`

func (r *Repository) UpsertSubmission(ctx context.Context, sub models.Submission) (*models.Submission, error) {
	// The DO UPDATE's WHERE clause makes a graded row win every race: a
	// revision racing the judge either lands before the CAS or is
	// rejected here with no row returned.
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO submissions (id, room_id, scope, player_id, player_name, answer, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, scope, player_id) DO UPDATE
			SET player_name = EXCLUDED.player_name,
				answer = EXCLUDED.answer,
				submitted_at = EXCLUDED.submitted_at
			WHERE submissions.judged IS NULL
		RETURNING `+submissionColumns,
		sub.ID, sub.RoomID, sub.Scope, sub.PlayerID, sub.PlayerName, sub.Answer, sub.SubmittedAt,
	)
	out, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission for player %s scope %d: %w", sub.PlayerID, sub.Scope, room.ErrAlreadyJudged)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert submission: %w", err)
	}
	return out, nil
}

func (r *Repository) GetSubmission(ctx context.Context, roomID string, submissionID uuid.UUID) (*models.Submission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE room_id = $1 AND id = $2`,
		roomID, submissionID,
	)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", submissionID, room.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

func (r *Repository) ListSubmissions(ctx context.Context, roomID string, scope int) ([]models.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE room_id = $1 AND scope = $2 ORDER BY submitted_at`,
		roomID, scope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (r *Repository) JudgeSubmission(ctx context.Context, roomID string, submissionID uuid.UUID, correct bool, scoreDelta int) (*models.Submission, error) {
	var judged *models.Submission
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE submissions
			SET judged = $3, judged_at = $4
			WHERE room_id = $1 AND id = $2 AND judged IS NULL
			RETURNING `+submissionColumns,
			roomID, submissionID, correct, time.Now().UTC(),
		)
		sub, err := scanSubmission(row)
		if errors.Is(err, sql.ErrNoRows) {
			return r.classifyJudgeMiss(ctx, tx,
				`SELECT judged FROM submissions WHERE room_id = $1 AND id = $2`,
				roomID, submissionID)
		}
		if err != nil {
			return fmt.Errorf("failed to judge submission: %w", err)
		}
		if scoreDelta != 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE players SET score = score + $3 WHERE room_id = $1 AND id = $2`,
				roomID, sub.PlayerID, scoreDelta,
			); err != nil {
				return fmt.Errorf("failed to apply score delta: %w", err)
			}
		}
		judged = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return judged, nil
}

func (r *Repository) UpsertWager(ctx context.Context, w models.Wager) (*models.Wager, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO wagers (room_id, player_id, player_name, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, player_id) DO UPDATE
			SET player_name = EXCLUDED.player_name,
				amount = EXCLUDED.amount,
				placed_at = EXCLUDED.placed_at
		RETURNING room_id, player_id, player_name, amount, placed_at`,
		w.RoomID, w.PlayerID, w.PlayerName, w.Amount, w.PlacedAt,
	)
	var out models.Wager
	if err := row.Scan(&out.RoomID, &out.PlayerID, &out.PlayerName, &out.Amount, &out.PlacedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert wager: %w", err)
	}
	return &out, nil
}

func (r *Repository) GetWager(ctx context.Context, roomID, playerID string) (*models.Wager, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT room_id, player_id, player_name, amount, placed_at FROM wagers WHERE room_id = $1 AND player_id = $2`,
		roomID, playerID,
	)
	var out models.Wager
	err := row.Scan(&out.RoomID, &out.PlayerID, &out.PlayerName, &out.Amount, &out.PlacedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wager for player %s: %w", playerID, room.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	return &out, nil
}

func (r *Repository) ListWagers(ctx context.Context, roomID string) ([]models.Wager, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room_id, player_id, player_name, amount, placed_at FROM wagers WHERE room_id = $1 ORDER BY placed_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	defer rows.Close()

	var out []models.Wager
	for rows.Next() {
		var w models.Wager
		if err := rows.Scan(&w.RoomID, &w.PlayerID, &w.PlayerName, &w.Amount, &w.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const finalAnswerColumns = `room_id, player_id, player_name, answer, judged, points_delta, submitted_at, judged_at`

func (r *Repository) UpsertFinalAnswer(ctx context.Context, fa models.FinalAnswer) (*models.FinalAnswer, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO final_answers (room_id, player_id, player_name, answer, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, player_id) DO UPDATE
			SET player_name = EXCLUDED.player_name,
				answer = EXCLUDED.answer,
				submitted_at = EXCLUDED.submitted_at
			WHERE final_answers.judged IS NULL
		RETURNING `+finalAnswerColumns,
		fa.RoomID, fa.PlayerID, fa.PlayerName, fa.Answer, fa.SubmittedAt,
	)
	out, err := scanFinalAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("final answer for player %s: %w", fa.PlayerID, room.ErrAlreadyJudged)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert final answer: %w", err)
	}
	return out, nil
}

func (r *Repository) ListFinalAnswers(ctx context.Context, roomID string) ([]models.FinalAnswer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+finalAnswerColumns+` FROM final_answers WHERE room_id = $1 ORDER BY submitted_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list final answers: %w", err)
	}
	defer rows.Close()

	var out []models.FinalAnswer
	for rows.Next() {
		fa, err := scanFinalAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan final answer: %w", err)
		}
		out = append(out, *fa)
	}
	return out, rows.Err()
}

func (r *Repository) JudgeFinalAnswer(ctx context.Context, roomID, playerID string, correct bool, pointsDelta int) (*models.FinalAnswer, error) {
	var judged *models.FinalAnswer
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE final_answers
			SET judged = $3, judged_at = $4, points_delta = $5
			WHERE room_id = $1 AND player_id = $2 AND judged IS NULL
			RETURNING `+finalAnswerColumns,
			roomID, playerID, correct, time.Now().UTC(), pointsDelta,
		)
		fa, err := scanFinalAnswer(row)
		if errors.Is(err, sql.ErrNoRows) {
			return r.classifyJudgeMiss(ctx, tx,
				`SELECT judged FROM final_answers WHERE room_id = $1 AND player_id = $2`,
				roomID, playerID)
		}
		if err != nil {
			return fmt.Errorf("failed to judge final answer: %w", err)
		}
		if pointsDelta != 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE players SET score = score + $3 WHERE room_id = $1 AND id = $2`,
				roomID, playerID, pointsDelta,
			); err != nil {
				return fmt.Errorf("failed to apply points delta: %w", err)
			}
		}
		judged = fa
		return nil
	})
	if err != nil {
		return nil, err
	}
	return judged, nil
}

func (r *Repository) ClearLedger(ctx context.Context, roomID string) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"submissions", "wagers", "final_answers"} {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE room_id = $1`, roomID,
			); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (r *Repository) NextWindowDeadline(ctx context.Context) (*room.WindowDeadline, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, window_deadline FROM rooms
		WHERE window_deadline IS NOT NULL
		ORDER BY window_deadline
		LIMIT 1`,
	)
	var out room.WindowDeadline
	err := row.Scan(&out.RoomID, &out.Deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next window deadline: %w", err)
	}
	return &out, nil
}

func (r *Repository) RoomsDueForClose(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM rooms
		WHERE window_deadline IS NOT NULL AND window_deadline <= $1
		ORDER BY window_deadline
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rooms due for close: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan room id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// classifyJudgeMiss resolves a CAS miss into ErrAlreadyJudged or
// ErrNotFound.
func (r *Repository) classifyJudgeMiss(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	var judged sql.NullBool
	err := tx.QueryRowContext(ctx, query, args...).Scan(&judged)
	if errors.Is(err, sql.ErrNoRows) {
		return room.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to classify judge miss: %w", err)
	}
	return room.ErrAlreadyJudged
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		rm          models.Room
		questions   []byte
		revealedAt  sql.NullTime
		deadline    sql.NullTime
		suddenDeath pqtype.NullRawMessage
	)
	err := row.Scan(
		&rm.ID, &rm.HostSecret, &rm.Title, &questions, &rm.CurrentIndex, &rm.Status, &rm.Revealed,
		&rm.AcceptingAnswers, &revealedAt, &deadline,
		&rm.Final.WagersOpen, &rm.Final.AnswersOpen, &rm.Final.RevealedAnswer,
		&suddenDeath, &rm.CreatedAt, &rm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &rm.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	if revealedAt.Valid {
		rm.RevealedAt = &revealedAt.Time
	}
	if deadline.Valid {
		rm.WindowDeadline = &deadline.Time
	}
	if suddenDeath.Valid {
		var sd models.SuddenDeath
		if err := json.Unmarshal(suddenDeath.RawMessage, &sd); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sudden death: %w", err)
		}
		rm.SuddenDeath = &sd
	}
	return &rm, nil
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.RoomID, &p.ID, &p.Name, &p.Score, &p.JoinedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub      models.Submission
		judged   sql.NullBool
		judgedAt sql.NullTime
	)
	err := row.Scan(&sub.ID, &sub.RoomID, &sub.Scope, &sub.PlayerID, &sub.PlayerName,
		&sub.Answer, &judged, &sub.SubmittedAt, &judgedAt)
	if err != nil {
		return nil, err
	}
	if judged.Valid {
		sub.Judged = &judged.Bool
	}
	if judgedAt.Valid {
		sub.JudgedAt = &judgedAt.Time
	}
	return &sub, nil
}

func scanFinalAnswer(row rowScanner) (*models.FinalAnswer, error) {
	var (
		fa       models.FinalAnswer
		judged   sql.NullBool
		judgedAt sql.NullTime
	)
	err := row.Scan(&fa.RoomID, &fa.PlayerID, &fa.PlayerName, &fa.Answer,
		&judged, &fa.PointsDelta, &fa.SubmittedAt, &judgedAt)
	if err != nil {
		return nil, err
	}
	if judged.Valid {
		fa.Judged = &judged.Bool
	}
	if judgedAt.Valid {
		fa.JudgedAt = &judgedAt.Time
	}
	return &fa, nil
}

func marshalSuddenDeath(sd *models.SuddenDeath) (pqtype.NullRawMessage, error) {
	if sd == nil {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(sd)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("failed to marshal sudden death: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
