package room

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quizroyale/quizroyale/clients/openai_client"
)

// HostSecretHeader carries the host secret on privileged requests.
const HostSecretHeader = "X-Host-Secret"

// Service exposes the room app over JSON HTTP.
type Service struct {
	app *App
}

// NewService creates a new room HTTP service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers all room routes on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetSnapshot)

	// Host operations, authorized by the X-Host-Secret header.
	mux.HandleFunc("POST /api/rooms/{id}/generate", s.handleGenerateGame)
	mux.HandleFunc("POST /api/rooms/{id}/new-game", s.handleStartNewGame)
	mux.HandleFunc("PUT /api/rooms/{id}/questions/{index}", s.handleUpdateQuestion)
	mux.HandleFunc("POST /api/rooms/{id}/questions/{index}/replace", s.handleReplaceQuestion)
	mux.HandleFunc("POST /api/rooms/{id}/questions/{index}/reveal", s.handleReveal)
	mux.HandleFunc("POST /api/rooms/{id}/close", s.handleCloseAnswers)
	mux.HandleFunc("POST /api/rooms/{id}/hide", s.handleHide)
	mux.HandleFunc("POST /api/rooms/{id}/goto/{index}", s.handleGoto)
	mux.HandleFunc("POST /api/rooms/{id}/final/wagers", s.handleOpenFinalWagers)
	mux.HandleFunc("POST /api/rooms/{id}/final/answers", s.handleOpenFinalAnswers)
	mux.HandleFunc("POST /api/rooms/{id}/end", s.handleEndGame)
	mux.HandleFunc("POST /api/rooms/{id}/submissions/{submissionId}/judge", s.handleJudgeSubmission)
	mux.HandleFunc("POST /api/rooms/{id}/final/judge/{playerId}", s.handleJudgeFinal)
	mux.HandleFunc("POST /api/rooms/{id}/reset-scores", s.handleResetScores)
	mux.HandleFunc("POST /api/rooms/{id}/sudden-death", s.handleStartSuddenDeath)
	mux.HandleFunc("POST /api/rooms/{id}/sudden-death/reveal", s.handleRevealSuddenDeath)
	mux.HandleFunc("POST /api/rooms/{id}/sudden-death/close", s.handleCloseSuddenDeath)
	mux.HandleFunc("POST /api/rooms/{id}/sudden-death/replace", s.handleReplaceSuddenDeath)

	// Player operations.
	mux.HandleFunc("POST /api/rooms/{id}/join", s.handleJoin)
	mux.HandleFunc("POST /api/rooms/{id}/leave", s.handleLeave)
	mux.HandleFunc("POST /api/rooms/{id}/answers", s.handleSubmitAnswer)
	mux.HandleFunc("POST /api/rooms/{id}/wager", s.handleSubmitWager)
	mux.HandleFunc("POST /api/rooms/{id}/final-answer", s.handleSubmitFinalAnswer)

	log.Info().Msg("room routes registered")
}

func (s *Service) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	rm, err := s.app.CreateRoom(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// The only response that ever carries the host secret.
	s.writeJSON(w, http.StatusCreated, rm)
}

// handleGetSnapshot returns the room view for polling clients. The
// host view requires the secret; everyone else gets the redacted one.
func (s *Service) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	isHost := r.Header.Get(HostSecretHeader) == snap.Room.HostSecret && snap.Room.HostSecret != ""
	view := RedactSnapshot(*snap, isHost)
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleGenerateGame(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.GenerateGame(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleStartNewGame(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.StartNewGame(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	var req UpdateQuestionRequest
	if !s.decode(w, r, &req) {
		return
	}
	rm, err := s.app.UpdateQuestion(r.Context(), r.PathValue("id"), hostSecret(r), index, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleReplaceQuestion(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	rm, err := s.app.ReplaceQuestion(r.Context(), r.PathValue("id"), hostSecret(r), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleReveal(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	rm, err := s.app.Reveal(r.Context(), r.PathValue("id"), hostSecret(r), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleCloseAnswers(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.CloseAnswers(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleHide(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.Hide(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleGoto(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	rm, err := s.app.Goto(r.Context(), r.PathValue("id"), hostSecret(r), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleOpenFinalWagers(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.OpenFinalWagers(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleOpenFinalAnswers(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.OpenFinalAnswers(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleEndGame(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.EndGame(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleJudgeSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := uuid.Parse(r.PathValue("submissionId"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid submission id"))
		return
	}
	var req struct {
		Correct bool `json:"correct"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	sub, err := s.app.JudgeSubmission(r.Context(), r.PathValue("id"), hostSecret(r), submissionID, req.Correct)
	if errors.Is(err, ErrAlreadyJudged) {
		// One-shot guard tripped: the first judgment stands, and a
		// double-click is not an error worth surfacing to the host.
		s.writeJSON(w, http.StatusOK, map[string]bool{"already_judged": true})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Service) handleJudgeFinal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Correct bool `json:"correct"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	fa, err := s.app.JudgeFinal(r.Context(), r.PathValue("id"), hostSecret(r), r.PathValue("playerId"), req.Correct)
	if errors.Is(err, ErrAlreadyJudged) {
		s.writeJSON(w, http.StatusOK, map[string]bool{"already_judged": true})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fa)
}

func (s *Service) handleResetScores(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ResetScores(r.Context(), r.PathValue("id"), hostSecret(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Service) handleStartSuddenDeath(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.StartSuddenDeath(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleRevealSuddenDeath(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.RevealSuddenDeath(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleCloseSuddenDeath(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.CloseSuddenDeathAnswers(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleReplaceSuddenDeath(w http.ResponseWriter, r *http.Request) {
	rm, err := s.app.ReplaceSuddenDeathQuestion(r.Context(), r.PathValue("id"), hostSecret(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Service) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !s.decode(w, r, &req) {
		return
	}
	player, err := s.app.Join(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, player)
}

func (s *Service) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.app.Leave(r.Context(), r.PathValue("id"), req.PlayerID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Service) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if !s.decode(w, r, &req) {
		return
	}
	sub, err := s.app.SubmitAnswer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Service) handleSubmitWager(w http.ResponseWriter, r *http.Request) {
	var req SubmitWagerRequest
	if !s.decode(w, r, &req) {
		return
	}
	wager, err := s.app.SubmitWager(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wager)
}

func (s *Service) handleSubmitFinalAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitFinalAnswerRequest
	if !s.decode(w, r, &req) {
		return
	}
	fa, err := s.app.SubmitFinalAnswer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fa)
}

func hostSecret(r *http.Request) string {
	return r.Header.Get(HostSecretHeader)
}

func (s *Service) pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid question index"))
		return 0, false
	}
	return index, true
}

func (s *Service) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps domain errors to HTTP statuses. Unauthorized host
// calls return 403 with no detail and no state change; provider format
// failures return 502 with the truncated raw completion so the host
// can see what the model actually said.
func (s *Service) writeError(w http.ResponseWriter, err error) {
	var formatErr *openai_client.FormatError
	switch {
	case errors.As(err, &formatErr):
		s.writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": formatErr.Error(),
			"raw":   formatErr.Raw,
		})
	case errors.Is(err, ErrValidation):
		s.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, ErrUnauthorized):
		s.writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
	case errors.Is(err, ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, ErrAlreadyJudged), errors.Is(err, ErrStateConflict):
		s.writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		log.Error().Err(err).Msg("internal error")
		s.writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
