package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

// WebSocketHandler handles WebSocket upgrade requests for room connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	provider          SnapshotProvider

	// joinBaseURL is the public URL players open to join, used for the
	// QR code endpoint, e.g. "https://quiz.example.com/join".
	joinBaseURL string
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, provider SnapshotProvider, joinBaseURL string) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		provider:          provider,
		joinBaseURL:       joinBaseURL,
	}
}

// HandleRoomConnection handles WebSocket connections for a specific
// room. Presenting the room's host secret marks the connection as the
// host view; a wrong secret downgrades to the player view rather than
// erroring, so a stale host tab still sees the game.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	snap, err := h.provider.Snapshot(r.Context(), roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = "spectator"
	}

	secret := r.URL.Query().Get("host_secret")
	isHost := secret != "" && secret == snap.Room.HostSecret

	if err := h.connectionManager.UpgradeConnection(w, r, playerID, roomID, isHost); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", playerID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}

	// Connection is now handled by the connection manager
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// HandleJoinQR renders a PNG QR code pointing players at the join page
// for a room, for the host to put on the shared screen.
func (h *WebSocketHandler) HandleJoinQR(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if _, err := h.provider.Snapshot(r.Context(), roomID); err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	joinURL := fmt.Sprintf("%s/%s", h.joinBaseURL, roomID)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 512)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode QR code")
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Error().Err(err).Msg("failed to write QR code response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", h.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
	mux.HandleFunc("GET /api/rooms/{id}/qr", h.HandleJoinQR)
}
