package gateway

import (
	"net/http"
	"strings"

	"github.com/lps-games/lastplayer/go/internal/api"
	"github.com/lps-games/lastplayer/go/internal/game"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for game event streams.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleGameConnection upgrades a client onto one game's event stream.
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.URL.Query().Get("code"))
	if !game.ValidCode(code) {
		http.Error(w, "valid code query parameter is required", http.StatusBadRequest)
		return
	}

	// Username identifies the connection in logs only; the stream
	// carries no per-player secrets.
	username := r.URL.Query().Get("username")
	if username == "" {
		username = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, username, code); err != nil {
		log.Error().
			Err(err).
			Str("game_code", code).
			Str("username", username).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleConnectionStats reports active connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.connectionManager.GetStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/game", h.HandleGameConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
