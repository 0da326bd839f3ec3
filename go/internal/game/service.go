package game

import (
	"net/http"
	"strings"

	"github.com/lps-games/lastplayer/go/internal/api"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
)

// Service exposes game lifecycle operations over JSON HTTP.
type Service struct {
	app *App
}

func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers game routes with an HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games/{code}", s.handleGetGame)
	mux.HandleFunc("DELETE /api/games/{code}", s.handleDeleteGame)
	mux.HandleFunc("POST /api/games/{code}/join", s.handleJoinGame)
	mux.HandleFunc("GET /api/games/{code}/player", s.handleGetPlayerState)
	mux.HandleFunc("POST /api/games/{code}/end", s.handleEndGame)
	mux.HandleFunc("POST /api/games/{code}/sound", s.handleTriggerSound)
	mux.HandleFunc("DELETE /api/games/{code}/sound", s.handleClearSound)
}

// gameCode normalizes the path's game code; codes are stored upper-case.
func gameCode(r *http.Request) (string, error) {
	code := strings.ToUpper(r.PathValue("code"))
	if !ValidCode(code) {
		return "", gameerrors.Validation("invalid game code")
	}
	return code, nil
}

func (s *Service) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	g, err := s.app.CreateGame(r.Context(), req)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, g)
}

func (s *Service) handleGetGame(w http.ResponseWriter, r *http.Request) {
	code, err := gameCode(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	info, err := s.app.GetGameInfo(r.Context(), code)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, info)
}

func (s *Service) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	code, err := gameCode(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	var req struct {
		HostName string `json:"host_name"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	if err := s.app.DeleteGame(r.Context(), code, req.HostName); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	code, err := gameCode(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	p, err := s.app.JoinGame(r.Context(), code, req.Username)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, p)
}

func (s *Service) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	code, err := gameCode(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		api.WriteError(w, gameerrors.Validation("username query parameter is required"))
		return
	}

	state, err := s.app.GetPlayerState(r.Context(), code, username)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, state)
}

func (s *Service) handleEndGame(w http.ResponseWriter, r *http.Request) {
	code, err := gameCode(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	var req struct {
		HostName string `json:"host_name"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	winner, err := s.app.EndGame(r.Context(), code, req.HostName)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, winner)
}

func (s *Service) handleTriggerSound(w http.ResponseWriter, r *http.Request) {
	code, err := gameCode(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	var req struct {
		HostName string `json:"host_name"`
		Sound    string `json:"sound"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	if err := s.app.TriggerSound(r.Context(), code, req.HostName, req.Sound); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleClearSound(w http.ResponseWriter, r *http.Request) {
	code, err := gameCode(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	if err := s.app.ClearSound(r.Context(), code); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
