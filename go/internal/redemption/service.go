package redemption

import (
	"net/http"
	"strings"

	"github.com/lps-games/lastplayer/go/internal/api"
)

// Service exposes redemption voting over JSON HTTP.
type Service struct {
	app *App
}

func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers voting routes with an HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games/{code}/voting/start", s.handleStartRound)
	mux.HandleFunc("POST /api/games/{code}/voting/vote", s.handleCastVote)
	mux.HandleFunc("POST /api/games/{code}/voting/end", s.handleEndRound)
	mux.HandleFunc("GET /api/games/{code}/voting", s.handleGetRoundState)
}

func pathCode(r *http.Request) string {
	return strings.ToUpper(r.PathValue("code"))
}

func (s *Service) handleStartRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostName string `json:"host_name"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	round, err := s.app.StartRound(r.Context(), pathCode(r), req.HostName)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, round)
}

func (s *Service) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		VotedFor string `json:"voted_for"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	if err := s.app.CastVote(r.Context(), pathCode(r), req.Username, req.VotedFor); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleEndRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostName string `json:"host_name"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	result, err := s.app.EndRound(r.Context(), pathCode(r), req.HostName)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func (s *Service) handleGetRoundState(w http.ResponseWriter, r *http.Request) {
	state, err := s.app.GetRoundState(r.Context(), pathCode(r))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, state)
}
