package question

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/lps-games/lastplayer/go/internal/api"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
)

// Service exposes host-side question management over JSON HTTP.
type Service struct {
	app *App
}

func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers question routes with an HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games/{code}/questions", s.handleAddQuestion)
	mux.HandleFunc("GET /api/games/{code}/questions", s.handleListQuestions)
	mux.HandleFunc("PUT /api/games/{code}/questions/{index}", s.handleUpdateQuestion)
	mux.HandleFunc("DELETE /api/games/{code}/questions/{index}", s.handleDeleteQuestion)
}

type questionRequest struct {
	HostName string        `json:"host_name"`
	Question QuestionInput `json:"question"`
}

func pathCode(r *http.Request) string {
	return strings.ToUpper(r.PathValue("code"))
}

func pathIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		return 0, gameerrors.Validation("invalid question index")
	}
	return index, nil
}

func (s *Service) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	created, err := s.app.AddQuestion(r.Context(), pathCode(r), req.HostName, req.Question)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

func (s *Service) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	hostName := r.URL.Query().Get("host_name")
	if hostName == "" {
		api.WriteError(w, gameerrors.Validation("host_name query parameter is required"))
		return
	}

	questions, err := s.app.ListQuestions(r.Context(), pathCode(r), hostName)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, questions)
}

func (s *Service) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	var req questionRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	updated, err := s.app.UpdateQuestion(r.Context(), pathCode(r), req.HostName, index, req.Question)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

func (s *Service) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
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

	if err := s.app.DeleteQuestion(r.Context(), pathCode(r), req.HostName, index); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
