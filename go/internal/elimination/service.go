package elimination

import (
	"net/http"
	"strings"

	"github.com/lps-games/lastplayer/go/internal/api"
	"github.com/lps-games/lastplayer/go/internal/models"
)

// Service exposes answer submission over JSON HTTP.
type Service struct {
	app *App
}

func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers elimination routes with an HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games/{code}/answer", s.handleSubmitAnswer)
}

func (s *Service) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))

	var req struct {
		Username string              `json:"username"`
		Answer   models.AnswerOption `json:"answer"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	result, err := s.app.SubmitAnswer(r.Context(), code, req.Username, req.Answer)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}
