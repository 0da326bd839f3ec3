package flow

import (
	"context"
	"net/http"
	"strings"

	"github.com/lps-games/lastplayer/go/internal/api"
	"github.com/lps-games/lastplayer/go/internal/models"
)

// Service exposes host round-flow controls over JSON HTTP.
type Service struct {
	ctrl *Controller
}

func NewService(ctrl *Controller) *Service {
	return &Service{ctrl: ctrl}
}

// RegisterRoutes registers round-flow routes with an HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games/{code}/start", s.handle(s.ctrl.StartGame))
	mux.HandleFunc("POST /api/games/{code}/reveal", s.handle(s.ctrl.Reveal))
	mux.HandleFunc("POST /api/games/{code}/advance", s.handle(s.ctrl.Advance))
	mux.HandleFunc("POST /api/games/{code}/next-question", s.handle(s.ctrl.NextQuestion))
}

// handle adapts one host transition to an HTTP handler; every flow
// endpoint takes {host_name} and returns the updated game.
func (s *Service) handle(op func(ctx context.Context, code, hostName string) (*models.Game, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(r.PathValue("code"))

		var req struct {
			HostName string `json:"host_name"`
		}
		if err := api.Decode(r, &req); err != nil {
			api.WriteError(w, err)
			return
		}

		g, err := op(r.Context(), code, req.HostName)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, g)
	}
}
