package api

import (
	"encoding/json"
	"net/http"

	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string          `json:"error"`
	Kind  gameerrors.Kind `json:"kind,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// WriteError maps a game error kind to an HTTP status. Unexpected
// errors are logged and surfaced as a generic 500 without internals.
func WriteError(w http.ResponseWriter, err error) {
	kind := gameerrors.KindOf(err)
	status := http.StatusInternalServerError

	switch kind {
	case gameerrors.KindNotFound:
		status = http.StatusNotFound
	case gameerrors.KindForbidden:
		status = http.StatusForbidden
	case gameerrors.KindValidation:
		status = http.StatusBadRequest
	case gameerrors.KindConflict:
		status = http.StatusConflict
	case gameerrors.KindInvalidState:
		status = http.StatusUnprocessableEntity
	default:
		log.Error().Err(err).Msg("unexpected internal error")
	}

	WriteJSON(w, status, ErrorResponse{Error: gameerrors.MessageOf(err), Kind: kind})
}

// Decode parses the request body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return gameerrors.Validation("invalid request body")
	}
	return nil
}
