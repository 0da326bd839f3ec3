package game

import (
	"time"

	"github.com/lps-games/lastplayer/go/internal/models"
)

// CreateGameRequest carries the host's settings for a new game.
type CreateGameRequest struct {
	HostName          string `json:"host_name"`
	InitialPrizePot   int64  `json:"initial_prize_pot"`
	PrizePotIncrement int64  `json:"prize_pot_increment"`
	AutoFlow          bool   `json:"auto_flow"`
}

// GameInfo is the public view of a game and its roster.
type GameInfo struct {
	Game    *models.Game    `json:"game"`
	Players []models.Player `json:"players"`
}

// PlayerState is the per-player view returned to polling clients. The
// host name is redacted for non-hosts and the correct answer is hidden
// while the question is still open.
type PlayerState struct {
	Game            *models.Game     `json:"game"`
	Player          *models.Player   `json:"player"`
	Players         []models.Player  `json:"players"`
	CurrentQuestion *models.Question `json:"current_question,omitempty"`
	QuestionStarted *time.Time       `json:"question_started_at,omitempty"`
}

// NextDeadline is the soonest pending auto-flow deadline.
type NextDeadline struct {
	Code     string
	Deadline time.Time
}
