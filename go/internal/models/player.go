package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerStatus defines the status of a player within a game.
type PlayerStatus string

const (
	PlayerStatusActive     PlayerStatus = "ACTIVE"
	PlayerStatusEliminated PlayerStatus = "ELIMINATED"
	PlayerStatusRedeemed   PlayerStatus = "REDEEMED"
)

// Player represents a participant in a single game.
//
// Invariant: EliminatedRound is non-nil iff Status is ELIMINATED.
// LastAnsweredRound records the question index the player last answered
// correctly in time; the timeout sweep uses it to find non-answerers.
type Player struct {
	ID                uuid.UUID    `json:"id"`
	GameID            uuid.UUID    `json:"game_id"`
	Username          string       `json:"username"`
	Status            PlayerStatus `json:"status"`
	EliminatedRound   *int         `json:"eliminated_round"`
	LastAnsweredRound *int         `json:"last_answered_round,omitempty"`
	Balance           int64        `json:"balance"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// InPlay reports whether the player is still competing. Redeemed players
// are back in play; only elimination takes a player out.
func (p *Player) InPlay() bool {
	return p.Status == PlayerStatusActive || p.Status == PlayerStatusRedeemed
}
