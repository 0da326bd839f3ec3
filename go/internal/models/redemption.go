package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus defines the status of a redemption round.
type RoundStatus string

const (
	RoundStatusActive    RoundStatus = "ACTIVE"
	RoundStatusCompleted RoundStatus = "COMPLETED"
)

// RedemptionRound is a timed vote among surviving players to bring one
// player eliminated at QuestionIndex back into the game. At most one
// round is active per (game, question index).
type RedemptionRound struct {
	ID               uuid.UUID   `json:"id"`
	GameID           uuid.UUID   `json:"game_id"`
	QuestionIndex    int         `json:"question_index"`
	Status           RoundStatus `json:"status"`
	EndsAt           time.Time   `json:"ends_at"`
	RedeemedPlayerID *uuid.UUID  `json:"redeemed_player_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Vote is one ballot in a redemption round; unique per (round, voter).
type Vote struct {
	ID               uuid.UUID `json:"id"`
	RoundID          uuid.UUID `json:"round_id"`
	VoterPlayerID    uuid.UUID `json:"voter_player_id"`
	VotedForPlayerID uuid.UUID `json:"voted_for_player_id"`
	CreatedAt        time.Time `json:"created_at"`
}
