package redemption

import (
	"github.com/google/uuid"
	"github.com/lps-games/lastplayer/go/internal/models"
)

// TallyEntry is one candidate's vote count.
type TallyEntry struct {
	PlayerID uuid.UUID `json:"player_id"`
	Votes    int       `json:"votes"`
}

// RoundState is the public view of a redemption round.
type RoundState struct {
	Round      *models.RedemptionRound `json:"round"`
	Candidates []models.Player         `json:"candidates"`
	Tally      []TallyEntry            `json:"tally"`
}

// EndResult reports the outcome of closing a round.
type EndResult struct {
	Round    *models.RedemptionRound `json:"round"`
	Redeemed *models.Player          `json:"redeemed,omitempty"`
	Tally    []TallyEntry            `json:"tally"`
}
