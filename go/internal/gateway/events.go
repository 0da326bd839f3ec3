package gateway

import (
	"encoding/json"
	"time"

	"github.com/lps-games/lastplayer/go/internal/events"
)

// GameEvent is the frame sent to WebSocket clients.
type GameEvent struct {
	ID        string          `json:"id"`
	GameCode  string          `json:"game_code"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

var knownEventTypes = map[string]bool{
	events.TypeGameStarted:    true,
	events.TypePlayerJoined:   true,
	events.TypePhaseChanged:   true,
	events.TypeAnswerRevealed: true,
	events.TypeVotingStarted:  true,
	events.TypeVotingEnded:    true,
	events.TypePlayerRedeemed: true,
	events.TypeNextRound:      true,
	events.TypeGameEnded:      true,
	events.TypeSoundTriggered: true,
}

// KnownEventType reports whether the gateway forwards this event type.
func KnownEventType(t string) bool {
	return knownEventTypes[t]
}
