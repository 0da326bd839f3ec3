package gateway

import (
	"testing"

	"github.com/lps-games/lastplayer/go/internal/events"
)

func TestKnownEventType(t *testing.T) {
	known := []string{
		events.TypeGameStarted,
		events.TypePlayerJoined,
		events.TypePhaseChanged,
		events.TypeAnswerRevealed,
		events.TypeVotingStarted,
		events.TypeVotingEnded,
		events.TypePlayerRedeemed,
		events.TypeNextRound,
		events.TypeGameEnded,
		events.TypeSoundTriggered,
	}
	for _, typ := range known {
		if !KnownEventType(typ) {
			t.Errorf("expected %q to be forwarded", typ)
		}
	}
	for _, typ := range []string{"", "chat_message", "GAME_STARTED"} {
		if KnownEventType(typ) {
			t.Errorf("expected %q to be dropped", typ)
		}
	}
}
