package events

import "time"

// Event type names shared by the outbox, the gateway and clients.
const (
	TypeGameStarted    = "GameStarted"
	TypePlayerJoined   = "PlayerJoined"
	TypePhaseChanged   = "PhaseChanged"
	TypeAnswerRevealed = "AnswerRevealed"
	TypeVotingStarted  = "VotingStarted"
	TypeVotingEnded    = "VotingEnded"
	TypePlayerRedeemed = "PlayerRedeemed"
	TypeNextRound      = "NextRound"
	TypeGameEnded      = "GameEnded"
	TypeSoundTriggered = "SoundTriggered"
)

// GameStartedPayload is emitted when the host starts the game.
type GameStartedPayload struct {
	GameCode      string    `json:"game_code"`
	QuestionIndex int       `json:"question_index"`
	StartedAt     time.Time `json:"started_at"`
	TimeLimitSec  int       `json:"time_limit_sec"`
}

// PlayerJoinedPayload is emitted when a player joins the lobby.
type PlayerJoinedPayload struct {
	GameCode string    `json:"game_code"`
	PlayerID string    `json:"player_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

// PhaseChangedPayload is emitted on every phase transition.
type PhaseChangedPayload struct {
	GameCode      string     `json:"game_code"`
	Phase         string     `json:"phase"`
	QuestionIndex *int       `json:"question_index,omitempty"`
	ChangedAt     time.Time  `json:"changed_at"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// AnswerRevealedPayload carries the correct answer after the question closes.
type AnswerRevealedPayload struct {
	GameCode      string    `json:"game_code"`
	QuestionIndex int       `json:"question_index"`
	CorrectAnswer string    `json:"correct_answer"`
	RevealedAt    time.Time `json:"revealed_at"`
}

// VotingStartedPayload announces a redemption round and its candidates.
type VotingStartedPayload struct {
	GameCode      string    `json:"game_code"`
	RoundID       string    `json:"round_id"`
	QuestionIndex int       `json:"question_index"`
	CandidateIDs  []string  `json:"candidate_ids"`
	EndsAt        time.Time `json:"ends_at"`
}

// VotingEndedPayload carries the final tally of a redemption round.
type VotingEndedPayload struct {
	GameCode         string         `json:"game_code"`
	RoundID          string         `json:"round_id"`
	QuestionIndex    int            `json:"question_index"`
	Tally            map[string]int `json:"tally"`
	RedeemedPlayerID *string        `json:"redeemed_player_id,omitempty"`
	EndedAt          time.Time      `json:"ended_at"`
}

// PlayerRedeemedPayload is emitted when a vote restores a player.
type PlayerRedeemedPayload struct {
	GameCode        string `json:"game_code"`
	PlayerID        string `json:"player_id"`
	Username        string `json:"username"`
	CurrentPrizePot int64  `json:"current_prize_pot"`
}

// NextRoundPayload is emitted when the game advances to the next question.
type NextRoundPayload struct {
	GameCode      string    `json:"game_code"`
	QuestionIndex int       `json:"question_index"`
	StartedAt     time.Time `json:"started_at"`
	TimeLimitSec  int       `json:"time_limit_sec"`
}

// GameEndedPayload is emitted when the host ends the game with a winner.
type GameEndedPayload struct {
	GameCode       string    `json:"game_code"`
	WinnerPlayerID string    `json:"winner_player_id"`
	WinnerUsername string    `json:"winner_username"`
	PrizePot       int64     `json:"prize_pot"`
	EndedAt        time.Time `json:"ended_at"`
}

// SoundTriggeredPayload is emitted when the host fires a media cue.
type SoundTriggeredPayload struct {
	GameCode string `json:"game_code"`
	Sound    string `json:"sound"`
}
