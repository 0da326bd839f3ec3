package models

import (
	"time"

	"github.com/google/uuid"
)

// GamePhase is the authoritative phase of a game. The coarse
// lobby/active/finished status is derived from it, never stored
// separately, so the two views cannot drift apart.
type GamePhase string

const (
	PhaseLobby       GamePhase = "LOBBY"
	PhaseQuestion    GamePhase = "QUESTION"
	PhaseReveal      GamePhase = "REVEAL"
	PhaseElimination GamePhase = "ELIMINATION"
	PhaseSurvivors   GamePhase = "SURVIVORS"
	PhaseRedemption  GamePhase = "REDEMPTION"
	PhaseFinished    GamePhase = "FINISHED"
)

// GameStatus is the coarse view of a game's lifecycle.
type GameStatus string

const (
	GameStatusLobby    GameStatus = "LOBBY"
	GameStatusActive   GameStatus = "ACTIVE"
	GameStatusFinished GameStatus = "FINISHED"
)

// Game represents one hosted game session.
type Game struct {
	ID                   uuid.UUID  `json:"id"`
	Code                 string     `json:"code"`
	HostName             string     `json:"host_name,omitempty"`
	Phase                GamePhase  `json:"phase"`
	CurrentQuestionIndex *int       `json:"current_question_index"`
	InitialPrizePot      int64      `json:"initial_prize_pot"`
	CurrentPrizePot      int64      `json:"current_prize_pot"`
	PrizePotIncrement    int64      `json:"prize_pot_increment"`
	PhaseStartedAt       time.Time  `json:"phase_started_at"`
	NextDeadline         *time.Time `json:"next_deadline,omitempty"`
	AutoFlow             bool       `json:"auto_flow"`
	SoundTrigger         *string    `json:"sound_trigger,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Status derives the coarse lifecycle view from the phase.
func (g *Game) Status() GameStatus {
	switch g.Phase {
	case PhaseLobby:
		return GameStatusLobby
	case PhaseFinished:
		return GameStatusFinished
	default:
		return GameStatusActive
	}
}

// IsActive reports whether the game is in play (started and not finished).
func (g *Game) IsActive() bool {
	return g.Status() == GameStatusActive
}

// ValidPhase reports whether p is one of the known game phases.
func ValidPhase(p GamePhase) bool {
	switch p {
	case PhaseLobby, PhaseQuestion, PhaseReveal, PhaseElimination,
		PhaseSurvivors, PhaseRedemption, PhaseFinished:
		return true
	default:
		return false
	}
}
