package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerOption is one of the four multiple-choice answers.
type AnswerOption string

const (
	AnswerA AnswerOption = "A"
	AnswerB AnswerOption = "B"
	AnswerC AnswerOption = "C"
	AnswerD AnswerOption = "D"
)

// ValidAnswerOption reports whether a is a legal answer letter.
// Matching is case-sensitive: only upper-case A-D are accepted.
func ValidAnswerOption(a AnswerOption) bool {
	switch a {
	case AnswerA, AnswerB, AnswerC, AnswerD:
		return true
	default:
		return false
	}
}

// Question is one timed trivia question of a game. Indexes are 0-based,
// unique per game and contiguous; deleting an unplayed question
// re-indexes the questions after it.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	GameID        uuid.UUID    `json:"game_id"`
	QuestionIndex int          `json:"question_index"`
	Text          string       `json:"text"`
	OptionA       string       `json:"option_a"`
	OptionB       string       `json:"option_b"`
	OptionC       string       `json:"option_c"`
	OptionD       string       `json:"option_d"`
	CorrectAnswer AnswerOption `json:"correct_answer,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Redacted returns a copy with the correct answer stripped, for players
// who have not seen the reveal yet.
func (q *Question) Redacted() *Question {
	c := *q
	c.CorrectAnswer = ""
	return &c
}
