package question

import (
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
)

// QuestionInput is the host-supplied content of a question.
type QuestionInput struct {
	Text          string              `json:"text"`
	OptionA       string              `json:"option_a"`
	OptionB       string              `json:"option_b"`
	OptionC       string              `json:"option_c"`
	OptionD       string              `json:"option_d"`
	CorrectAnswer models.AnswerOption `json:"correct_answer"`
}

// Validate checks the input is complete and the answer letter is legal.
func (in QuestionInput) Validate() error {
	if in.Text == "" {
		return gameerrors.Validation("question text is required")
	}
	if in.OptionA == "" || in.OptionB == "" || in.OptionC == "" || in.OptionD == "" {
		return gameerrors.Validation("all four answer options are required")
	}
	if !models.ValidAnswerOption(in.CorrectAnswer) {
		return gameerrors.Validation("correct_answer must be one of A, B, C, D")
	}
	return nil
}
