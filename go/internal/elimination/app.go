package elimination

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// Elimination reasons reported to the answering client.
const (
	ReasonWrongAnswer       = "wrong_answer"
	ReasonTimeout           = "timeout"
	ReasonAlreadyEliminated = "already_eliminated"
)

// AnswerResult tells the answering client what their submission did.
type AnswerResult struct {
	Correct    bool   `json:"correct"`
	Eliminated bool   `json:"eliminated"`
	Reason     string `json:"reason,omitempty"`
}

// GameRepository defines what the engine needs from the game store.
type GameRepository interface {
	GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
}

// PlayerRepository defines what the engine needs from the player store.
type PlayerRepository interface {
	GetPlayerForUpdate(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error)
	Eliminate(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, questionIndex int) (bool, error)
	RecordAnswer(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, questionIndex int) error
}

// QuestionRepository defines what the engine needs from the question store.
type QuestionRepository interface {
	GetQuestionByIndex(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) (*models.Question, error)
}

// App decides elimination on every answer submission. All decisions run
// inside one transaction with the game and player rows locked, so
// concurrent submissions from the same player serialize.
type App struct {
	games     GameRepository
	players   PlayerRepository
	questions QuestionRepository
	tx        sqlutil.TxRunner
	clock     clockwork.Clock
	timeLimit time.Duration
}

func NewApp(games GameRepository, players PlayerRepository, questions QuestionRepository, tx sqlutil.TxRunner, clock clockwork.Clock, timeLimit time.Duration) *App {
	return &App{
		games:     games,
		players:   players,
		questions: questions,
		tx:        tx,
		clock:     clock,
		timeLimit: timeLimit,
	}
}

// SubmitAnswer grades one answer. Wrong or late answers eliminate the
// player at the current question index; a correct in-time answer records
// the round so the timeout sweep skips this player. Submissions from an
// already-eliminated player are a benign no-op, not an error.
func (a *App) SubmitAnswer(ctx context.Context, code, username string, answer models.AnswerOption) (*AnswerResult, error) {
	if !models.ValidAnswerOption(answer) {
		return nil, gameerrors.Validation("answer must be one of A, B, C, D")
	}

	var result *AnswerResult
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}

		p, err := a.players.GetPlayerForUpdate(ctx, q, g.ID, username)
		if err != nil {
			return err
		}
		if !p.InPlay() {
			result = &AnswerResult{Eliminated: true, Reason: ReasonAlreadyEliminated}
			return nil
		}

		if g.Phase != models.PhaseQuestion || g.CurrentQuestionIndex == nil {
			return gameerrors.InvalidState("game %s is not accepting answers", code)
		}
		index := *g.CurrentQuestionIndex

		question, err := a.questions.GetQuestionByIndex(ctx, q, g.ID, index)
		if err != nil {
			return err
		}

		if a.clock.Since(g.PhaseStartedAt) > a.timeLimit {
			result, err = a.eliminate(ctx, q, p, index, ReasonTimeout)
			return err
		}

		if answer != question.CorrectAnswer {
			result, err = a.eliminate(ctx, q, p, index, ReasonWrongAnswer)
			return err
		}

		if err := a.players.RecordAnswer(ctx, q, p.ID, index); err != nil {
			return err
		}
		result = &AnswerResult{Correct: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_code", code).
		Str("username", username).
		Bool("correct", result.Correct).
		Str("reason", result.Reason).
		Msg("answer graded")
	return result, nil
}

func (a *App) eliminate(ctx context.Context, q sqlutil.DBTX, p *models.Player, index int, reason string) (*AnswerResult, error) {
	did, err := a.players.Eliminate(ctx, q, p.ID, index)
	if err != nil {
		return nil, err
	}
	if !did {
		// Lost the race to another submission from the same player.
		return &AnswerResult{Eliminated: true, Reason: ReasonAlreadyEliminated}, nil
	}
	return &AnswerResult{Eliminated: true, Reason: reason}, nil
}
