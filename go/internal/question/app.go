package question

import (
	"context"

	"github.com/google/uuid"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// GameRepository defines what the question app needs from the game store.
type GameRepository interface {
	GetGameByCode(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
	GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
}

// QuestionRepository defines what the app needs from the question store.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int, req QuestionInput) (*models.Question, error)
	GetQuestionByIndex(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) (*models.Question, error)
	ListQuestions(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Question, error)
	CountQuestions(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (int, error)
	UpdateQuestion(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int, req QuestionInput) (*models.Question, error)
	DeleteQuestion(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) error
}

// App handles host-side question management.
type App struct {
	games     GameRepository
	questions QuestionRepository
	db        sqlutil.DBTX
	tx        sqlutil.TxRunner
}

func NewApp(games GameRepository, questions QuestionRepository, db sqlutil.DBTX, tx sqlutil.TxRunner) *App {
	return &App{
		games:     games,
		questions: questions,
		db:        db,
		tx:        tx,
	}
}

// AddQuestion appends a question at the next free index.
func (a *App) AddQuestion(ctx context.Context, code, hostName string, in QuestionInput) (*models.Question, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created *models.Question
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		game, err := a.hostGameForUpdate(ctx, q, code, hostName)
		if err != nil {
			return err
		}
		count, err := a.questions.CountQuestions(ctx, q, game.ID)
		if err != nil {
			return err
		}
		created, err = a.questions.CreateQuestion(ctx, q, game.ID, count, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_code", code).
		Int("question_index", created.QuestionIndex).
		Msg("question added")
	return created, nil
}

// UpdateQuestion edits a question that has not been played yet.
func (a *App) UpdateQuestion(ctx context.Context, code, hostName string, index int, in QuestionInput) (*models.Question, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated *models.Question
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		game, err := a.hostGameForUpdate(ctx, q, code, hostName)
		if err != nil {
			return err
		}
		if err := mutableIndex(game, index); err != nil {
			return err
		}
		updated, err = a.questions.UpdateQuestion(ctx, q, game.ID, index, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_code", code).
		Int("question_index", index).
		Msg("question updated")
	return updated, nil
}

// DeleteQuestion removes an unplayed question and re-indexes the rest.
func (a *App) DeleteQuestion(ctx context.Context, code, hostName string, index int) error {
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		game, err := a.hostGameForUpdate(ctx, q, code, hostName)
		if err != nil {
			return err
		}
		if err := mutableIndex(game, index); err != nil {
			return err
		}
		return a.questions.DeleteQuestion(ctx, q, game.ID, index)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("game_code", code).
		Int("question_index", index).
		Msg("question deleted")
	return nil
}

// ListQuestions returns all questions for the host view.
func (a *App) ListQuestions(ctx context.Context, code, hostName string) ([]models.Question, error) {
	game, err := a.games.GetGameByCode(ctx, a.db, code)
	if err != nil {
		return nil, err
	}
	if game.HostName != hostName {
		return nil, gameerrors.Forbidden("only the host can view the full question list")
	}
	return a.questions.ListQuestions(ctx, a.db, game.ID)
}

func (a *App) hostGameForUpdate(ctx context.Context, q sqlutil.DBTX, code, hostName string) (*models.Game, error) {
	game, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
	if err != nil {
		return nil, err
	}
	if game.HostName != hostName {
		return nil, gameerrors.Forbidden("only the host can manage questions")
	}
	if game.Phase == models.PhaseFinished {
		return nil, gameerrors.InvalidState("game is finished")
	}
	return game, nil
}

// mutableIndex enforces that played questions are immutable: while the
// game is running only indexes beyond the current question may change.
func mutableIndex(game *models.Game, index int) error {
	if game.CurrentQuestionIndex != nil && index <= *game.CurrentQuestionIndex {
		return gameerrors.InvalidState("question %d has already been played", index)
	}
	return nil
}
