package question

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
)

// Repository persists questions in Postgres.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const questionColumns = `id, game_id, question_index, text, option_a, option_b, option_c, option_d, correct_answer, created_at, updated_at`

const createQuestionSQL = `
INSERT INTO questions (id, game_id, question_index, text, option_a, option_b, option_c, option_d, correct_answer)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + questionColumns

func (r *Repository) CreateQuestion(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int, req QuestionInput) (*models.Question, error) {
	row := q.QueryRow(ctx, createQuestionSQL,
		uuid.New(), gameID, index, req.Text, req.OptionA, req.OptionB, req.OptionC, req.OptionD, req.CorrectAnswer)
	question, err := scanQuestion(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}

const getQuestionByIndexSQL = `
SELECT ` + questionColumns + `
FROM questions
WHERE game_id = $1 AND question_index = $2`

func (r *Repository) GetQuestionByIndex(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) (*models.Question, error) {
	question, err := scanQuestion(q.QueryRow(ctx, getQuestionByIndexSQL, gameID, index))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("question %d not found", index)
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

const listQuestionsSQL = `
SELECT ` + questionColumns + `
FROM questions
WHERE game_id = $1
ORDER BY question_index`

func (r *Repository) ListQuestions(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Question, error) {
	rows, err := q.Query(ctx, listQuestionsSQL, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, *question)
	}
	return questions, rows.Err()
}

const countQuestionsSQL = `
SELECT count(*) FROM questions WHERE game_id = $1`

func (r *Repository) CountQuestions(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (int, error) {
	var count int
	if err := q.QueryRow(ctx, countQuestionsSQL, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

const updateQuestionSQL = `
UPDATE questions
SET text = $3, option_a = $4, option_b = $5, option_c = $6, option_d = $7, correct_answer = $8, updated_at = now()
WHERE game_id = $1 AND question_index = $2
RETURNING ` + questionColumns

func (r *Repository) UpdateQuestion(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int, req QuestionInput) (*models.Question, error) {
	row := q.QueryRow(ctx, updateQuestionSQL,
		gameID, index, req.Text, req.OptionA, req.OptionB, req.OptionC, req.OptionD, req.CorrectAnswer)
	question, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("question %d not found", index)
		}
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return question, nil
}

const deleteQuestionSQL = `
DELETE FROM questions WHERE game_id = $1 AND question_index = $2`

// The shift runs in two passes through negative indexes. A single
// `question_index - 1` update checks the unique constraint per row, so
// a row visited before its lower neighbour trips a duplicate key.
const reindexShiftSQL = `
UPDATE questions
SET question_index = -(question_index - 1), updated_at = now()
WHERE game_id = $1 AND question_index > $2`

const reindexSettleSQL = `
UPDATE questions
SET question_index = -question_index
WHERE game_id = $1 AND question_index < 0`

// DeleteQuestion removes a question and closes the index gap so
// indexes stay contiguous.
func (r *Repository) DeleteQuestion(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) error {
	tag, err := q.Exec(ctx, deleteQuestionSQL, gameID, index)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("question %d not found", index)
	}
	if _, err := q.Exec(ctx, reindexShiftSQL, gameID, index); err != nil {
		return fmt.Errorf("failed to reindex questions: %w", err)
	}
	if _, err := q.Exec(ctx, reindexSettleSQL, gameID); err != nil {
		return fmt.Errorf("failed to reindex questions: %w", err)
	}
	return nil
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var question models.Question
	err := row.Scan(
		&question.ID,
		&question.GameID,
		&question.QuestionIndex,
		&question.Text,
		&question.OptionA,
		&question.OptionB,
		&question.OptionC,
		&question.OptionD,
		&question.CorrectAnswer,
		&question.CreatedAt,
		&question.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &question, nil
}
