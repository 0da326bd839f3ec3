package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
)

// Repository persists games in Postgres. Every method takes the querier
// explicitly so the same repository serves plain reads (pool) and
// locked read-then-write sequences (tx).
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const gameColumns = `id, code, host_name, phase, current_question_index, initial_prize_pot,
current_prize_pot, prize_pot_increment, phase_started_at, next_deadline, auto_flow,
sound_trigger, created_at, updated_at`

const createGameSQL = `
INSERT INTO games (id, code, host_name, initial_prize_pot, current_prize_pot, prize_pot_increment, auto_flow)
VALUES ($1, $2, $3, $4, $4, $5, $6)
RETURNING ` + gameColumns

// CreateGame inserts a new lobby game. A concurrent insert of the same
// code trips the partial unique index and surfaces as Conflict.
func (r *Repository) CreateGame(ctx context.Context, q sqlutil.DBTX, code, hostName string, initialPot, potIncrement int64, autoFlow bool) (*models.Game, error) {
	row := q.QueryRow(ctx, createGameSQL, uuid.New(), code, hostName, initialPot, potIncrement, autoFlow)
	g, err := scanGame(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, gameerrors.Conflict("game code %s already in use", code)
		}
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return g, nil
}

const getGameByCodeSQL = `
SELECT ` + gameColumns + `
FROM games
WHERE code = $1 AND deleted_at IS NULL`

func (r *Repository) GetGameByCode(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error) {
	g, err := scanGame(q.QueryRow(ctx, getGameByCodeSQL, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("game %s not found", code)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return g, nil
}

const getGameByCodeForUpdateSQL = `
SELECT ` + gameColumns + `
FROM games
WHERE code = $1 AND deleted_at IS NULL
FOR UPDATE`

// GetGameByCodeForUpdate locks the game row for the rest of the
// transaction. The game row is the mutex for every phase transition, so
// a fired timer and a late host call serialize here.
func (r *Repository) GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error) {
	g, err := scanGame(q.QueryRow(ctx, getGameByCodeForUpdateSQL, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("game %s not found", code)
		}
		return nil, fmt.Errorf("failed to lock game: %w", err)
	}
	return g, nil
}

const codeExistsSQL = `
SELECT EXISTS (SELECT 1 FROM games WHERE code = $1 AND deleted_at IS NULL)`

func (r *Repository) CodeExists(ctx context.Context, q sqlutil.DBTX, code string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, codeExistsSQL, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check game code: %w", err)
	}
	return exists, nil
}

const applyTransitionSQL = `
UPDATE games
SET phase = $2, current_question_index = $3, phase_started_at = $4, next_deadline = $5, updated_at = now()
WHERE id = $1`

// ApplyTransition writes a phase change. The phase-start timestamp is
// the authoritative question start time; a nil deadline disables the
// auto-flow timer for the new phase.
func (r *Repository) ApplyTransition(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, phase models.GamePhase, questionIndex *int, startedAt time.Time, deadline *time.Time) error {
	if _, err := q.Exec(ctx, applyTransitionSQL, id, phase, questionIndex, startedAt, deadline); err != nil {
		return fmt.Errorf("failed to apply phase transition: %w", err)
	}
	return nil
}

const setPrizePotSQL = `
UPDATE games SET current_prize_pot = $2, updated_at = now() WHERE id = $1`

func (r *Repository) SetCurrentPrizePot(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, pot int64) error {
	if _, err := q.Exec(ctx, setPrizePotSQL, id, pot); err != nil {
		return fmt.Errorf("failed to set prize pot: %w", err)
	}
	return nil
}

const setSoundTriggerSQL = `
UPDATE games SET sound_trigger = $2, updated_at = now() WHERE id = $1`

// SetSoundTrigger stores or clears (nil) the ephemeral media cue.
func (r *Repository) SetSoundTrigger(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, sound *string) error {
	if _, err := q.Exec(ctx, setSoundTriggerSQL, id, sound); err != nil {
		return fmt.Errorf("failed to set sound trigger: %w", err)
	}
	return nil
}

const softDeleteGameSQL = `
UPDATE games SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

// SoftDeleteGame retires a game, freeing its code for reuse.
func (r *Repository) SoftDeleteGame(ctx context.Context, q sqlutil.DBTX, id uuid.UUID) error {
	if _, err := q.Exec(ctx, softDeleteGameSQL, id); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return nil
}

const fetchNextDeadlineSQL = `
SELECT code, next_deadline
FROM games
WHERE next_deadline IS NOT NULL AND deleted_at IS NULL
ORDER BY next_deadline
LIMIT 1`

// FetchNextDeadline returns the soonest pending auto-flow deadline
// across all games, or nil if no game is waiting on a timer.
func (r *Repository) FetchNextDeadline(ctx context.Context, q sqlutil.DBTX) (*NextDeadline, error) {
	var nd NextDeadline
	err := q.QueryRow(ctx, fetchNextDeadlineSQL).Scan(&nd.Code, &nd.Deadline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	return &nd, nil
}

const fetchGamesDueSQL = `
SELECT code
FROM games
WHERE next_deadline IS NOT NULL AND next_deadline <= now() AND deleted_at IS NULL
ORDER BY next_deadline
LIMIT $1`

// FetchGamesDue returns codes of games whose auto-flow deadline has passed.
func (r *Repository) FetchGamesDue(ctx context.Context, q sqlutil.DBTX, limit int32) ([]string, error) {
	rows, err := q.Query(ctx, fetchGamesDueSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due games: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan due game: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.ID,
		&g.Code,
		&g.HostName,
		&g.Phase,
		&g.CurrentQuestionIndex,
		&g.InitialPrizePot,
		&g.CurrentPrizePot,
		&g.PrizePotIncrement,
		&g.PhaseStartedAt,
		&g.NextDeadline,
		&g.AutoFlow,
		&g.SoundTrigger,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
