package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
)

// Repository persists players in Postgres. Every method takes the
// querier explicitly so the same repository serves plain reads (pool)
// and locked read-then-write sequences (tx).
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const playerColumns = `id, game_id, username, status, eliminated_round, last_answered_round, balance, created_at, updated_at`

const createPlayerSQL = `
INSERT INTO players (id, game_id, username)
VALUES ($1, $2, $3)
RETURNING ` + playerColumns

// CreatePlayer inserts a new active player. The unique index on
// (game_id, lower(username)) turns duplicate usernames into Conflict.
func (r *Repository) CreatePlayer(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error) {
	row := q.QueryRow(ctx, createPlayerSQL, uuid.New(), gameID, username)
	p, err := scanPlayer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, gameerrors.Conflict("username %q is already taken in this game", username)
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return p, nil
}

const getPlayerSQL = `
SELECT ` + playerColumns + ` FROM players WHERE id = $1`

func (r *Repository) GetPlayer(ctx context.Context, q sqlutil.DBTX, id uuid.UUID) (*models.Player, error) {
	p, err := scanPlayer(q.QueryRow(ctx, getPlayerSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("player not found")
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

const getPlayerByUsernameSQL = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1 AND lower(username) = lower($2)`

// GetPlayerByUsername looks a player up case-insensitively within a game.
func (r *Repository) GetPlayerByUsername(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error) {
	p, err := scanPlayer(q.QueryRow(ctx, getPlayerByUsernameSQL, gameID, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("player %q not found in this game", username)
		}
		return nil, fmt.Errorf("failed to get player by username: %w", err)
	}
	return p, nil
}

const getPlayerForUpdateSQL = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1 AND lower(username) = lower($2)
FOR UPDATE`

// GetPlayerForUpdate locks the player row for the rest of the transaction.
func (r *Repository) GetPlayerForUpdate(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error) {
	p, err := scanPlayer(q.QueryRow(ctx, getPlayerForUpdateSQL, gameID, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("player %q not found in this game", username)
		}
		return nil, fmt.Errorf("failed to lock player: %w", err)
	}
	return p, nil
}

const listPlayersSQL = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1
ORDER BY created_at`

func (r *Repository) ListPlayers(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error) {
	rows, err := q.Query(ctx, listPlayersSQL, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return collectPlayers(rows)
}

const listInPlaySQL = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1 AND status = 'ACTIVE'
ORDER BY created_at`

// ListInPlay returns the players still competing.
func (r *Repository) ListInPlay(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error) {
	rows, err := q.Query(ctx, listInPlaySQL, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-play players: %w", err)
	}
	return collectPlayers(rows)
}

const listEliminatedAtRoundSQL = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1 AND status = 'ELIMINATED' AND eliminated_round = $2
ORDER BY created_at`

// ListEliminatedAtRound returns the players knocked out at the given
// question index (the redemption candidate set).
func (r *Repository) ListEliminatedAtRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) ([]models.Player, error) {
	rows, err := q.Query(ctx, listEliminatedAtRoundSQL, gameID, questionIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list eliminated players: %w", err)
	}
	return collectPlayers(rows)
}

const eliminatePlayerSQL = `
UPDATE players
SET status = 'ELIMINATED', eliminated_round = $2, updated_at = now()
WHERE id = $1 AND status = 'ACTIVE'`

// Eliminate marks a player eliminated at the given question index. The
// guard on status makes concurrent duplicate submissions a no-op; the
// return value reports whether this call performed the transition.
func (r *Repository) Eliminate(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, questionIndex int) (bool, error) {
	tag, err := q.Exec(ctx, eliminatePlayerSQL, id, questionIndex)
	if err != nil {
		return false, fmt.Errorf("failed to eliminate player: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const sweepTimeoutsSQL = `
UPDATE players
SET status = 'ELIMINATED', eliminated_round = $2, updated_at = now()
WHERE game_id = $1
  AND status = 'ACTIVE'
  AND (last_answered_round IS NULL OR last_answered_round <> $2)`

// SweepTimeouts bulk-eliminates every still-active player who did not
// answer the current question. Returns the number of players swept.
func (r *Repository) SweepTimeouts(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) (int64, error) {
	tag, err := q.Exec(ctx, sweepTimeoutsSQL, gameID, questionIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep timeouts: %w", err)
	}
	return tag.RowsAffected(), nil
}

const redeemPlayerSQL = `
UPDATE players
SET status = 'ACTIVE', eliminated_round = NULL, updated_at = now()
WHERE id = $1 AND status = 'ELIMINATED'`

// Redeem restores an eliminated player to active play, clearing the
// eliminated round so the status/eliminated_round invariant holds.
func (r *Repository) Redeem(ctx context.Context, q sqlutil.DBTX, id uuid.UUID) (bool, error) {
	tag, err := q.Exec(ctx, redeemPlayerSQL, id)
	if err != nil {
		return false, fmt.Errorf("failed to redeem player: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const recordAnswerSQL = `
UPDATE players
SET last_answered_round = $2, updated_at = now()
WHERE id = $1 AND status = 'ACTIVE'`

// RecordAnswer marks that the player answered the given question in time.
func (r *Repository) RecordAnswer(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, questionIndex int) error {
	if _, err := q.Exec(ctx, recordAnswerSQL, id, questionIndex); err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}

const addToBalanceSQL = `
UPDATE players
SET balance = balance + $2, updated_at = now()
WHERE id = $1`

// AddToBalance credits the player's prize share.
func (r *Repository) AddToBalance(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, amount int64) error {
	if _, err := q.Exec(ctx, addToBalanceSQL, id, amount); err != nil {
		return fmt.Errorf("failed to add to balance: %w", err)
	}
	return nil
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID,
		&p.GameID,
		&p.Username,
		&p.Status,
		&p.EliminatedRound,
		&p.LastAnsweredRound,
		&p.Balance,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPlayers(rows pgx.Rows) ([]models.Player, error) {
	defer rows.Close()
	var players []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}
