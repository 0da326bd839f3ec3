package redemption

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

// Repository persists redemption rounds and votes in Postgres.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const roundColumns = `id, game_id, question_index, status, ends_at, redeemed_player_id, created_at, updated_at`

const createRoundSQL = `
INSERT INTO redemption_rounds (id, game_id, question_index, ends_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + roundColumns

// CreateRound opens a voting round. The partial unique index on active
// rounds per (game, question index) turns a duplicate start into Conflict.
func (r *Repository) CreateRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int, endsAt time.Time) (*models.RedemptionRound, error) {
	row := q.QueryRow(ctx, createRoundSQL, uuid.New(), gameID, questionIndex, endsAt)
	round, err := scanRound(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, gameerrors.Conflict("a redemption round is already active for this question")
		}
		return nil, fmt.Errorf("failed to create redemption round: %w", err)
	}
	return round, nil
}

const getActiveRoundSQL = `
SELECT ` + roundColumns + `
FROM redemption_rounds
WHERE game_id = $1 AND status = 'ACTIVE'`

func (r *Repository) GetActiveRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (*models.RedemptionRound, error) {
	round, err := scanRound(q.QueryRow(ctx, getActiveRoundSQL, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("no active redemption round")
		}
		return nil, fmt.Errorf("failed to get active redemption round: %w", err)
	}
	return round, nil
}

const getActiveRoundForUpdateSQL = getActiveRoundSQL + `
FOR UPDATE`

// GetActiveRoundForUpdate locks the active round for the transaction.
func (r *Repository) GetActiveRoundForUpdate(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (*models.RedemptionRound, error) {
	round, err := scanRound(q.QueryRow(ctx, getActiveRoundForUpdateSQL, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameerrors.NotFound("no active redemption round")
		}
		return nil, fmt.Errorf("failed to lock active redemption round: %w", err)
	}
	return round, nil
}

const completedRoundExistsSQL = `
SELECT EXISTS (
	SELECT 1 FROM redemption_rounds
	WHERE game_id = $1 AND question_index = $2 AND status = 'COMPLETED')`

// CompletedRoundExists reports whether this question's round was
// already tallied, so a second end reads as Conflict, not NotFound.
func (r *Repository) CompletedRoundExists(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, completedRoundExistsSQL, gameID, questionIndex).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check completed redemption round: %w", err)
	}
	return exists, nil
}

const completeRoundSQL = `
UPDATE redemption_rounds
SET status = 'COMPLETED', redeemed_player_id = $2, updated_at = now()
WHERE id = $1 AND status = 'ACTIVE'`

// CompleteRound closes a round, recording the redeemed player if any.
// The status guard makes a concurrent double-end report false so the
// tally runs exactly once.
func (r *Repository) CompleteRound(ctx context.Context, q sqlutil.DBTX, roundID uuid.UUID, redeemedPlayerID *uuid.UUID) (bool, error) {
	tag, err := q.Exec(ctx, completeRoundSQL, roundID, redeemedPlayerID)
	if err != nil {
		return false, fmt.Errorf("failed to complete redemption round: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const createVoteSQL = `
INSERT INTO votes (id, round_id, voter_player_id, voted_for_player_id)
VALUES ($1, $2, $3, $4)`

// CreateVote records one ballot. The unique index on (round, voter)
// turns a second vote from the same player into Conflict.
func (r *Repository) CreateVote(ctx context.Context, q sqlutil.DBTX, roundID, voterID, votedForID uuid.UUID) error {
	if _, err := q.Exec(ctx, createVoteSQL, uuid.New(), roundID, voterID, votedForID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return gameerrors.Conflict("player has already voted in this round")
		}
		return fmt.Errorf("failed to create vote: %w", err)
	}
	return nil
}

const tallyVotesSQL = `
SELECT voted_for_player_id, count(*)
FROM votes
WHERE round_id = $1
GROUP BY voted_for_player_id
ORDER BY count(*) DESC, voted_for_player_id`

// TallyVotes returns the vote counts ordered by votes descending with
// ties broken by lowest candidate UUID, so the first entry is the
// deterministic winner.
func (r *Repository) TallyVotes(ctx context.Context, q sqlutil.DBTX, roundID uuid.UUID) ([]TallyEntry, error) {
	rows, err := q.Query(ctx, tallyVotesSQL, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	defer rows.Close()

	var tally []TallyEntry
	for rows.Next() {
		var entry TallyEntry
		if err := rows.Scan(&entry.PlayerID, &entry.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan vote tally: %w", err)
		}
		tally = append(tally, entry)
	}
	return tally, rows.Err()
}

func scanRound(row pgx.Row) (*models.RedemptionRound, error) {
	var round models.RedemptionRound
	err := row.Scan(
		&round.ID,
		&round.GameID,
		&round.QuestionIndex,
		&round.Status,
		&round.EndsAt,
		&round.RedeemedPlayerID,
		&round.CreatedAt,
		&round.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &round, nil
}
