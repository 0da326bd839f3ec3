package redemption

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/events"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// GameRepository defines what the voting engine needs from the game store.
type GameRepository interface {
	GetGameByCode(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
	GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
	SetCurrentPrizePot(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, pot int64) error
}

// PlayerRepository defines what the voting engine needs from the player store.
type PlayerRepository interface {
	GetPlayer(ctx context.Context, q sqlutil.DBTX, id uuid.UUID) (*models.Player, error)
	GetPlayerByUsername(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error)
	ListEliminatedAtRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) ([]models.Player, error)
	Redeem(ctx context.Context, q sqlutil.DBTX, id uuid.UUID) (bool, error)
}

// RoundRepository defines what the engine needs from the round store.
type RoundRepository interface {
	CreateRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int, endsAt time.Time) (*models.RedemptionRound, error)
	GetActiveRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (*models.RedemptionRound, error)
	GetActiveRoundForUpdate(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (*models.RedemptionRound, error)
	CompletedRoundExists(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) (bool, error)
	CompleteRound(ctx context.Context, q sqlutil.DBTX, roundID uuid.UUID, redeemedPlayerID *uuid.UUID) (bool, error)
	CreateVote(ctx context.Context, q sqlutil.DBTX, roundID, voterID, votedForID uuid.UUID) error
	TallyVotes(ctx context.Context, q sqlutil.DBTX, roundID uuid.UUID) ([]TallyEntry, error)
}

// OutboxRepository queues realtime events alongside state changes.
type OutboxRepository interface {
	InsertEvent(ctx context.Context, q sqlutil.DBTX, gameCode, eventType string, payload []byte) error
}

// App runs redemption voting: surviving players vote one player
// eliminated at the current question back into the game.
type App struct {
	games      GameRepository
	players    PlayerRepository
	rounds     RoundRepository
	outbox     OutboxRepository
	db         sqlutil.DBTX
	tx         sqlutil.TxRunner
	clock      clockwork.Clock
	votingTime time.Duration
}

func NewApp(games GameRepository, players PlayerRepository, rounds RoundRepository, outbox OutboxRepository, db sqlutil.DBTX, tx sqlutil.TxRunner, clock clockwork.Clock, votingTime time.Duration) *App {
	return &App{
		games:      games,
		players:    players,
		rounds:     rounds,
		outbox:     outbox,
		db:         db,
		tx:         tx,
		clock:      clock,
		votingTime: votingTime,
	}
}

// StartRound opens voting during the redemption phase. Host only.
func (a *App) StartRound(ctx context.Context, code, hostName string) (*models.RedemptionRound, error) {
	var round *models.RedemptionRound
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.HostName != hostName {
			return gameerrors.Forbidden("only the host can start voting")
		}
		if g.Phase != models.PhaseRedemption {
			return gameerrors.InvalidState("voting can only start during the redemption phase")
		}

		round, err = a.StartRoundInTx(ctx, q, g)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_code", code).
		Int("question_index", round.QuestionIndex).
		Msg("redemption voting started")
	return round, nil
}

// StartRoundInTx opens a voting round inside the caller's transaction.
// The caller must hold the game row lock.
func (a *App) StartRoundInTx(ctx context.Context, q sqlutil.DBTX, g *models.Game) (*models.RedemptionRound, error) {
	if g.CurrentQuestionIndex == nil {
		return nil, gameerrors.InvalidState("game has no current question")
	}
	index := *g.CurrentQuestionIndex

	candidates, err := a.players.ListEliminatedAtRound(ctx, q, g.ID, index)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, gameerrors.InvalidState("no players eligible for redemption")
	}

	endsAt := a.clock.Now().UTC().Add(a.votingTime)
	round, err := a.rounds.CreateRound(ctx, q, g.ID, index, endsAt)
	if err != nil {
		return nil, err
	}

	candidateIDs := make([]string, len(candidates))
	for i, c := range candidates {
		candidateIDs[i] = c.ID.String()
	}
	payload, err := json.Marshal(events.VotingStartedPayload{
		GameCode:      g.Code,
		RoundID:       round.ID.String(),
		QuestionIndex: index,
		CandidateIDs:  candidateIDs,
		EndsAt:        endsAt,
	})
	if err != nil {
		return nil, err
	}
	if err := a.outbox.InsertEvent(ctx, q, g.Code, events.TypeVotingStarted, payload); err != nil {
		return nil, err
	}
	return round, nil
}

// CastVote records a surviving player's ballot for an eliminated
// candidate. One vote per voter per round; a duplicate is a Conflict.
func (a *App) CastVote(ctx context.Context, code, voterUsername, candidateUsername string) error {
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.Phase != models.PhaseRedemption {
			return gameerrors.InvalidState("voting is only open during the redemption phase")
		}

		round, err := a.rounds.GetActiveRound(ctx, q, g.ID)
		if err != nil {
			return err
		}
		if !a.clock.Now().Before(round.EndsAt) {
			return gameerrors.InvalidState("voting has closed")
		}

		voter, err := a.players.GetPlayerByUsername(ctx, q, g.ID, voterUsername)
		if err != nil {
			return err
		}
		if !voter.InPlay() {
			return gameerrors.Forbidden("eliminated players cannot vote")
		}

		candidate, err := a.players.GetPlayerByUsername(ctx, q, g.ID, candidateUsername)
		if err != nil {
			return err
		}
		if candidate.Status != models.PlayerStatusEliminated ||
			candidate.EliminatedRound == nil || *candidate.EliminatedRound != round.QuestionIndex {
			return gameerrors.Validation("player %q is not eligible for redemption", candidateUsername)
		}

		return a.rounds.CreateVote(ctx, q, round.ID, voter.ID, candidate.ID)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("game_code", code).
		Str("voter", voterUsername).
		Str("candidate", candidateUsername).
		Msg("vote cast")
	return nil
}

// EndRound closes voting and applies the result. Host only.
func (a *App) EndRound(ctx context.Context, code, hostName string) (*EndResult, error) {
	var result *EndResult
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.HostName != hostName {
			return gameerrors.Forbidden("only the host can end voting")
		}

		result, err = a.EndRoundInTx(ctx, q, g)
		if gameerrors.KindOf(err) == gameerrors.KindNotFound && g.CurrentQuestionIndex != nil {
			// No active round can mean it was already tallied; the host
			// asking again deserves Conflict, not NotFound.
			ended, existsErr := a.rounds.CompletedRoundExists(ctx, q, g.ID, *g.CurrentQuestionIndex)
			if existsErr != nil {
				return existsErr
			}
			if ended {
				return gameerrors.Conflict("redemption round has already ended")
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	redeemed := "none"
	if result.Redeemed != nil {
		redeemed = result.Redeemed.Username
	}
	log.Info().
		Str("game_code", code).
		Str("redeemed", redeemed).
		Msg("redemption voting ended")
	return result, nil
}

// EndRoundInTx tallies and closes the active round inside the caller's
// transaction. The caller must hold the game row lock. The winner is
// the candidate with the most votes, ties broken by lowest player ID;
// with no votes at all, nobody is redeemed. Closing an already-closed
// round is a Conflict, so the tally applies exactly once.
func (a *App) EndRoundInTx(ctx context.Context, q sqlutil.DBTX, g *models.Game) (*EndResult, error) {
	round, err := a.rounds.GetActiveRoundForUpdate(ctx, q, g.ID)
	if err != nil {
		return nil, err
	}

	tally, err := a.rounds.TallyVotes(ctx, q, round.ID)
	if err != nil {
		return nil, err
	}

	var winnerID *uuid.UUID
	if len(tally) > 0 && tally[0].Votes > 0 {
		winnerID = &tally[0].PlayerID
	}

	done, err := a.rounds.CompleteRound(ctx, q, round.ID, winnerID)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, gameerrors.Conflict("redemption round has already ended")
	}
	round.Status = models.RoundStatusCompleted
	round.RedeemedPlayerID = winnerID

	result := &EndResult{Round: round, Tally: tally}

	if winnerID != nil {
		redeemed, err := a.redeemWinner(ctx, q, g, *winnerID)
		if err != nil {
			return nil, err
		}
		result.Redeemed = redeemed
	}

	tallyMap := make(map[string]int, len(tally))
	for _, entry := range tally {
		tallyMap[entry.PlayerID.String()] = entry.Votes
	}
	var redeemedID *string
	if result.Redeemed != nil {
		id := result.Redeemed.ID.String()
		redeemedID = &id
	}
	payload, err := json.Marshal(events.VotingEndedPayload{
		GameCode:         g.Code,
		RoundID:          round.ID.String(),
		QuestionIndex:    round.QuestionIndex,
		Tally:            tallyMap,
		RedeemedPlayerID: redeemedID,
		EndedAt:          a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := a.outbox.InsertEvent(ctx, q, g.Code, events.TypeVotingEnded, payload); err != nil {
		return nil, err
	}
	return result, nil
}

// redeemWinner puts the voted player back in play and grows the pot by
// the per-redemption increment.
func (a *App) redeemWinner(ctx context.Context, q sqlutil.DBTX, g *models.Game, winnerID uuid.UUID) (*models.Player, error) {
	did, err := a.players.Redeem(ctx, q, winnerID)
	if err != nil {
		return nil, err
	}
	if !did {
		// The voted player is somehow no longer eliminated; the round
		// still closes, just without a redemption.
		log.Warn().
			Str("game_code", g.Code).
			Str("player_id", winnerID.String()).
			Msg("vote winner was not eliminated, skipping redemption")
		return nil, nil
	}

	g.CurrentPrizePot += g.PrizePotIncrement
	if err := a.games.SetCurrentPrizePot(ctx, q, g.ID, g.CurrentPrizePot); err != nil {
		return nil, err
	}

	redeemed, err := a.players.GetPlayer(ctx, q, winnerID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(events.PlayerRedeemedPayload{
		GameCode:        g.Code,
		PlayerID:        redeemed.ID.String(),
		Username:        redeemed.Username,
		CurrentPrizePot: g.CurrentPrizePot,
	})
	if err != nil {
		return nil, err
	}
	if err := a.outbox.InsertEvent(ctx, q, g.Code, events.TypePlayerRedeemed, payload); err != nil {
		return nil, err
	}
	return redeemed, nil
}

// GetRoundState returns the active round with candidates and live tally.
func (a *App) GetRoundState(ctx context.Context, code string) (*RoundState, error) {
	g, err := a.games.GetGameByCode(ctx, a.db, code)
	if err != nil {
		return nil, err
	}
	round, err := a.rounds.GetActiveRound(ctx, a.db, g.ID)
	if err != nil {
		return nil, err
	}
	candidates, err := a.players.ListEliminatedAtRound(ctx, a.db, g.ID, round.QuestionIndex)
	if err != nil {
		return nil, err
	}
	tally, err := a.rounds.TallyVotes(ctx, a.db, round.ID)
	if err != nil {
		return nil, err
	}
	return &RoundState{Round: round, Candidates: candidates, Tally: tally}, nil
}
