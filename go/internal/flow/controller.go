package flow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/events"
	"github.com/lps-games/lastplayer/go/internal/game"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/redemption"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// GameRepository defines what the flow controller needs from the game store.
type GameRepository interface {
	GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
	ApplyTransition(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, phase models.GamePhase, questionIndex *int, startedAt time.Time, deadline *time.Time) error
	FetchNextDeadline(ctx context.Context, q sqlutil.DBTX) (*game.NextDeadline, error)
	FetchGamesDue(ctx context.Context, q sqlutil.DBTX, limit int32) ([]string, error)
}

// PlayerRepository defines what the controller needs from the player store.
type PlayerRepository interface {
	ListPlayers(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error)
	ListEliminatedAtRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) ([]models.Player, error)
	SweepTimeouts(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) (int64, error)
}

// QuestionRepository defines what the controller needs from the question store.
type QuestionRepository interface {
	GetQuestionByIndex(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) (*models.Question, error)
	CountQuestions(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (int, error)
}

// OutboxRepository queues realtime events alongside state changes.
type OutboxRepository interface {
	InsertEvent(ctx context.Context, q sqlutil.DBTX, gameCode, eventType string, payload []byte) error
}

// VotingEngine is the slice of the redemption engine the flow drives.
type VotingEngine interface {
	StartRoundInTx(ctx context.Context, q sqlutil.DBTX, g *models.Game) (*models.RedemptionRound, error)
	EndRoundInTx(ctx context.Context, q sqlutil.DBTX, g *models.Game) (*redemption.EndResult, error)
}

// Controller drives the round flow state machine:
// lobby -> question -> reveal -> elimination -> survivors -> redemption
// -> question(next). Host calls and fired timers share the same
// transition code path, serialized on the game row lock, so neither can
// double-run a transition. The redemption -> question step runs the
// timeout sweep and the vote tally exactly once.
type Controller struct {
	games     GameRepository
	players   PlayerRepository
	questions QuestionRepository
	outbox    OutboxRepository
	voting    VotingEngine
	tx        sqlutil.TxRunner
	clock     clockwork.Clock
	cfg       Config

	// wakeCh nudges the scheduler after a transition sets a deadline
	// that may be sooner than the one it is sleeping on.
	wakeCh chan struct{}
}

func NewController(games GameRepository, players PlayerRepository, questions QuestionRepository, outbox OutboxRepository, voting VotingEngine, tx sqlutil.TxRunner, clock clockwork.Clock, cfg Config) *Controller {
	return &Controller{
		games:     games,
		players:   players,
		questions: questions,
		outbox:    outbox,
		voting:    voting,
		tx:        tx,
		clock:     clock,
		cfg:       cfg,
		wakeCh:    make(chan struct{}, 1),
	}
}

// StartGame moves a lobby into the first question. Host only.
func (c *Controller) StartGame(ctx context.Context, code, hostName string) (*models.Game, error) {
	var g *models.Game
	err := c.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		var err error
		g, err = c.hostGameForUpdate(ctx, q, code, hostName)
		if err != nil {
			return err
		}
		if g.Phase != models.PhaseLobby {
			return gameerrors.InvalidState("game %s has already started", code)
		}

		players, err := c.players.ListPlayers(ctx, q, g.ID)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			return gameerrors.InvalidState("cannot start a game with no players")
		}
		count, err := c.questions.CountQuestions(ctx, q, g.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return gameerrors.InvalidState("cannot start a game with no questions")
		}

		now := c.clock.Now().UTC()
		index := 0
		if err := c.transition(ctx, q, g, models.PhaseQuestion, &index, now); err != nil {
			return err
		}

		payload, err := json.Marshal(events.GameStartedPayload{
			GameCode:      g.Code,
			QuestionIndex: index,
			StartedAt:     now,
			TimeLimitSec:  int(c.cfg.Question.Seconds()),
		})
		if err != nil {
			return err
		}
		return c.outbox.InsertEvent(ctx, q, g.Code, events.TypeGameStarted, payload)
	})
	if err != nil {
		return nil, err
	}

	c.wake()
	log.Info().Str("game_code", code).Msg("game started")
	return g, nil
}

// Reveal closes the current question and broadcasts the correct answer.
func (c *Controller) Reveal(ctx context.Context, code, hostName string) (*models.Game, error) {
	return c.advance(ctx, code, hostName, models.PhaseQuestion)
}

// Advance moves the game one step along reveal -> elimination ->
// survivors -> redemption.
func (c *Controller) Advance(ctx context.Context, code, hostName string) (*models.Game, error) {
	return c.advance(ctx, code, hostName, "")
}

// NextQuestion finishes the redemption phase and opens the next
// question, running the timeout sweep and the vote tally on the way.
func (c *Controller) NextQuestion(ctx context.Context, code, hostName string) (*models.Game, error) {
	return c.advance(ctx, code, hostName, models.PhaseRedemption)
}

// advance runs one host-driven transition. A non-empty fromPhase pins
// the expected current phase so route-specific endpoints stay strict.
func (c *Controller) advance(ctx context.Context, code, hostName string, fromPhase models.GamePhase) (*models.Game, error) {
	var g *models.Game
	err := c.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		var err error
		g, err = c.hostGameForUpdate(ctx, q, code, hostName)
		if err != nil {
			return err
		}
		if fromPhase != "" && g.Phase != fromPhase {
			return gameerrors.InvalidState("game %s is in the %s phase", code, g.Phase)
		}
		return c.advanceLocked(ctx, q, g)
	})
	if err != nil {
		return nil, err
	}

	c.wake()
	log.Info().
		Str("game_code", code).
		Str("phase", string(g.Phase)).
		Msg("game advanced")
	return g, nil
}

func (c *Controller) hostGameForUpdate(ctx context.Context, q sqlutil.DBTX, code, hostName string) (*models.Game, error) {
	g, err := c.games.GetGameByCodeForUpdate(ctx, q, code)
	if err != nil {
		return nil, err
	}
	if g.HostName != hostName {
		return nil, gameerrors.Forbidden("only the host can control the round flow")
	}
	return g, nil
}

// advanceLocked moves the game one step. The caller holds the game row
// lock; g is updated in place to the post-transition state.
func (c *Controller) advanceLocked(ctx context.Context, q sqlutil.DBTX, g *models.Game) error {
	switch g.Phase {
	case models.PhaseQuestion:
		return c.toReveal(ctx, q, g)
	case models.PhaseReveal:
		return c.transition(ctx, q, g, models.PhaseElimination, g.CurrentQuestionIndex, c.clock.Now().UTC())
	case models.PhaseElimination:
		return c.transition(ctx, q, g, models.PhaseSurvivors, g.CurrentQuestionIndex, c.clock.Now().UTC())
	case models.PhaseSurvivors:
		return c.toRedemption(ctx, q, g)
	case models.PhaseRedemption:
		return c.toNextQuestion(ctx, q, g)
	default:
		return gameerrors.InvalidState("game %s cannot advance from the %s phase", g.Code, g.Phase)
	}
}

// toReveal closes the question and broadcasts the correct answer. No
// elimination happens here; wrong and late answers were resolved on
// submission and silent players are swept at the next-question step.
func (c *Controller) toReveal(ctx context.Context, q sqlutil.DBTX, g *models.Game) error {
	if g.CurrentQuestionIndex == nil {
		return gameerrors.InvalidState("game %s has no current question", g.Code)
	}
	index := *g.CurrentQuestionIndex

	question, err := c.questions.GetQuestionByIndex(ctx, q, g.ID, index)
	if err != nil {
		return err
	}

	now := c.clock.Now().UTC()
	if err := c.transition(ctx, q, g, models.PhaseReveal, &index, now); err != nil {
		return err
	}

	payload, err := json.Marshal(events.AnswerRevealedPayload{
		GameCode:      g.Code,
		QuestionIndex: index,
		CorrectAnswer: string(question.CorrectAnswer),
		RevealedAt:    now,
	})
	if err != nil {
		return err
	}
	return c.outbox.InsertEvent(ctx, q, g.Code, events.TypeAnswerRevealed, payload)
}

// toRedemption opens the redemption phase when anyone was eliminated at
// the current question, otherwise skips straight to the next question.
// Auto-flow games open the voting round immediately; host-driven games
// wait for the host to start it.
func (c *Controller) toRedemption(ctx context.Context, q sqlutil.DBTX, g *models.Game) error {
	if g.CurrentQuestionIndex == nil {
		return gameerrors.InvalidState("game %s has no current question", g.Code)
	}

	candidates, err := c.players.ListEliminatedAtRound(ctx, q, g.ID, *g.CurrentQuestionIndex)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return c.toNextQuestion(ctx, q, g)
	}

	now := c.clock.Now().UTC()
	if err := c.transition(ctx, q, g, models.PhaseRedemption, g.CurrentQuestionIndex, now); err != nil {
		return err
	}
	if g.AutoFlow {
		if _, err := c.voting.StartRoundInTx(ctx, q, g); err != nil {
			return err
		}
	}
	return nil
}

// toNextQuestion leaves the redemption phase. The timeout sweep and the
// vote tally both run here, inside the same transaction as the index
// increment, so neither can run twice or be skipped.
func (c *Controller) toNextQuestion(ctx context.Context, q sqlutil.DBTX, g *models.Game) error {
	if g.CurrentQuestionIndex == nil {
		return gameerrors.InvalidState("game %s has no current question", g.Code)
	}
	index := *g.CurrentQuestionIndex

	swept, err := c.players.SweepTimeouts(ctx, q, g.ID, index)
	if err != nil {
		return err
	}
	if swept > 0 {
		log.Info().
			Str("game_code", g.Code).
			Int("question_index", index).
			Int64("swept", swept).
			Msg("timeout sweep eliminated players")
	}

	if _, err := c.voting.EndRoundInTx(ctx, q, g); err != nil {
		// No open round means there is nothing to tally: the host
		// already ended it, or redemption was skipped.
		if gameerrors.KindOf(err) != gameerrors.KindNotFound {
			return err
		}
	}

	count, err := c.questions.CountQuestions(ctx, q, g.ID)
	if err != nil {
		return err
	}
	next := index + 1
	if next >= count {
		// Out of questions: the sweep and tally above still commit,
		// the deadline is cleared and the host decides the ending.
		log.Warn().Str("game_code", g.Code).Msg("no questions remaining")
		g.NextDeadline = nil
		return c.games.ApplyTransition(ctx, q, g.ID, g.Phase, g.CurrentQuestionIndex, g.PhaseStartedAt, nil)
	}

	now := c.clock.Now().UTC()
	if err := c.transition(ctx, q, g, models.PhaseQuestion, &next, now); err != nil {
		return err
	}

	payload, err := json.Marshal(events.NextRoundPayload{
		GameCode:      g.Code,
		QuestionIndex: next,
		StartedAt:     now,
		TimeLimitSec:  int(c.cfg.Question.Seconds()),
	})
	if err != nil {
		return err
	}
	return c.outbox.InsertEvent(ctx, q, g.Code, events.TypeNextRound, payload)
}

// transition writes the phase change, updates g in place and emits
// PhaseChanged.
func (c *Controller) transition(ctx context.Context, q sqlutil.DBTX, g *models.Game, phase models.GamePhase, questionIndex *int, now time.Time) error {
	deadline := c.deadlineFor(g, phase, now)
	if err := c.games.ApplyTransition(ctx, q, g.ID, phase, questionIndex, now, deadline); err != nil {
		return err
	}
	g.Phase = phase
	g.CurrentQuestionIndex = questionIndex
	g.PhaseStartedAt = now
	g.NextDeadline = deadline

	payload, err := json.Marshal(events.PhaseChangedPayload{
		GameCode:      g.Code,
		Phase:         string(phase),
		QuestionIndex: questionIndex,
		ChangedAt:     now,
		Deadline:      deadline,
	})
	if err != nil {
		return err
	}
	return c.outbox.InsertEvent(ctx, q, g.Code, events.TypePhaseChanged, payload)
}

// deadlineFor computes the auto-flow deadline of the phase being
// entered, or nil for host-driven games and terminal phases.
func (c *Controller) deadlineFor(g *models.Game, phase models.GamePhase, now time.Time) *time.Time {
	if !g.AutoFlow {
		return nil
	}

	var d time.Duration
	switch phase {
	case models.PhaseQuestion:
		d = c.cfg.Question
	case models.PhaseReveal:
		d = c.cfg.Reveal
	case models.PhaseElimination:
		d = c.cfg.Elimination
	case models.PhaseSurvivors:
		d = c.cfg.Survivors
	case models.PhaseRedemption:
		d = c.cfg.Voting
	default:
		return nil
	}
	deadline := now.Add(d)
	return &deadline
}

// wake nudges the scheduler without blocking.
func (c *Controller) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}
