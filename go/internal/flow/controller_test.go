package flow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/game"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/redemption"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
)

type fakeTxRunner struct{}

func (fakeTxRunner) InTx(ctx context.Context, fn func(q sqlutil.DBTX) error) error {
	return fn(nil)
}

type fakeGames struct {
	game *models.Game
}

func (f *fakeGames) GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error) {
	if f.game == nil || f.game.Code != code {
		return nil, gameerrors.NotFound("game %s not found", code)
	}
	return f.game, nil
}

func (f *fakeGames) ApplyTransition(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, phase models.GamePhase, questionIndex *int, startedAt time.Time, deadline *time.Time) error {
	return nil
}

func (f *fakeGames) FetchNextDeadline(ctx context.Context, q sqlutil.DBTX) (*game.NextDeadline, error) {
	if f.game == nil || f.game.NextDeadline == nil {
		return nil, nil
	}
	return &game.NextDeadline{Code: f.game.Code, Deadline: *f.game.NextDeadline}, nil
}

func (f *fakeGames) FetchGamesDue(ctx context.Context, q sqlutil.DBTX, limit int32) ([]string, error) {
	if f.game == nil || f.game.NextDeadline == nil {
		return nil, nil
	}
	return []string{f.game.Code}, nil
}

type fakePlayers struct {
	players    []models.Player
	candidates []models.Player
	sweeps     []int
}

func (f *fakePlayers) ListPlayers(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error) {
	return f.players, nil
}

func (f *fakePlayers) ListEliminatedAtRound(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) ([]models.Player, error) {
	return f.candidates, nil
}

func (f *fakePlayers) SweepTimeouts(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, questionIndex int) (int64, error) {
	f.sweeps = append(f.sweeps, questionIndex)
	return 0, nil
}

type fakeQuestions struct {
	count int
}

func (f *fakeQuestions) GetQuestionByIndex(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) (*models.Question, error) {
	if index >= f.count {
		return nil, gameerrors.NotFound("question %d not found", index)
	}
	return &models.Question{ID: uuid.New(), QuestionIndex: index, CorrectAnswer: models.AnswerA}, nil
}

func (f *fakeQuestions) CountQuestions(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) (int, error) {
	return f.count, nil
}

type fakeOutbox struct {
	eventTypes []string
}

func (f *fakeOutbox) InsertEvent(ctx context.Context, q sqlutil.DBTX, gameCode, eventType string, payload []byte) error {
	f.eventTypes = append(f.eventTypes, eventType)
	return nil
}

type fakeVoting struct {
	started int
	ended   int
	active  bool
}

func (f *fakeVoting) StartRoundInTx(ctx context.Context, q sqlutil.DBTX, g *models.Game) (*models.RedemptionRound, error) {
	f.started++
	f.active = true
	return &models.RedemptionRound{ID: uuid.New(), Status: models.RoundStatusActive}, nil
}

func (f *fakeVoting) EndRoundInTx(ctx context.Context, q sqlutil.DBTX, g *models.Game) (*redemption.EndResult, error) {
	if !f.active {
		return nil, gameerrors.NotFound("no active redemption round")
	}
	f.ended++
	f.active = false
	return &redemption.EndResult{}, nil
}

type controllerFixture struct {
	ctrl      *Controller
	games     *fakeGames
	players   *fakePlayers
	questions *fakeQuestions
	outbox    *fakeOutbox
	voting    *fakeVoting
	clock     *clockwork.FakeClock
}

func newControllerFixture(g *models.Game, questionCount int) *controllerFixture {
	f := &controllerFixture{
		games:     &fakeGames{game: g},
		players:   &fakePlayers{players: []models.Player{{ID: uuid.New(), Username: "alice"}}},
		questions: &fakeQuestions{count: questionCount},
		outbox:    &fakeOutbox{},
		voting:    &fakeVoting{},
		clock:     clockwork.NewFakeClock(),
	}
	f.ctrl = NewController(f.games, f.players, f.questions, f.outbox, f.voting, fakeTxRunner{}, f.clock, DefaultConfig())
	return f
}

func testGame(phase models.GamePhase, autoFlow bool) *models.Game {
	index := 0
	g := &models.Game{
		ID:       uuid.New(),
		Code:     "ABC123",
		HostName: "host",
		Phase:    phase,
		AutoFlow: autoFlow,
	}
	if phase != models.PhaseLobby {
		g.CurrentQuestionIndex = &index
	}
	return g
}

func TestStartGame(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseLobby, true), 3)

	g, err := f.ctrl.StartGame(context.Background(), "ABC123", "host")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if g.Phase != models.PhaseQuestion {
		t.Fatalf("expected QUESTION phase, got %s", g.Phase)
	}
	if g.CurrentQuestionIndex == nil || *g.CurrentQuestionIndex != 0 {
		t.Fatalf("expected question index 0, got %v", g.CurrentQuestionIndex)
	}
	if g.NextDeadline == nil {
		t.Fatal("auto-flow game must get a question deadline")
	}
	if want := f.clock.Now().UTC().Add(30 * time.Second); !g.NextDeadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, g.NextDeadline)
	}
}

func TestStartGameHostDrivenHasNoDeadline(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseLobby, false), 3)

	g, err := f.ctrl.StartGame(context.Background(), "ABC123", "host")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if g.NextDeadline != nil {
		t.Fatalf("host-driven game must not get a deadline, got %v", g.NextDeadline)
	}
}

func TestStartGameValidations(t *testing.T) {
	t.Run("non-host", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseLobby, false), 3)
		_, err := f.ctrl.StartGame(context.Background(), "ABC123", "intruder")
		if gameerrors.KindOf(err) != gameerrors.KindForbidden {
			t.Fatalf("expected Forbidden, got %v", err)
		}
	})
	t.Run("already started", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseQuestion, false), 3)
		_, err := f.ctrl.StartGame(context.Background(), "ABC123", "host")
		if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
			t.Fatalf("expected InvalidState, got %v", err)
		}
	})
	t.Run("no players", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseLobby, false), 3)
		f.players.players = nil
		_, err := f.ctrl.StartGame(context.Background(), "ABC123", "host")
		if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
			t.Fatalf("expected InvalidState, got %v", err)
		}
	})
	t.Run("no questions", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseLobby, false), 0)
		_, err := f.ctrl.StartGame(context.Background(), "ABC123", "host")
		if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
			t.Fatalf("expected InvalidState, got %v", err)
		}
	})
}

func TestRevealOnlyFromQuestionPhase(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseElimination, false), 3)
	_, err := f.ctrl.Reveal(context.Background(), "ABC123", "host")
	if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestAdvanceWalksThePhases(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseQuestion, false), 3)
	f.players.candidates = []models.Player{{ID: uuid.New(), Username: "bob"}}

	steps := []models.GamePhase{
		models.PhaseReveal,
		models.PhaseElimination,
		models.PhaseSurvivors,
		models.PhaseRedemption,
	}
	for _, want := range steps {
		g, err := f.ctrl.Advance(context.Background(), "ABC123", "host")
		if err != nil {
			t.Fatalf("Advance to %s: %v", want, err)
		}
		if g.Phase != want {
			t.Fatalf("expected phase %s, got %s", want, g.Phase)
		}
	}
	if f.voting.started != 0 {
		t.Fatal("host-driven game must not auto-start voting")
	}
}

func TestAutoFlowEnteringRedemptionStartsVoting(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseSurvivors, true), 3)
	f.players.candidates = []models.Player{{ID: uuid.New(), Username: "bob"}}

	g, err := f.ctrl.Advance(context.Background(), "ABC123", "host")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if g.Phase != models.PhaseRedemption {
		t.Fatalf("expected REDEMPTION, got %s", g.Phase)
	}
	if f.voting.started != 1 {
		t.Fatalf("expected voting round started once, got %d", f.voting.started)
	}
}

func TestSurvivorsSkipsRedemptionWithoutCandidates(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseSurvivors, false), 3)

	g, err := f.ctrl.Advance(context.Background(), "ABC123", "host")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if g.Phase != models.PhaseQuestion {
		t.Fatalf("expected skip to QUESTION, got %s", g.Phase)
	}
	if g.CurrentQuestionIndex == nil || *g.CurrentQuestionIndex != 1 {
		t.Fatalf("expected question index 1, got %v", g.CurrentQuestionIndex)
	}
	if len(f.players.sweeps) != 1 || f.players.sweeps[0] != 0 {
		t.Fatalf("expected one sweep of question 0, got %v", f.players.sweeps)
	}
}

func TestNextQuestionSweepsAndTalliesOnce(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseRedemption, false), 3)
	f.voting.active = true

	g, err := f.ctrl.NextQuestion(context.Background(), "ABC123", "host")
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if g.Phase != models.PhaseQuestion || *g.CurrentQuestionIndex != 1 {
		t.Fatalf("expected QUESTION index 1, got %s %v", g.Phase, g.CurrentQuestionIndex)
	}
	if len(f.players.sweeps) != 1 {
		t.Fatalf("expected exactly one sweep, got %v", f.players.sweeps)
	}
	if f.voting.ended != 1 {
		t.Fatalf("expected exactly one tally, got %d", f.voting.ended)
	}
}

func TestNextQuestionToleratesNoOpenRound(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseRedemption, false), 3)

	if _, err := f.ctrl.NextQuestion(context.Background(), "ABC123", "host"); err != nil {
		t.Fatalf("NextQuestion without an open round: %v", err)
	}
}

func TestNextQuestionOutOfQuestionsClearsDeadline(t *testing.T) {
	f := newControllerFixture(testGame(models.PhaseRedemption, true), 1)
	deadline := f.clock.Now()
	f.games.game.NextDeadline = &deadline

	g, err := f.ctrl.NextQuestion(context.Background(), "ABC123", "host")
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if g.Phase != models.PhaseRedemption {
		t.Fatalf("expected phase to stay REDEMPTION, got %s", g.Phase)
	}
	if g.NextDeadline != nil {
		t.Fatal("expected deadline cleared when out of questions")
	}
	if len(f.players.sweeps) != 1 {
		t.Fatalf("sweep must still run when out of questions, got %v", f.players.sweeps)
	}
}

func TestAdvanceFromTerminalPhases(t *testing.T) {
	for _, phase := range []models.GamePhase{models.PhaseLobby, models.PhaseFinished} {
		f := newControllerFixture(testGame(phase, false), 3)
		_, err := f.ctrl.Advance(context.Background(), "ABC123", "host")
		if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
			t.Fatalf("phase %s: expected InvalidState, got %v", phase, err)
		}
	}
}

func TestSchedulerHandleDueRevalidatesUnderLock(t *testing.T) {
	t.Run("future deadline is a no-op", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseQuestion, true), 3)
		deadline := f.clock.Now().Add(10 * time.Second)
		f.games.game.NextDeadline = &deadline
		s := NewScheduler(f.ctrl, nil, DefaultSchedulerConfig())

		if err := s.handleDue(context.Background(), "ABC123"); err != nil {
			t.Fatalf("handleDue: %v", err)
		}
		if f.games.game.Phase != models.PhaseQuestion {
			t.Fatalf("expected no transition, got %s", f.games.game.Phase)
		}
	})

	t.Run("finished game is a no-op", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseFinished, true), 3)
		deadline := f.clock.Now().Add(-time.Second)
		f.games.game.NextDeadline = &deadline
		s := NewScheduler(f.ctrl, nil, DefaultSchedulerConfig())

		if err := s.handleDue(context.Background(), "ABC123"); err != nil {
			t.Fatalf("handleDue: %v", err)
		}
		if f.games.game.Phase != models.PhaseFinished {
			t.Fatalf("expected finished game untouched, got %s", f.games.game.Phase)
		}
	})

	t.Run("cleared deadline is a no-op", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseQuestion, true), 3)
		s := NewScheduler(f.ctrl, nil, DefaultSchedulerConfig())

		if err := s.handleDue(context.Background(), "ABC123"); err != nil {
			t.Fatalf("handleDue: %v", err)
		}
		if f.games.game.Phase != models.PhaseQuestion {
			t.Fatalf("expected no transition, got %s", f.games.game.Phase)
		}
	})

	t.Run("due deadline advances", func(t *testing.T) {
		f := newControllerFixture(testGame(models.PhaseQuestion, true), 3)
		deadline := f.clock.Now().Add(-time.Second)
		f.games.game.NextDeadline = &deadline
		s := NewScheduler(f.ctrl, nil, DefaultSchedulerConfig())

		if err := s.handleDue(context.Background(), "ABC123"); err != nil {
			t.Fatalf("handleDue: %v", err)
		}
		if f.games.game.Phase != models.PhaseReveal {
			t.Fatalf("expected REVEAL after fired deadline, got %s", f.games.game.Phase)
		}
	})
}
