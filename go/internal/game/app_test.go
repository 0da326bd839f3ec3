package game

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/events"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
)

type fakeTxRunner struct{}

func (fakeTxRunner) InTx(ctx context.Context, fn func(q sqlutil.DBTX) error) error {
	return fn(nil)
}

type fakeGames struct {
	game    *models.Game
	taken   map[string]bool
	created int
	deleted bool
}

func (f *fakeGames) CreateGame(ctx context.Context, q sqlutil.DBTX, code, hostName string, initialPot, potIncrement int64, autoFlow bool) (*models.Game, error) {
	f.created++
	f.game = &models.Game{
		ID:                uuid.New(),
		Code:              code,
		HostName:          hostName,
		Phase:             models.PhaseLobby,
		InitialPrizePot:   initialPot,
		CurrentPrizePot:   initialPot,
		PrizePotIncrement: potIncrement,
		AutoFlow:          autoFlow,
		CreatedAt:         time.Now(),
	}
	return f.game, nil
}

func (f *fakeGames) GetGameByCode(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error) {
	if f.game == nil || f.game.Code != code {
		return nil, gameerrors.NotFound("game %s not found", code)
	}
	g := *f.game
	return &g, nil
}

func (f *fakeGames) GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error) {
	return f.GetGameByCode(ctx, q, code)
}

func (f *fakeGames) CodeExists(ctx context.Context, q sqlutil.DBTX, code string) (bool, error) {
	return f.taken[code], nil
}

func (f *fakeGames) ApplyTransition(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, phase models.GamePhase, questionIndex *int, startedAt time.Time, deadline *time.Time) error {
	f.game.Phase = phase
	f.game.CurrentQuestionIndex = questionIndex
	f.game.PhaseStartedAt = startedAt
	f.game.NextDeadline = deadline
	return nil
}

func (f *fakeGames) SetSoundTrigger(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, sound *string) error {
	f.game.SoundTrigger = sound
	return nil
}

func (f *fakeGames) SoftDeleteGame(ctx context.Context, q sqlutil.DBTX, id uuid.UUID) error {
	f.deleted = true
	return nil
}

type fakePlayers struct {
	players []models.Player
}

func (f *fakePlayers) CreatePlayer(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error) {
	for _, p := range f.players {
		if strings.EqualFold(p.Username, username) {
			return nil, gameerrors.Conflict("username %q is already taken in this game", username)
		}
	}
	p := models.Player{
		ID:        uuid.New(),
		GameID:    gameID,
		Username:  username,
		Status:    models.PlayerStatusActive,
		CreatedAt: time.Now(),
	}
	f.players = append(f.players, p)
	return &p, nil
}

func (f *fakePlayers) GetPlayerByUsername(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error) {
	for i := range f.players {
		if f.players[i].Username == username {
			return &f.players[i], nil
		}
	}
	return nil, gameerrors.NotFound("player %q not found in this game", username)
}

func (f *fakePlayers) ListPlayers(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error) {
	return f.players, nil
}

func (f *fakePlayers) ListInPlay(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error) {
	var inPlay []models.Player
	for _, p := range f.players {
		if p.InPlay() {
			inPlay = append(inPlay, p)
		}
	}
	return inPlay, nil
}

func (f *fakePlayers) AddToBalance(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, amount int64) error {
	for i := range f.players {
		if f.players[i].ID == id {
			f.players[i].Balance += amount
			return nil
		}
	}
	return gameerrors.NotFound("player not found")
}

type fakeQuestions struct {
	question *models.Question
}

func (f *fakeQuestions) GetQuestionByIndex(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) (*models.Question, error) {
	if f.question == nil || f.question.QuestionIndex != index {
		return nil, gameerrors.NotFound("question %d not found", index)
	}
	return f.question, nil
}

type fakeOutbox struct {
	eventTypes []string
}

func (f *fakeOutbox) InsertEvent(ctx context.Context, q sqlutil.DBTX, gameCode, eventType string, payload []byte) error {
	f.eventTypes = append(f.eventTypes, eventType)
	return nil
}

type fixture struct {
	app     *App
	games   *fakeGames
	players *fakePlayers
	outbox  *fakeOutbox
	clock   *clockwork.FakeClock
}

func newFixture() *fixture {
	f := &fixture{
		games:   &fakeGames{taken: make(map[string]bool)},
		players: &fakePlayers{},
		outbox:  &fakeOutbox{},
		clock:   clockwork.NewFakeClock(),
	}
	questions := &fakeQuestions{question: &models.Question{
		ID:            uuid.New(),
		QuestionIndex: 0,
		Text:          "What is the airspeed of an unladen swallow?",
		CorrectAnswer: models.AnswerB,
	}}
	f.app = NewApp(f.games, f.players, questions, f.outbox, nil, fakeTxRunner{}, f.clock)
	return f
}

func (f *fixture) withLobby() *models.Game {
	g, err := f.app.CreateGame(context.Background(), CreateGameRequest{
		HostName:          "host",
		InitialPrizePot:   100,
		PrizePotIncrement: 25,
	})
	if err != nil {
		panic(err)
	}
	return g
}

func TestCreateGame(t *testing.T) {
	f := newFixture()

	g, err := f.app.CreateGame(context.Background(), CreateGameRequest{
		HostName:          "  host  ",
		InitialPrizePot:   100,
		PrizePotIncrement: 25,
		AutoFlow:          true,
	})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if !ValidCode(g.Code) {
		t.Fatalf("expected a valid game code, got %q", g.Code)
	}
	if g.HostName != "host" {
		t.Fatalf("expected trimmed host name, got %q", g.HostName)
	}
	if g.Phase != models.PhaseLobby || !g.AutoFlow {
		t.Fatalf("unexpected game: %+v", g)
	}
}

func TestCreateGameValidations(t *testing.T) {
	f := newFixture()

	cases := []CreateGameRequest{
		{HostName: "   "},
		{HostName: "host", InitialPrizePot: -1},
		{HostName: "host", PrizePotIncrement: -5},
	}
	for _, req := range cases {
		if _, err := f.app.CreateGame(context.Background(), req); gameerrors.KindOf(err) != gameerrors.KindValidation {
			t.Errorf("request %+v: expected Validation, got %v", req, err)
		}
	}
}

func TestJoinGame(t *testing.T) {
	f := newFixture()
	g := f.withLobby()

	p, err := f.app.JoinGame(context.Background(), g.Code, "alice")
	if err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if p.Status != models.PlayerStatusActive {
		t.Fatalf("expected active player, got %s", p.Status)
	}
	if len(f.outbox.eventTypes) != 1 || f.outbox.eventTypes[0] != events.TypePlayerJoined {
		t.Fatalf("expected one player_joined event, got %v", f.outbox.eventTypes)
	}
}

func TestJoinGameRejections(t *testing.T) {
	f := newFixture()
	g := f.withLobby()
	if _, err := f.app.JoinGame(context.Background(), g.Code, "alice"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}

	t.Run("duplicate username", func(t *testing.T) {
		_, err := f.app.JoinGame(context.Background(), g.Code, "ALICE")
		if gameerrors.KindOf(err) != gameerrors.KindConflict {
			t.Fatalf("expected Conflict, got %v", err)
		}
	})
	t.Run("host name collision", func(t *testing.T) {
		_, err := f.app.JoinGame(context.Background(), g.Code, "Host")
		if gameerrors.KindOf(err) != gameerrors.KindConflict {
			t.Fatalf("expected Conflict, got %v", err)
		}
	})
	t.Run("empty username", func(t *testing.T) {
		_, err := f.app.JoinGame(context.Background(), g.Code, "   ")
		if gameerrors.KindOf(err) != gameerrors.KindValidation {
			t.Fatalf("expected Validation, got %v", err)
		}
	})
	t.Run("username too long", func(t *testing.T) {
		_, err := f.app.JoinGame(context.Background(), g.Code, strings.Repeat("x", maxUsernameLength+1))
		if gameerrors.KindOf(err) != gameerrors.KindValidation {
			t.Fatalf("expected Validation, got %v", err)
		}
	})
	t.Run("after start", func(t *testing.T) {
		f.games.game.Phase = models.PhaseQuestion
		_, err := f.app.JoinGame(context.Background(), g.Code, "bob")
		if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
			t.Fatalf("expected InvalidState, got %v", err)
		}
	})
}

func TestGetGameInfoStripsHostName(t *testing.T) {
	f := newFixture()
	g := f.withLobby()

	info, err := f.app.GetGameInfo(context.Background(), g.Code)
	if err != nil {
		t.Fatalf("GetGameInfo: %v", err)
	}
	if info.Game.HostName != "" {
		t.Fatalf("host name must not leak, got %q", info.Game.HostName)
	}
	if f.games.game.HostName != "host" {
		t.Fatal("stored game must keep its host name")
	}
}

func TestGetPlayerStateRedactsOpenQuestion(t *testing.T) {
	f := newFixture()
	g := f.withLobby()
	if _, err := f.app.JoinGame(context.Background(), g.Code, "alice"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	index := 0
	f.games.game.Phase = models.PhaseQuestion
	f.games.game.CurrentQuestionIndex = &index
	f.games.game.PhaseStartedAt = time.Now().UTC()

	state, err := f.app.GetPlayerState(context.Background(), g.Code, "alice")
	if err != nil {
		t.Fatalf("GetPlayerState: %v", err)
	}
	if state.CurrentQuestion == nil {
		t.Fatal("expected the current question in the state")
	}
	if state.CurrentQuestion.CorrectAnswer != "" {
		t.Fatalf("correct answer must be hidden while the question is open, got %q", state.CurrentQuestion.CorrectAnswer)
	}
	if state.QuestionStarted == nil {
		t.Fatal("expected question start time")
	}
	if state.Game.HostName != "" {
		t.Fatal("host name must not leak in player state")
	}
}

func TestGetPlayerStateRevealsAfterQuestionCloses(t *testing.T) {
	f := newFixture()
	g := f.withLobby()
	if _, err := f.app.JoinGame(context.Background(), g.Code, "alice"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	index := 0
	f.games.game.Phase = models.PhaseReveal
	f.games.game.CurrentQuestionIndex = &index

	state, err := f.app.GetPlayerState(context.Background(), g.Code, "alice")
	if err != nil {
		t.Fatalf("GetPlayerState: %v", err)
	}
	if state.CurrentQuestion.CorrectAnswer != models.AnswerB {
		t.Fatalf("expected the correct answer after reveal, got %q", state.CurrentQuestion.CorrectAnswer)
	}
}

func TestEndGame(t *testing.T) {
	f := newFixture()
	g := f.withLobby()
	if _, err := f.app.JoinGame(context.Background(), g.Code, "alice"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if _, err := f.app.JoinGame(context.Background(), g.Code, "bob"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	f.games.game.Phase = models.PhaseRedemption
	f.games.game.CurrentPrizePot = 175
	round := 0
	f.players.players[1].Status = models.PlayerStatusEliminated
	f.players.players[1].EliminatedRound = &round

	winner, err := f.app.EndGame(context.Background(), g.Code, "host")
	if err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	if winner.Username != "alice" {
		t.Fatalf("expected alice to win, got %s", winner.Username)
	}
	if f.players.players[0].Balance != 175 {
		t.Fatalf("expected pot paid out, balance=%d", f.players.players[0].Balance)
	}
	if f.games.game.Phase != models.PhaseFinished {
		t.Fatalf("expected FINISHED, got %s", f.games.game.Phase)
	}
	if f.games.game.NextDeadline != nil {
		t.Fatal("expected deadline cleared on finish")
	}
	if !f.games.game.PhaseStartedAt.Equal(f.clock.Now().UTC()) {
		t.Fatalf("expected finish timestamp from the clock, got %v", f.games.game.PhaseStartedAt)
	}
	if last := f.outbox.eventTypes[len(f.outbox.eventTypes)-1]; last != events.TypeGameEnded {
		t.Fatalf("expected game_ended event, got %s", last)
	}
}

func TestEndGameRejections(t *testing.T) {
	f := newFixture()
	g := f.withLobby()
	if _, err := f.app.JoinGame(context.Background(), g.Code, "alice"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if _, err := f.app.JoinGame(context.Background(), g.Code, "bob"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}

	t.Run("not started", func(t *testing.T) {
		_, err := f.app.EndGame(context.Background(), g.Code, "host")
		if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
			t.Fatalf("expected InvalidState, got %v", err)
		}
	})
	t.Run("non-host", func(t *testing.T) {
		f.games.game.Phase = models.PhaseQuestion
		_, err := f.app.EndGame(context.Background(), g.Code, "alice")
		if gameerrors.KindOf(err) != gameerrors.KindForbidden {
			t.Fatalf("expected Forbidden, got %v", err)
		}
	})
	t.Run("more than one in play", func(t *testing.T) {
		f.games.game.Phase = models.PhaseQuestion
		_, err := f.app.EndGame(context.Background(), g.Code, "host")
		if gameerrors.KindOf(err) != gameerrors.KindInvalidState {
			t.Fatalf("expected InvalidState, got %v", err)
		}
	})
}

func TestSoundTrigger(t *testing.T) {
	f := newFixture()
	g := f.withLobby()

	if err := f.app.TriggerSound(context.Background(), g.Code, "host", "airhorn"); err != nil {
		t.Fatalf("TriggerSound: %v", err)
	}
	if f.games.game.SoundTrigger == nil || *f.games.game.SoundTrigger != "airhorn" {
		t.Fatalf("expected stored cue, got %v", f.games.game.SoundTrigger)
	}

	if err := f.app.TriggerSound(context.Background(), g.Code, "alice", "airhorn"); gameerrors.KindOf(err) != gameerrors.KindForbidden {
		t.Fatalf("expected Forbidden for non-host, got %v", err)
	}

	// Any client may clear a played cue.
	if err := f.app.ClearSound(context.Background(), g.Code); err != nil {
		t.Fatalf("ClearSound: %v", err)
	}
	if f.games.game.SoundTrigger != nil {
		t.Fatalf("expected cue cleared, got %v", f.games.game.SoundTrigger)
	}
}

func TestDeleteGame(t *testing.T) {
	f := newFixture()
	g := f.withLobby()

	if err := f.app.DeleteGame(context.Background(), g.Code, "alice"); gameerrors.KindOf(err) != gameerrors.KindForbidden {
		t.Fatalf("expected Forbidden for non-host, got %v", err)
	}
	if err := f.app.DeleteGame(context.Background(), g.Code, "host"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if !f.games.deleted {
		t.Fatal("expected game soft-deleted")
	}
}
