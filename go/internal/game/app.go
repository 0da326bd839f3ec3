package game

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/events"
	"github.com/lps-games/lastplayer/go/internal/gameerrors"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const maxUsernameLength = 32

// GameRepository defines what the app needs from the game store.
type GameRepository interface {
	CreateGame(ctx context.Context, q sqlutil.DBTX, code, hostName string, initialPot, potIncrement int64, autoFlow bool) (*models.Game, error)
	GetGameByCode(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
	GetGameByCodeForUpdate(ctx context.Context, q sqlutil.DBTX, code string) (*models.Game, error)
	CodeExists(ctx context.Context, q sqlutil.DBTX, code string) (bool, error)
	ApplyTransition(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, phase models.GamePhase, questionIndex *int, startedAt time.Time, deadline *time.Time) error
	SetSoundTrigger(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, sound *string) error
	SoftDeleteGame(ctx context.Context, q sqlutil.DBTX, id uuid.UUID) error
}

// PlayerRepository defines what the app needs from the player store.
type PlayerRepository interface {
	CreatePlayer(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error)
	GetPlayerByUsername(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, username string) (*models.Player, error)
	ListPlayers(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error)
	ListInPlay(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID) ([]models.Player, error)
	AddToBalance(ctx context.Context, q sqlutil.DBTX, id uuid.UUID, amount int64) error
}

// QuestionRepository defines what the app needs from the question store.
type QuestionRepository interface {
	GetQuestionByIndex(ctx context.Context, q sqlutil.DBTX, gameID uuid.UUID, index int) (*models.Question, error)
}

// OutboxRepository queues realtime events alongside state changes.
type OutboxRepository interface {
	InsertEvent(ctx context.Context, q sqlutil.DBTX, gameCode, eventType string, payload []byte) error
}

// App owns game lifecycle outside the round flow: creating lobbies,
// joining players, state views, ending the game and media cues.
type App struct {
	games     GameRepository
	players   PlayerRepository
	questions QuestionRepository
	outbox    OutboxRepository
	db        sqlutil.DBTX
	tx        sqlutil.TxRunner
	clock     clockwork.Clock
}

func NewApp(games GameRepository, players PlayerRepository, questions QuestionRepository, outbox OutboxRepository, db sqlutil.DBTX, tx sqlutil.TxRunner, clock clockwork.Clock) *App {
	return &App{
		games:     games,
		players:   players,
		questions: questions,
		outbox:    outbox,
		db:        db,
		tx:        tx,
		clock:     clock,
	}
}

// CreateGame opens a new lobby under a freshly generated code.
func (a *App) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error) {
	if strings.TrimSpace(req.HostName) == "" {
		return nil, gameerrors.Validation("host_name is required")
	}
	if req.InitialPrizePot < 0 || req.PrizePotIncrement < 0 {
		return nil, gameerrors.Validation("prize pot amounts must not be negative")
	}

	code, err := generateCode(ctx, func(ctx context.Context, code string) (bool, error) {
		return a.games.CodeExists(ctx, a.db, code)
	})
	if err != nil {
		return nil, err
	}

	g, err := a.games.CreateGame(ctx, a.db, code, strings.TrimSpace(req.HostName), req.InitialPrizePot, req.PrizePotIncrement, req.AutoFlow)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_code", g.Code).
		Int64("initial_prize_pot", g.InitialPrizePot).
		Bool("auto_flow", g.AutoFlow).
		Msg("game created")
	return g, nil
}

// JoinGame adds a player to a lobby. Joining is only possible before
// the game starts; usernames are unique per game, case-insensitively.
func (a *App) JoinGame(ctx context.Context, code, username string) (*models.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, gameerrors.Validation("username is required")
	}
	if len(username) > maxUsernameLength {
		return nil, gameerrors.Validation("username must be at most %d characters", maxUsernameLength)
	}

	var joined *models.Player
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.Phase != models.PhaseLobby {
			return gameerrors.InvalidState("game %s has already started", code)
		}
		if strings.EqualFold(username, g.HostName) {
			return gameerrors.Conflict("username %q is already taken in this game", username)
		}

		joined, err = a.players.CreatePlayer(ctx, q, g.ID, username)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(events.PlayerJoinedPayload{
			GameCode: g.Code,
			PlayerID: joined.ID.String(),
			Username: joined.Username,
			JoinedAt: joined.CreatedAt,
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, q, g.Code, events.TypePlayerJoined, payload)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_code", code).
		Str("username", joined.Username).
		Msg("player joined")
	return joined, nil
}

// GetGameInfo returns the public view of a game and its roster. The
// host name doubles as the host credential, so it is stripped here.
func (a *App) GetGameInfo(ctx context.Context, code string) (*GameInfo, error) {
	g, err := a.games.GetGameByCode(ctx, a.db, code)
	if err != nil {
		return nil, err
	}
	players, err := a.players.ListPlayers(ctx, a.db, g.ID)
	if err != nil {
		return nil, err
	}

	g.HostName = ""
	return &GameInfo{Game: g, Players: players}, nil
}

// GetPlayerState returns the per-player view used by polling clients.
// The correct answer is hidden while the question is still open.
func (a *App) GetPlayerState(ctx context.Context, code, username string) (*PlayerState, error) {
	g, err := a.games.GetGameByCode(ctx, a.db, code)
	if err != nil {
		return nil, err
	}
	p, err := a.players.GetPlayerByUsername(ctx, a.db, g.ID, username)
	if err != nil {
		return nil, err
	}
	players, err := a.players.ListPlayers(ctx, a.db, g.ID)
	if err != nil {
		return nil, err
	}

	state := &PlayerState{
		Game:    g,
		Player:  p,
		Players: players,
	}

	if g.CurrentQuestionIndex != nil {
		question, err := a.questions.GetQuestionByIndex(ctx, a.db, g.ID, *g.CurrentQuestionIndex)
		if err != nil {
			return nil, err
		}
		if g.Phase == models.PhaseQuestion {
			question = question.Redacted()
		}
		state.CurrentQuestion = question
		startedAt := g.PhaseStartedAt
		state.QuestionStarted = &startedAt
	}

	g.HostName = ""
	return state, nil
}

// EndGame finishes the game and pays the pot out to the sole survivor.
// It refuses to end while more than one player is still in play.
func (a *App) EndGame(ctx context.Context, code, hostName string) (*models.Player, error) {
	var winner *models.Player
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.HostName != hostName {
			return gameerrors.Forbidden("only the host can end the game")
		}
		if !g.IsActive() {
			return gameerrors.InvalidState("game %s is not in play", code)
		}

		inPlay, err := a.players.ListInPlay(ctx, q, g.ID)
		if err != nil {
			return err
		}
		if len(inPlay) != 1 {
			return gameerrors.InvalidState("game cannot end with %d players still in play", len(inPlay))
		}
		winner = &inPlay[0]

		if err := a.players.AddToBalance(ctx, q, winner.ID, g.CurrentPrizePot); err != nil {
			return err
		}

		now := a.clock.Now().UTC()
		if err := a.games.ApplyTransition(ctx, q, g.ID, models.PhaseFinished, g.CurrentQuestionIndex, now, nil); err != nil {
			return err
		}

		payload, err := json.Marshal(events.GameEndedPayload{
			GameCode:       g.Code,
			WinnerPlayerID: winner.ID.String(),
			WinnerUsername: winner.Username,
			PrizePot:       g.CurrentPrizePot,
			EndedAt:        now,
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, q, g.Code, events.TypeGameEnded, payload)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_code", code).
		Str("winner", winner.Username).
		Msg("game ended")
	return winner, nil
}

// TriggerSound stores a media cue and broadcasts it to connected clients.
func (a *App) TriggerSound(ctx context.Context, code, hostName, sound string) error {
	if strings.TrimSpace(sound) == "" {
		return gameerrors.Validation("sound is required")
	}

	return a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.HostName != hostName {
			return gameerrors.Forbidden("only the host can trigger sounds")
		}

		if err := a.games.SetSoundTrigger(ctx, q, g.ID, &sound); err != nil {
			return err
		}

		payload, err := json.Marshal(events.SoundTriggeredPayload{
			GameCode: g.Code,
			Sound:    sound,
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, q, g.Code, events.TypeSoundTriggered, payload)
	})
}

// ClearSound resets the stored cue once a client has played it. Any
// client may clear; the cue is ephemeral and carries no game state.
func (a *App) ClearSound(ctx context.Context, code string) error {
	return a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		return a.games.SetSoundTrigger(ctx, q, g.ID, nil)
	})
}

// DeleteGame soft-deletes a game, freeing its code for reuse.
func (a *App) DeleteGame(ctx context.Context, code, hostName string) error {
	err := a.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := a.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.HostName != hostName {
			return gameerrors.Forbidden("only the host can delete the game")
		}
		return a.games.SoftDeleteGame(ctx, q, g.ID)
	})
	if err != nil {
		return err
	}

	log.Info().Str("game_code", code).Msg("game deleted")
	return nil
}
