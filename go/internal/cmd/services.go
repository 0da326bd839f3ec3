package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/elimination"
	"github.com/lps-games/lastplayer/go/internal/flow"
	"github.com/lps-games/lastplayer/go/internal/game"
	"github.com/lps-games/lastplayer/go/internal/gateway"
	"github.com/lps-games/lastplayer/go/internal/outbox"
	"github.com/lps-games/lastplayer/go/internal/player"
	"github.com/lps-games/lastplayer/go/internal/question"
	"github.com/lps-games/lastplayer/go/internal/redemption"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
	"github.com/nats-io/nats.go"
)

const (
	eventStreamName    = "GAME_EVENTS"
	eventSubjectPrefix = "game.events"
)

// Services is the fully wired application graph.
type Services struct {
	Game        *game.Service
	Question    *question.Service
	Elimination *elimination.Service
	Redemption  *redemption.Service
	Flow        *flow.Service

	OutboxWorker  *outbox.Worker
	Scheduler     *flow.Scheduler
	ConnManager   *gateway.ConnectionManager
	EventConsumer *gateway.EventConsumer
	WSHandler     *gateway.WebSocketHandler
}

// setupServices wires repository -> app -> service for every domain,
// plus the outbox pipeline, scheduler and WebSocket gateway.
func setupServices(ctx context.Context, pool *pgxpool.Pool, config *Config) (*Services, error) {
	clock := clockwork.NewRealClock()
	runner := sqlutil.NewRunner(pool)
	natsURL := getEnv("NATS_URL", nats.DefaultURL)

	// Repositories
	gameRepo := game.NewRepository()
	playerRepo := player.NewRepository()
	questionRepo := question.NewRepository()
	roundRepo := redemption.NewRepository()
	outboxRepo := outbox.NewRepository()

	// Outbox pipeline
	publisher, err := outbox.NewNATSPublisher(ctx, natsURL, eventStreamName, eventSubjectPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	outboxWorker := outbox.NewWorker(runner, outboxRepo, publisher, outbox.DefaultConfig())

	// Apps
	gameApp := game.NewApp(gameRepo, playerRepo, questionRepo, outboxRepo, pool, runner, clock)
	questionApp := question.NewApp(gameRepo, questionRepo, pool, runner)
	eliminationApp := elimination.NewApp(gameRepo, playerRepo, questionRepo, runner, clock, config.Flow.Question)
	redemptionApp := redemption.NewApp(gameRepo, playerRepo, roundRepo, outboxRepo, pool, runner, clock, config.Flow.Voting)

	// Round flow
	controller := flow.NewController(gameRepo, playerRepo, questionRepo, outboxRepo, redemptionApp, runner, clock, config.Flow)
	scheduler := flow.NewScheduler(controller, pool, flow.DefaultSchedulerConfig())

	// Gateway
	connManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	consumerConfig := gateway.DefaultJetStreamConsumerConfig()
	consumerConfig.URL = natsURL
	consumerConfig.StreamName = eventStreamName
	consumerConfig.SubjectFilter = eventSubjectPrefix + ".>"
	eventConsumer, err := gateway.NewEventConsumer(connManager, consumerConfig)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Services{
		Game:          game.NewService(gameApp),
		Question:      question.NewService(questionApp),
		Elimination:   elimination.NewService(eliminationApp),
		Redemption:    redemption.NewService(redemptionApp),
		Flow:          flow.NewService(controller),
		OutboxWorker:  outboxWorker,
		Scheduler:     scheduler,
		ConnManager:   connManager,
		EventConsumer: eventConsumer,
		WSHandler:     gateway.NewWebSocketHandler(connManager),
	}, nil
}
