package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizroyale/quizroyale/clients/openai_client"
	"github.com/quizroyale/quizroyale/internal/events"
	"github.com/quizroyale/quizroyale/internal/gateway"
	"github.com/quizroyale/quizroyale/internal/room"
	"github.com/quizroyale/quizroyale/internal/room/memory"
	"github.com/quizroyale/quizroyale/internal/room/postgres"
	"github.com/quizroyale/quizroyale/internal/scheduler"
)

type Services struct {
	RoomApp   *room.App
	Room      *room.Service
	Gateway   *gateway.Service
	Scheduler *scheduler.Scheduler

	closers []func() error
}

// setupServices wires the dependency chain:
// storage → app → HTTP service / gateway / scheduler.
// database may be nil, in which case rooms live in memory.
func setupServices(config *Config, database *sql.DB, apiKey string) (*Services, error) {
	var repo room.Repository
	if database != nil {
		repo = postgres.NewRepository(database)
	} else {
		repo = memory.NewRepository()
	}

	provider := openai_client.NewOpenAIClient(apiKey, config.OpenAI.Model)

	natsURL := getEnv("NATS_URL", "")
	useJetStream := natsURL != ""

	var (
		publisher room.EventPublisher
		logPub    *events.LogPublisher
		closers   []func() error
	)
	if useJetStream {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = natsURL
		jsPub, err := events.NewJetStreamPublisher(jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		publisher = jsPub
		closers = append(closers, jsPub.Close)
	} else {
		logPub = events.NewLogPublisher(nil)
		publisher = logPub
	}

	clock := clockwork.NewRealClock()
	app := room.NewApp(repo, provider, publisher, clock, config.answerWindow())

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.UseJetStream = useJetStream
	if useJetStream {
		gatewayConfig.JetStreamConfig.URL = natsURL
	}
	if config.Server.JoinBaseURL != "" {
		gatewayConfig.JoinBaseURL = config.Server.JoinBaseURL
	}
	gw, err := gateway.NewService(gatewayConfig, app)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	if logPub != nil {
		// Single-process mode: events skip the broker and feed the
		// gateway directly.
		logPub.SetSink(gw.InProcessSink())
	}

	schedConfig := scheduler.DefaultConfig()
	if config.Scheduler.PollIntervalMS > 0 {
		schedConfig.PollInterval = time.Duration(config.Scheduler.PollIntervalMS) * time.Millisecond
	}
	if config.Scheduler.NumWorkers > 0 {
		schedConfig.NumWorkers = config.Scheduler.NumWorkers
	}
	sched := scheduler.New(app, clock, schedConfig)

	return &Services{
		RoomApp:   app,
		Room:      room.NewService(app),
		Gateway:   gw,
		Scheduler: sched,
		closers:   closers,
	}, nil
}

// Close releases broker connections and other external resources.
func (s *Services) Close() {
	for _, closer := range s.closers {
		_ = closer()
	}
}
