package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/quizroyale/quizroyale/internal/events"
)

// Service is the room gateway: it owns the WebSocket connections and
// feeds them from the event bus, either a JetStream consumer or an
// in-process sink when running without a broker.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

// Config holds configuration for the room gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
	// UseJetStream selects the broker-backed consumer. Without it the
	// gateway relies on InProcessSink being wired to the publisher.
	UseJetStream bool
	JoinBaseURL  string
}

// DefaultConfig returns default configuration for the room gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
		JoinBaseURL:      "http://localhost:8080/join",
	}
}

// NewService creates a new room gateway service
func NewService(config Config, provider SnapshotProvider) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig, provider)
	wsHandler := NewWebSocketHandler(connectionManager, provider, config.JoinBaseURL)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
	}

	if config.UseJetStream {
		eventConsumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = eventConsumer
	}

	return s, nil
}

// InProcessSink returns a function that feeds events straight into the
// broadcast loop, for wiring to events.NewLogPublisher in single-node
// deployments.
func (s *Service) InProcessSink() func(events.Envelope) {
	return func(envelope events.Envelope) {
		s.connectionManager.BroadcastToRoom(envelope.RoomID, envelope)
	}
}

// Start begins the gateway service
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	// Start connection manager
	go s.connectionManager.Start(ctx)

	// Start JetStream event consumer if configured
	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	// Wait for context cancellation
	<-ctx.Done()

	log.Info().Msg("room gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}

	// Connection manager will stop when context is cancelled
	log.Info().Msg("room gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("room gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "room_gateway"
	stats["status"] = "running"
	return stats
}
