// Package app wires the service's long-lived components together.
package app

import (
	"time"

	"github.com/rs/zerolog"

	"conversation-feed-service/internal/config"
	"conversation-feed-service/internal/events"
	"conversation-feed-service/internal/observability/logging"
	"conversation-feed-service/internal/room"
	"conversation-feed-service/internal/token"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Rooms     *room.Manager
	Tokens    *token.Manager
	Publisher *events.Publisher
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		TimeFormat: time.RFC3339,
	})

	publisher := events.New(&events.Config{
		Enabled:     cfg.Kafka.Enabled,
		Brokers:     cfg.Kafka.Brokers,
		TopicEntry:  cfg.Kafka.TopicEntry,
		TopicUpdate: cfg.Kafka.TopicUpdate,
		Principal:   cfg.Kafka.Principal,
	})

	a := &Application{
		Logger: logging.WithComponent("application"),
		Cfg:    cfg,
		Rooms: room.NewManager(room.ManagerConfig{
			AgentIdentity: cfg.AgentIdentity,
			Departed:      room.ParsePolicy(cfg.DepartedPolicy),
			IdleTimeout:   cfg.RoomIdleTimeout,
		}, publisher),
		Tokens:    token.NewManager(cfg.TokenSecret, cfg.TokenTTL),
		Publisher: publisher,
	}

	a.Logger.Info().Msg("Conversation feed service application created")
	return a
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("departedPolicy", a.Cfg.DepartedPolicy).
		Msg("Conversation feed service starting")
	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("Conversation feed service shutting down")
	a.Rooms.Stop()
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Error closing publisher")
	}
}
