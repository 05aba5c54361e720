package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"conversation-feed-service/internal/app"
	"conversation-feed-service/internal/config"
	httpapi "conversation-feed-service/internal/http"
	"conversation-feed-service/internal/observability"
	"conversation-feed-service/internal/room"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application startup failed")
	}

	obs := observability.NewServer(cfg.MetricsAddr)
	obs.Start()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Conversation feed service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.PolicyFile != "" {
		go func() {
			if err := config.WatchPolicyFile(ctx, cfg.PolicyFile, func(policy string) {
				application.Rooms.SetPolicy(room.ParsePolicy(policy))
			}); err != nil {
				log.Error().Err(err).Msg("Policy watcher failed")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown error")
	}
	application.Shutdown()
}
