package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilabos/scrappy-chat/internal/config"
	"github.com/emilabos/scrappy-chat/internal/log"
	"github.com/emilabos/scrappy-chat/internal/relay"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).
		Msg("starting relay")

	transcript, err := newTranscript(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transcript")
	}
	defer transcript.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := relay.NewHub(transcript)
	go hub.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), log.GinMiddleware())

	relay.NewHandler(hub, transcript, cfg.Ads.URIs, cfg.WebSocket).RegisterRoutes(router)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("relay stopped")
}

func newTranscript(cfg *config.RelayConfig) (relay.Transcript, error) {
	switch cfg.Transcript.Backend {
	case "redis":
		return relay.NewRedisTranscript(cfg.Transcript.Redis, cfg.Transcript.Capacity)
	default:
		return relay.NewMemoryTranscript(cfg.Transcript.Capacity), nil
	}
}
