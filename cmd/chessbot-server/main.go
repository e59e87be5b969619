package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/config"
	"github.com/hailam/chessbot/internal/opponent"
	"github.com/hailam/chessbot/internal/server"
	"github.com/hailam/chessbot/internal/storage"
)

var (
	configPath = flag.String("config", "", "path to a JSON config file")
	addr       = flag.String("addr", "", "listen address (overrides server.addr)")
	level      = flag.String("log-level", "", "log level (overrides log.level)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if err := config.SetupLogging(cfg.Log, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("could not set up logging")
	}

	var store *storage.Storage
	if !cfg.Storage.Disabled {
		store, err = storage.Open(cfg.Storage.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open storage")
		}
		defer store.Close()
	}

	handler := server.New(server.Config{
		Rules:      cfg.Backend(),
		Depth:      min(cfg.Engine.MaxDepth, opponent.MaxDepth),
		Positional: cfg.Engine.Positional,
	}, store)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Info().Str("addr", cfg.Server.Addr).Str("rules", cfg.Rules).Bool("storage", store != nil).Msg("server listening")
	select {
	case <-sigCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		if closeErr := srv.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			log.Warn().Err(closeErr).Msg("forced close failed")
		}
	}
}
