package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/config"
	"github.com/mcdev12/engagements/go/internal/gateway"
)

func main() {
	configPath := flag.String("config", os.Getenv("ENGAGEMENTS_CONFIG"), "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	cfg.SetupLogging(os.Stderr)

	log.Info().
		Str("nats_url", cfg.Gateway.NATS.URL).
		Str("stream", cfg.Gateway.NATS.StreamName).
		Str("port", cfg.Gateway.Port).
		Msg("starting session gateway")

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig = cfg.Gateway.NATS

	gatewayService, err := gateway.NewService(gatewayConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	server := gateway.NewServer(fmt.Sprintf(":%s", cfg.Gateway.Port), gatewayService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
	}
	log.Info().Msg("session gateway shutdown complete")
}
