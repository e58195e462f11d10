package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/bus"
	"github.com/mcdev12/contest/go/internal/questioner"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg := questioner.DefaultConfig()
	if path := os.Getenv("QUESTIONER_CONFIG"); path != "" {
		cfg, err = questioner.LoadConfig(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load questioner config")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	q, err := questioner.New(cfg, questioner.NewReporter(nil), questioner.NewMetrics(reg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create questioner")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jsCfg := bus.DefaultJetStreamConfig()
	jsCfg.URL = getEnv("NATS_URL", nats.DefaultURL)

	consumerCfg := bus.DefaultConsumerConfig(cfg.Name)
	consumerCfg.Workers = cfg.Workers
	consumerCfg.AckWait = cfg.GameBudget() + 30*time.Second

	consumer, err := bus.NewJetStreamConsumer(ctx, jsCfg, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create play request consumer")
	}
	defer consumer.Close()

	log.Info().
		Str("questioner", cfg.Name).
		Int("minimum", cfg.Minimum).
		Int("maximum", cfg.Maximum).
		Str("target_policy", string(cfg.TargetPolicy)).
		Int("max_guesses", cfg.MaxGuesses).
		Str("nats_url", jsCfg.URL).
		Msg("starting questioner")

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx, q.HandlePlayRequest); err != nil {
			log.Error().Err(err).Msg("play request consumer failed")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         ":" + getEnv("PORT", "8082"),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server shutdown failed")
	}

	cancel()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("consumer did not stop in time")
	}

	log.Info().Msg("questioner shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
