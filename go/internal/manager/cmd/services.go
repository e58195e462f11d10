package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/bus"
	"github.com/mcdev12/contest/go/internal/ledger"
	"github.com/mcdev12/contest/go/internal/manager"
	"github.com/mcdev12/contest/go/internal/orchestrator"
	"github.com/mcdev12/contest/go/internal/questioner"
)

type Services struct {
	Ledger       *ledger.App
	Orchestrator *orchestrator.Orchestrator
	Live         *manager.LiveFeed
	Limiter      *manager.RateLimiter

	closers []func()
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupServices(ctx context.Context, cfg Config, reg *prometheus.Registry) (*Services, error) {
	// Wire up dependency injection chain
	// Repository -> Ledger -> Bus -> Orchestrator
	services := &Services{}

	repo, closeRepo, err := setupRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.closers = append(services.closers, closeRepo)
	services.Ledger = ledger.NewApp(repo, nil)

	publisher, err := setupBus(ctx, cfg, reg, services)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Live = manager.NewLiveFeed(manager.DefaultLiveConfig())

	services.Orchestrator, err = orchestrator.New(services.Ledger, publisher, orchestrator.Config{
		ResultURL: cfg.ResultURL,
		Notifier:  services.Live,
		Metrics:   orchestrator.NewMetrics(reg),
	})
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		services.closers = append(services.closers, func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis client")
			}
		})
		services.Limiter = manager.NewRateLimiter(client, cfg.RateLimit, cfg.RateWindow)
		log.Info().
			Str("redis_addr", cfg.RedisAddr).
			Int64("limit", cfg.RateLimit).
			Dur("window", cfg.RateWindow).
			Msg("submission rate limit enabled")
	}

	return services, nil
}

func setupBus(ctx context.Context, cfg Config, reg *prometheus.Registry, services *Services) (bus.Publisher, error) {
	if cfg.Bus == busJetStream {
		jsCfg := bus.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL

		publisher, err := bus.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create play request publisher: %w", err)
		}
		services.closers = append(services.closers, func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close play request publisher")
			}
		})
		return publisher, nil
	}

	configs, err := loadQuestioners(cfg.QuestionerConfigs)
	if err != nil {
		return nil, err
	}

	memBus := bus.NewMemoryBus(ctx)
	metrics := questioner.NewMetrics(reg)
	for _, qc := range configs {
		q, err := questioner.New(qc, questioner.NewReporter(nil), metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create questioner %s: %w", qc.Name, err)
		}
		memBus.Subscribe(q.Name(), q.HandlePlayRequest)
		log.Info().Str("questioner", q.Name()).Msg("embedded questioner subscribed")
	}
	services.closers = append(services.closers, memBus.Wait)
	return memBus, nil
}
