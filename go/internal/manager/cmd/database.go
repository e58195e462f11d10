package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/dbconfig"
	"github.com/mcdev12/contest/go/internal/ledger"
)

func setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	pool, err := pgxpool.New(ctx, dbConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("user", dbConfig.User).
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("connected to database")
	return pool, nil
}

// setupRepository picks the ledger's backing store.
func setupRepository(ctx context.Context, cfg Config) (ledger.Repository, func(), error) {
	if cfg.Store == storeMemory {
		log.Warn().Msg("using in-memory ledger, rounds are lost on restart")
		return ledger.NewMemoryRepository(), func() {}, nil
	}

	pool, err := setupDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}

	repo := ledger.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}
