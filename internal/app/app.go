// Package app wires configuration into the stores and services every
// binary shares.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/config"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/db"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	redisclient "github.com/hackgods/vaccine-reservation-scheduling/internal/redis"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

type App struct {
	Identity   *identity.Service
	Sessions   identity.SessionStore
	Scheduling *scheduling.Service

	PgPool *pgxpool.Pool
	Redis  *redis.Client
}

// Build connects the configured backends and applies the schema.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{}

	var (
		accounts identity.Repository
		store    scheduling.Store
	)

	switch cfg.Store {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, err
		}
		a.PgPool = pool
		logger.Info().Msg("connected to postgres")

		if err := db.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}

		policy := db.DefaultTxPolicy()
		policy.MaxAttempts = cfg.TxMaxAttempts
		accounts = identity.NewPgRepository(pool)
		store = scheduling.NewPgStore(pool, policy)
	default:
		logger.Warn().Msg("using in-memory store, nothing survives a restart")
		accounts = identity.NewMemoryRepository()
		store = scheduling.NewMemoryStore()
	}

	var locker redisclient.Locker = redisclient.NoopLocker{}
	a.Sessions = identity.NewMemorySessionStore()

	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		locker = redisclient.NewRedisDateLocker(rdb, cfg.LockTTL, cfg.LockWait)
		a.Sessions = redisclient.NewSessionStore(rdb, cfg.SessionTTL)
		logger.Info().Msg("connected to redis")
	}

	a.Identity = identity.NewService(accounts, cfg.BcryptCost)
	a.Scheduling = scheduling.NewService(store, locker)
	return a, nil
}

// Pinger returns the postgres pool as a health check target, nil when the
// store is in memory.
func (a *App) Pinger() interface{ Ping(context.Context) error } {
	if a.PgPool == nil {
		return nil
	}
	return a.PgPool
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.PgPool != nil {
		a.PgPool.Close()
	}
}
