package main

import (
	"context"

	"github.com/quantsignal/forecast-api/internal/bootstrap"
)

// connectInfra opens Postgres and, when reachable, Redis. Commands that touch
// counters still work against the null store when Redis is down.
func (c *cli) connectInfra(ctx context.Context) (*bootstrap.Infra, error) {
	return bootstrap.ConnectInfra(ctx, bootstrap.InfraConfig{
		Postgres: c.cfg.Postgres,
		Redis:    c.cfg.Redis,
		Logger:   c.logger,
	})
}

// connectDB opens only Postgres, for commands that never touch counters.
func (c *cli) connectDB(ctx context.Context) (*bootstrap.Infra, error) {
	return bootstrap.ConnectInfra(ctx, bootstrap.InfraConfig{
		Postgres:  c.cfg.Postgres,
		SkipRedis: true,
		Logger:    c.logger,
	})
}

func (c *cli) release(in *bootstrap.Infra) {
	if err := in.Close(); err != nil {
		c.logger.Warn("close connections failed", "error", err)
	}
}

// services wires the full service container, including the job registry.
func (c *cli) services(ctx context.Context, in *bootstrap.Infra) (bootstrap.ServiceContainer, error) {
	return bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:        &c.cfg,
		DB:            in.DB,
		RedisClient:   in.Redis,
		Logger:        c.logger,
		WithScheduler: true,
	})
}
