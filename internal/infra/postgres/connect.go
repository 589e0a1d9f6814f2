package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vogiaan1904/barberqueue/config"
	pkgLog "github.com/vogiaan1904/barberqueue/pkg/logger"
)

func Connect(ctx context.Context, cfg config.PostgresConfig, l pkgLog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create Postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	l.Info(ctx, "connected to Postgres")

	return pool, nil
}

func Disconnect(ctx context.Context, pool *pgxpool.Pool, l pkgLog.Logger) {
	if pool == nil {
		return
	}

	pool.Close()

	l.Info(ctx, "connection to Postgres closed")
}
