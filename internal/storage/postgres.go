// Package storage provides the optional side stores of the marketplace client:
// a Redis snapshot cache and an operation journal kept in memory, Postgres or ClickHouse.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IliyaBaranov/agora/internal/config"
	"github.com/IliyaBaranov/agora/internal/errors"
)

const (
	defaultJournalConns = 4
	connectTimeout      = 10 * time.Second
)

// PostgresDB holds the journal connection pool
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to the journal database. The journal writes one row per
// operation, so a small pool is enough.
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, errors.NewDatabaseError("parse_config", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = defaultJournalConns
	}
	poolConfig.MaxConns = int32(maxConns) // #nosec G115 - bounded by config
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.NewDatabaseError("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewDatabaseError("ping", fmt.Errorf("%s:%s: %w", cfg.Host, cfg.Port, err))
	}

	return &PostgresDB{pool: pool}, nil
}

// Close releases the pool
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks that the journal database answers
func (db *PostgresDB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return errors.NewDatabaseError("ping", err)
	}
	return nil
}
