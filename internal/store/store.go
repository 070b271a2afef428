package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	Accounts  AccountRepository
	Events    EventRepository
	Sessions  SessionRepository
	APITokens APITokenRepository
}

// Options tunes repository behavior.
type Options struct {
	// TxWaitTimeout bounds how long a mutation waits for a transaction slot
	// before failing with a retryable error.
	TxWaitTimeout time.Duration
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool *pgxpool.Pool, opts Options) *Store {
	if opts.TxWaitTimeout <= 0 {
		opts.TxWaitTimeout = defaultTxWaitTimeout
	}
	return &Store{
		pool:      pool,
		Accounts:  &accountRepo{pool: pool},
		Events:    &eventRepo{pool: pool, txWaitTimeout: opts.TxWaitTimeout},
		Sessions:  &sessionRepo{pool: pool},
		APITokens: &apiTokenRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
