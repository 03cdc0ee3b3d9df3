package storage

import (
	"context"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage/zapadapter"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// Store holds the connection pool and exposes all entity operations.
// Uniqueness guarantees (email, join code, membership pairs, push tokens)
// are delegated to the schema's unique constraints, so concurrent writers
// never need service-side locking.
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New connects a pgx pool configured from cfg, wires pool logging to the
// provided zap logger and bootstraps the schema
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	poolConfig.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(poolConfig)
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	s := &Store{
		logger: logger,
		db:     pool,
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying pool
func (s *Store) Close() {
	s.db.Close()
}
