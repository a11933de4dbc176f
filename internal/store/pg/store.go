package pg

import (
	"context"
	"time"

	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements core.Repository against Postgres via pgxpool.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Config carries the pool tuning and dataset table name from config.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	Table           string
}

// New opens a pool. Startup is non-blocking: a failed ping is logged,
// not fatal, so the service can come up while the DB is still starting.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	// MaxIdleConns maps to MinConns in pgxpool terms
	if cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 5
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.Named("pg")
	if err := pool.Ping(ctx); err != nil {
		log.Warn("startup ping failed", logger.Err(err))
	} else {
		log.Info("pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}

	table := pgIdentifier(cfg.Table)
	if table == "" {
		table = defaultTable
	}
	return &Store{pool: pool, table: table}, nil
}

// Pool exposes the inner pool for the metrics collector.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool (idempotent).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
