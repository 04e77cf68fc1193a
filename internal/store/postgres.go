package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"log/slog"

	"github.com/iamapoorv476/my-excildrawapp/internal/app"
)

type Postgres struct {
	pool  *pgxpool.Pool
	cache *RecentChats
	log   *slog.Logger
}

// NewPostgres connects to postgres and returns a pool wrapper. The
// recent-chat cache is written through on SaveChat and consulted first
// on history reads.
func NewPostgres(ctx context.Context, cfg app.Config, cache *RecentChats, log *slog.Logger) (*Postgres, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, cache: cache, log: log}, nil
}

// poolConfig parses the DSN and applies the configured pool size.
func poolConfig(cfg app.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.PGURL)
	if err != nil {
		return nil, err
	}
	if cfg.PGMaxConn > 0 {
		pc.MaxConns = int32(cfg.PGMaxConn)
	}
	return pc, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// Ping verifies DB connectivity for readiness checks.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }
