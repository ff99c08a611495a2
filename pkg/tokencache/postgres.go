package tokencache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPoolSize = 4

// Postgres stores tokens in the token_cache table.
//
// TODO(test): Postgres methods require live Postgres, tested via integration tests.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store with connection pooling.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolCfg.MaxConns = defaultPoolSize
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Migrate applies pending SQL schema migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, p.pool)
}

// Get returns the value stored under key. Expired rows are absent.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `
		SELECT value FROM token_cache
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying token %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key. A ttl <= 0 means no expiry.
func (p *Postgres) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		expiresAt = &exp
	}

	if _, err := p.pool.Exec(ctx, `
		INSERT INTO token_cache (key, value, expires_at, updated_at)
		VALUES (@key, @value, @expires_at, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()
	`, pgx.NamedArgs{
		"key":        key,
		"value":      value,
		"expires_at": expiresAt,
	}); err != nil {
		return fmt.Errorf("upserting token %s: %w", key, err)
	}
	return nil
}

// Close gracefully shuts down the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
