// Package tokencache provides access token stores for the component
// adapter. Every backend satisfies component.Cache; Open picks one from
// configuration.
package tokencache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan/component"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Static errors.
var (
	ErrUnsupportedBackend = errors.New("unsupported cache backend")
	ErrMissingSetting     = errors.New("missing cache setting")
)

// Store is a component.Cache that holds resources.
type Store interface {
	component.Cache
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend  string         `yaml:"backend"  mapstructure:"backend"`
	File     FileConfig     `yaml:"file"     mapstructure:"file"`
	Memory   MemoryConfig   `yaml:"memory"   mapstructure:"memory"`
	Redis    RedisConfig    `yaml:"redis"    mapstructure:"redis"`
	NATS     NATSConfig     `yaml:"nats"     mapstructure:"nats"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MemoryConfig configures the in-process backend.
type MemoryConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"     mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db"       mapstructure:"db"`
}

// NATSConfig configures the NATS JetStream key-value backend.
type NATSConfig struct {
	URL    string `yaml:"url"    mapstructure:"url"`
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"       mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	Migrate  bool   `yaml:"migrate"   mapstructure:"migrate"`
}

// Open connects the configured backend. An empty backend means file.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("%w: file.path", ErrMissingSetting)
		}
		return NewFile(cfg.File.Path), nil

	case BackendMemory:
		return NewMemory(cfg.Memory.CleanupInterval), nil

	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("%w: redis.addr", ErrMissingSetting)
		}
		return NewRedis(ctx, cfg.Redis)

	case BackendNATS:
		if cfg.NATS.URL == "" {
			return nil, fmt.Errorf("%w: nats.url", ErrMissingSetting)
		}
		return NewNATS(ctx, cfg.NATS)

	case BackendPostgres:
		if cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("%w: postgres.dsn", ErrMissingSetting)
		}
		s, err := NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.Migrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close() //nolint:errcheck // migration error wins
				return nil, err
			}
		}
		return s, nil

	case BackendNone:
		return Nop{}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// Nop never stores anything.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set discards the value.
func (Nop) Set(context.Context, string, string, time.Duration) error { return nil }

// Close is a no-op.
func (Nop) Close() error { return nil }

// record is the stored form for backends without native key expiry.
type record struct {
	Value     string     `json:"value"                yaml:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func newRecord(value string, ttl time.Duration, now time.Time) record {
	r := record{Value: value}
	if ttl > 0 {
		exp := now.Add(ttl).UTC()
		r.ExpiresAt = &exp
	}
	return r
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
