package tokencache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/jushuitan-go/pkg/tokencache"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	mini := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     tokencache.Config
		want    any
		wantErr error
	}{
		{
			name: "file",
			cfg:  tokencache.Config{Backend: "file", File: tokencache.FileConfig{Path: filepath.Join(t.TempDir(), "t.yaml")}},
			want: &tokencache.File{},
		},
		{
			name: "empty backend is file",
			cfg:  tokencache.Config{File: tokencache.FileConfig{Path: filepath.Join(t.TempDir(), "t.yaml")}},
			want: &tokencache.File{},
		},
		{
			name: "memory",
			cfg:  tokencache.Config{Backend: "memory"},
			want: &tokencache.Memory{},
		},
		{
			name: "redis",
			cfg:  tokencache.Config{Backend: "redis", Redis: tokencache.RedisConfig{Addr: mini.Addr()}},
			want: &tokencache.Redis{},
		},
		{
			name: "none",
			cfg:  tokencache.Config{Backend: "none"},
			want: tokencache.Nop{},
		},
		{
			name:    "file without path",
			cfg:     tokencache.Config{Backend: "file"},
			wantErr: tokencache.ErrMissingSetting,
		},
		{
			name:    "redis without addr",
			cfg:     tokencache.Config{Backend: "redis"},
			wantErr: tokencache.ErrMissingSetting,
		},
		{
			name:    "nats without url",
			cfg:     tokencache.Config{Backend: "nats"},
			wantErr: tokencache.ErrMissingSetting,
		},
		{
			name:    "postgres without dsn",
			cfg:     tokencache.Config{Backend: "postgres"},
			wantErr: tokencache.ErrMissingSetting,
		},
		{
			name:    "unknown backend",
			cfg:     tokencache.Config{Backend: "memcached"},
			wantErr: tokencache.ErrUnsupportedBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := tokencache.Open(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestNop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var s tokencache.Nop

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Close())
}

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, s tokencache.Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "jushuitan:app:access_token")
	require.NoError(t, err)
	assert.False(t, ok, "missing key")

	require.NoError(t, s.Set(ctx, "jushuitan:app:access_token", "tok-1", time.Hour))
	v, ok, err := s.Get(ctx, "jushuitan:app:access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", v)

	require.NoError(t, s.Set(ctx, "jushuitan:app:access_token", "tok-2", 0))
	v, ok, err = s.Get(ctx, "jushuitan:app:access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v, "last writer wins")

	require.NoError(t, s.Set(ctx, "jushuitan:other:access_token", "tok-3", time.Hour))
	v, _, err = s.Get(ctx, "jushuitan:app:access_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", v, "keys are independent")
}
