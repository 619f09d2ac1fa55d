package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) []string
		wantErr bool
		assert  func(t *testing.T, cfg Config)
	}{
		{
			name:  "returns defaults when no overrides",
			setup: func(t *testing.T) []string { return nil },
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 8080, cfg.Server.Listen.Port)
				require.Equal(t, "gpt-4", cfg.Services.TextGeneration.Model)
				require.Equal(t, 3, cfg.Services.ImageGeneration.SceneCount)
				require.True(t, cfg.Services.Cache.EnableCaching)
			},
		},
		{
			name: "merges file overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.yaml")
				require.NoError(t, os.WriteFile(path, []byte("server:\n  listen:\n    port: 9090\nservices:\n  image_generation:\n    scene_count: 5\n"), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9090, cfg.Server.Listen.Port)
				require.Equal(t, 5, cfg.Services.ImageGeneration.SceneCount)
			},
		},
		{
			name: "prefers env overrides",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.yaml")
				require.NoError(t, os.WriteFile(path, []byte("server:\n  listen:\n    port: 9090\n"), 0o600))
				t.Setenv("VALLUVARAI_SERVER__LISTEN__PORT", "9091")
				t.Setenv("VALLUVARAI_API_KEYS__OPENAI", "sk-test")
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9091, cfg.Server.Listen.Port)
				require.Equal(t, "sk-test", cfg.APIKeys.OpenAI)
			},
		},
		{
			name: "reads json files",
			setup: func(t *testing.T) []string {
				dir := t.TempDir()
				path := filepath.Join(dir, "server.json")
				require.NoError(t, os.WriteFile(path, []byte(`{"services":{"cache":{"max_cache_size_mb":250}}}`), 0o600))
				return []string{path}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 250, cfg.Services.Cache.MaxCacheSizeMB)
			},
		},
		{
			name: "rejects missing file",
			setup: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "absent.yaml")}
			},
			wantErr: true,
		},
		{
			name: "rejects invalid backend",
			setup: func(t *testing.T) []string {
				t.Setenv("VALLUVARAI_SERVICES__CACHE__BACKEND", "memcached")
				return nil
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := tc.setup(t)
			loader := NewLoader("VALLUVARAI", files...)
			cfg, err := loader.Load(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.assert(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() Config { return DefaultConfig() }

	t.Run("defaults pass", func(t *testing.T) {
		cfg := base()
		require.NoError(t, cfg.Validate())
	})

	t.Run("rejects bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Listen.Port = 70000
		require.Error(t, cfg.Validate())
	})

	t.Run("redis backend requires address", func(t *testing.T) {
		cfg := base()
		cfg.Services.Cache.Backend = "redis"
		require.Error(t, cfg.Validate())
		cfg.Services.Cache.Redis.Address = "localhost:6379"
		require.NoError(t, cfg.Validate())
	})

	t.Run("rejects unknown providers", func(t *testing.T) {
		cfg := base()
		cfg.Services.ImageGeneration.Provider = "midjourney"
		require.Error(t, cfg.Validate())

		cfg = base()
		cfg.Services.AudioGeneration.Provider = "polly"
		require.Error(t, cfg.Validate())
	})

	t.Run("rejects excessive scene count", func(t *testing.T) {
		cfg := base()
		cfg.Services.ImageGeneration.SceneCount = 11
		require.Error(t, cfg.Validate())
	})

	t.Run("history needs a database path", func(t *testing.T) {
		cfg := base()
		cfg.Services.History.Enabled = true
		require.Error(t, cfg.Validate())
		cfg.Services.History.DatabasePath = "/tmp/history.db"
		require.NoError(t, cfg.Validate())
	})
}

func TestCacheConfigConversions(t *testing.T) {
	cfg := CacheConfig{MaxCacheSizeMB: 2, CacheExpiryDays: 1}
	require.EqualValues(t, 2*1024*1024, cfg.MaxSizeBytes())
	require.Equal(t, 24*60, int(cfg.TTL().Minutes()))

	zero := CacheConfig{}
	require.Zero(t, zero.MaxSizeBytes())
	require.Zero(t, zero.TTL())
}
