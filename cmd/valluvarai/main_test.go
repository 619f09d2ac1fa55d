package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/valluvarai/valluvarai/internal/config"
	"github.com/valluvarai/valluvarai/internal/pipeline"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/cache"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewRootCommandWiring(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	require.True(t, names["serve"], "expected serve subcommand")
	require.True(t, names["generate"], "expected generate subcommand")

	require.NotNil(t, root.PersistentFlags().Lookup("config"))
	prefix := root.PersistentFlags().Lookup("env-prefix")
	require.NotNil(t, prefix)
	require.Equal(t, "VALLUVARAI", prefix.DefValue)

	generate, _, err := root.Find([]string{"generate"})
	require.NoError(t, err)
	for _, flag := range []string{"keyword", "verse-id", "language", "images", "narration", "video", "best-effort"} {
		require.NotNil(t, generate.Flags().Lookup(flag), "expected generate flag %q", flag)
	}
}

func TestBuildArtifactCache(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(t *testing.T) config.CacheConfig
		verify func(t *testing.T, c cache.ArtifactCache)
	}{
		{
			name: "disabled caching stores nothing",
			cfg: func(t *testing.T) config.CacheConfig {
				return config.CacheConfig{EnableCaching: false}
			},
			verify: func(t *testing.T, c cache.ArtifactCache) {
				ctx := context.Background()
				require.NoError(t, c.Store(ctx, "k", []byte("v"), time.Minute))
				_, ok, err := c.Lookup(ctx, "k")
				require.NoError(t, err)
				require.False(t, ok)
			},
		},
		{
			name: "defaults to memory",
			cfg: func(t *testing.T) config.CacheConfig {
				return config.CacheConfig{EnableCaching: true, CacheExpiryDays: 1, MaxCacheSizeMB: 1}
			},
			verify: func(t *testing.T, c cache.ArtifactCache) {
				ctx := context.Background()
				require.NoError(t, c.Store(ctx, "k", []byte("v"), time.Minute))
				entry, ok, err := c.Lookup(ctx, "k")
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, []byte("v"), entry.Payload)
			},
		},
		{
			name: "constructs redis cache",
			cfg: func(t *testing.T) config.CacheConfig {
				server, err := miniredis.Run()
				if err != nil {
					if strings.Contains(err.Error(), "operation not permitted") {
						t.Skip("miniredis unavailable in sandbox")
					}
					require.NoError(t, err)
				}
				t.Cleanup(server.Close)
				return config.CacheConfig{
					EnableCaching:   true,
					Backend:         "redis",
					CacheExpiryDays: 1,
					Redis:           config.RedisCacheConfig{Address: server.Addr()},
				}
			},
			verify: func(t *testing.T, c cache.ArtifactCache) {
				ctx := context.Background()
				require.NoError(t, c.Store(ctx, "k", []byte("v"), time.Minute))
				entry, ok, err := c.Lookup(ctx, "k")
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, []byte("v"), entry.Payload)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := buildArtifactCache(tc.cfg(t), newTestLogger())
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close(context.Background()) })
			tc.verify(t, c)
		})
	}
}

func TestBuildProvidersFromConfig(t *testing.T) {
	logger := newTestLogger()

	t.Run("text provider requires a key", func(t *testing.T) {
		require.Nil(t, buildTextProvider(config.Config{}, logger))

		cfg := config.Config{APIKeys: config.APIKeysConfig{OpenAI: "sk-test"}}
		text := buildTextProvider(cfg, logger)
		require.NotNil(t, text)
		require.Equal(t, "openai", text.Name())
	})

	t.Run("image provider follows selection and keys", func(t *testing.T) {
		cfg := config.Config{}
		cfg.Services.ImageGeneration.Provider = "stability"
		require.Nil(t, buildImageProvider(cfg, logger))

		cfg.APIKeys.Stability = "st-test"
		img := buildImageProvider(cfg, logger)
		require.NotNil(t, img)
		require.Equal(t, "stability", img.Name())

		cfg = config.Config{}
		cfg.Services.ImageGeneration.Provider = "leonardo"
		cfg.APIKeys.Leonardo = "leo-test"
		require.Equal(t, "leonardo", buildImageProvider(cfg, logger).Name())

		cfg = config.Config{}
		cfg.APIKeys.OpenAI = "sk-test"
		require.Equal(t, "openai", buildImageProvider(cfg, logger).Name())
	})

	t.Run("audio falls back to gtts", func(t *testing.T) {
		primary, fallback := buildAudioProviders(config.Config{})
		require.Equal(t, "gtts", primary.Name())
		require.Nil(t, fallback)

		cfg := config.Config{APIKeys: config.APIKeysConfig{ElevenLabs: "el-test"}}
		cfg.Services.AudioGeneration.Provider = "elevenlabs"
		primary, fallback = buildAudioProviders(cfg)
		require.Equal(t, "elevenlabs", primary.Name())
		require.NotNil(t, fallback)
		require.Equal(t, "gtts", fallback.Name())
	})
}

func TestGenerateCommandPrintsOutcome(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"generate", "--keyword", "forgiveness", "--env-prefix", "VALLUVARAITEST"})

	require.NoError(t, root.Execute())

	var outcome pipeline.Outcome
	require.NoError(t, json.Unmarshal(out.Bytes(), &outcome))
	require.Equal(t, pipeline.StateCompleted, outcome.State)
	require.NotNil(t, outcome.Story)
	// Without an OpenAI key the story comes from the builtin templates.
	require.Equal(t, artifact.SourcePlaceholder, outcome.Story.Source)
	require.NotEmpty(t, outcome.Story.TextEnglish)
	require.NotEmpty(t, outcome.Story.TextTamil)
	require.Positive(t, outcome.Verse.ID)
}
