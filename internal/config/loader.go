package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot using the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		// Double underscores signal a nested path
		// (SERVICES__CACHE__MAX_CACHE_SIZE_MB -> services.cache.max_cache_size_mb).
		transform := func(s string) string {
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return kjson.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return yaml.Parser()
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":  cfg.Server.Logging.Level,
				"format": cfg.Server.Logging.Format,
			},
			"templates": map[string]any{
				"templates_folder": cfg.Server.Templates.TemplatesFolder,
			},
		},
		"api_keys": map[string]any{
			"openai":     cfg.APIKeys.OpenAI,
			"stability":  cfg.APIKeys.Stability,
			"leonardo":   cfg.APIKeys.Leonardo,
			"elevenlabs": cfg.APIKeys.ElevenLabs,
		},
		"services": map[string]any{
			"cache": map[string]any{
				"enable_caching":    cfg.Services.Cache.EnableCaching,
				"cache_dir":         cfg.Services.Cache.CacheDir,
				"max_cache_size_mb": cfg.Services.Cache.MaxCacheSizeMB,
				"cache_expiry_days": cfg.Services.Cache.CacheExpiryDays,
				"backend":           cfg.Services.Cache.Backend,
				"redis": map[string]any{
					"address":  cfg.Services.Cache.Redis.Address,
					"username": cfg.Services.Cache.Redis.Username,
					"password": cfg.Services.Cache.Redis.Password,
					"db":       cfg.Services.Cache.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Services.Cache.Redis.TLS.Enabled,
						"ca_file": cfg.Services.Cache.Redis.TLS.CAFile,
					},
				},
			},
			"text_generation": map[string]any{
				"provider":             cfg.Services.TextGeneration.Provider,
				"model":                cfg.Services.TextGeneration.Model,
				"temperature":          cfg.Services.TextGeneration.Temperature,
				"max_tokens":           cfg.Services.TextGeneration.MaxTokens,
				"fallback_to_template": cfg.Services.TextGeneration.FallbackToTemplate,
			},
			"image_generation": map[string]any{
				"provider":                cfg.Services.ImageGeneration.Provider,
				"model":                   cfg.Services.ImageGeneration.Model,
				"image_size":              cfg.Services.ImageGeneration.ImageSize,
				"scene_count":             cfg.Services.ImageGeneration.SceneCount,
				"style":                   cfg.Services.ImageGeneration.Style,
				"time_period":             cfg.Services.ImageGeneration.TimePeriod,
				"fallback_to_placeholder": cfg.Services.ImageGeneration.FallbackToPlaceholder,
				"output_dir":              cfg.Services.ImageGeneration.OutputDir,
			},
			"audio_generation": map[string]any{
				"provider":         cfg.Services.AudioGeneration.Provider,
				"tamil_voice_id":   cfg.Services.AudioGeneration.TamilVoiceID,
				"english_voice_id": cfg.Services.AudioGeneration.EnglishVoiceID,
				"output_dir":       cfg.Services.AudioGeneration.OutputDir,
			},
			"video_generation": map[string]any{
				"endpoint":           cfg.Services.VideoGeneration.Endpoint,
				"default_fps":        cfg.Services.VideoGeneration.DefaultFPS,
				"default_duration":   cfg.Services.VideoGeneration.DefaultDuration,
				"add_music":          cfg.Services.VideoGeneration.AddMusic,
				"default_transition": cfg.Services.VideoGeneration.DefaultTransition,
				"enable_effects":     cfg.Services.VideoGeneration.EnableEffects,
				"subtitle_style":     cfg.Services.VideoGeneration.SubtitleStyle,
				"output_dir":         cfg.Services.VideoGeneration.OutputDir,
				"music_path":         cfg.Services.VideoGeneration.MusicPath,
			},
			"pipeline": map[string]any{
				"request_timeout_seconds":  cfg.Services.Pipeline.RequestTimeoutSeconds,
				"provider_timeout_seconds": cfg.Services.Pipeline.ProviderTimeoutSeconds,
				"retry_backoff_millis":     cfg.Services.Pipeline.RetryBackoffMillis,
			},
			"history": map[string]any{
				"enabled":       cfg.Services.History.Enabled,
				"database_path": cfg.Services.History.DatabasePath,
			},
		},
		"kural": map[string]any{
			"corpus_file": cfg.Kural.CorpusFile,
			"watch":       cfg.Kural.Watch,
		},
	}
}
