package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every server-level option plus the per-service generation
// settings consumed by the pipeline at construction time. Nothing in the
// runtime reads ambient globals; the orchestrator receives this snapshot.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	APIKeys  APIKeysConfig  `koanf:"api_keys"`
	Services ServicesConfig `koanf:"services"`
	Kural    KuralConfig    `koanf:"kural"`
}

// ServerConfig collects the bootstrap knobs for the HTTP listener and telemetry.
type ServerConfig struct {
	Listen    ListenConfig    `koanf:"listen"`
	Logging   LoggingConfig   `koanf:"logging"`
	Templates TemplatesConfig `koanf:"templates"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TemplatesConfig captures the sandbox root for fallback story templates.
type TemplatesConfig struct {
	TemplatesFolder string `koanf:"templates_folder"`
}

// APIKeysConfig carries credentials for the external generation providers.
type APIKeysConfig struct {
	OpenAI     string `koanf:"openai"`
	Stability  string `koanf:"stability"`
	Leonardo   string `koanf:"leonardo"`
	ElevenLabs string `koanf:"elevenlabs"`
}

// ServicesConfig groups the per-stage service settings.
type ServicesConfig struct {
	Cache           CacheConfig           `koanf:"cache"`
	TextGeneration  TextGenerationConfig  `koanf:"text_generation"`
	ImageGeneration ImageGenerationConfig `koanf:"image_generation"`
	AudioGeneration AudioGenerationConfig `koanf:"audio_generation"`
	VideoGeneration VideoGenerationConfig `koanf:"video_generation"`
	Pipeline        PipelineConfig        `koanf:"pipeline"`
	History         HistoryConfig         `koanf:"history"`
}

// CacheConfig bounds the shared artifact cache.
type CacheConfig struct {
	EnableCaching   bool             `koanf:"enable_caching"`
	CacheDir        string           `koanf:"cache_dir"`
	MaxCacheSizeMB  int              `koanf:"max_cache_size_mb"`
	CacheExpiryDays int              `koanf:"cache_expiry_days"`
	Backend         string           `koanf:"backend"`
	Redis           RedisCacheConfig `koanf:"redis"`
}

// TTL converts the day-denominated expiry into a duration.
func (c CacheConfig) TTL() time.Duration {
	if c.CacheExpiryDays <= 0 {
		return 0
	}
	return time.Duration(c.CacheExpiryDays) * 24 * time.Hour
}

// MaxSizeBytes converts the megabyte budget into bytes.
func (c CacheConfig) MaxSizeBytes() int64 {
	if c.MaxCacheSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxCacheSizeMB) * 1024 * 1024
}

type RedisCacheConfig struct {
	Address  string              `koanf:"address"`
	Username string              `koanf:"username"`
	Password string              `koanf:"password"`
	DB       int                 `koanf:"db"`
	TLS      RedisTLSCacheConfig `koanf:"tls"`
}

type RedisTLSCacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"ca_file"`
}

// TextGenerationConfig selects the story provider and its sampling knobs.
type TextGenerationConfig struct {
	Provider           string  `koanf:"provider"`
	Model              string  `koanf:"model"`
	Temperature        float64 `koanf:"temperature"`
	MaxTokens          int     `koanf:"max_tokens"`
	FallbackToTemplate bool    `koanf:"fallback_to_template"`
}

// ImageGenerationConfig selects the scene image provider.
type ImageGenerationConfig struct {
	Provider              string `koanf:"provider"`
	Model                 string `koanf:"model"`
	ImageSize             string `koanf:"image_size"`
	SceneCount            int    `koanf:"scene_count"`
	Style                 string `koanf:"style"`
	TimePeriod            string `koanf:"time_period"`
	FallbackToPlaceholder bool   `koanf:"fallback_to_placeholder"`
	OutputDir             string `koanf:"output_dir"`
}

// AudioGenerationConfig selects the narration provider and per-language voices.
type AudioGenerationConfig struct {
	Provider       string `koanf:"provider"`
	TamilVoiceID   string `koanf:"tamil_voice_id"`
	EnglishVoiceID string `koanf:"english_voice_id"`
	OutputDir      string `koanf:"output_dir"`
}

// VideoGenerationConfig shapes the final video assembly call.
type VideoGenerationConfig struct {
	Endpoint          string `koanf:"endpoint"`
	DefaultFPS        int    `koanf:"default_fps"`
	DefaultDuration   int    `koanf:"default_duration"`
	AddMusic          bool   `koanf:"add_music"`
	DefaultTransition string `koanf:"default_transition"`
	EnableEffects     bool   `koanf:"enable_effects"`
	SubtitleStyle     string `koanf:"subtitle_style"`
	OutputDir         string `koanf:"output_dir"`
	MusicPath         string `koanf:"music_path"`
}

// PipelineConfig carries cross-stage tuning: timeouts and the single-retry backoff.
type PipelineConfig struct {
	RequestTimeoutSeconds  int `koanf:"request_timeout_seconds"`
	ProviderTimeoutSeconds int `koanf:"provider_timeout_seconds"`
	RetryBackoffMillis     int `koanf:"retry_backoff_millis"`
}

// RequestTimeout returns the per-request deadline, zero meaning none.
func (c PipelineConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ProviderTimeout returns the per-provider-call deadline.
func (c PipelineConfig) ProviderTimeout() time.Duration {
	if c.ProviderTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// RetryBackoff returns the pause before the single transient retry.
func (c PipelineConfig) RetryBackoff() time.Duration {
	if c.RetryBackoffMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

// HistoryConfig controls the sqlite generation log.
type HistoryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	DatabasePath string `koanf:"database_path"`
}

// KuralConfig locates the verse corpus.
type KuralConfig struct {
	CorpusFile string `koanf:"corpus_file"`
	Watch      bool   `koanf:"watch"`
}

// Validate enforces invariants that keep the pipeline predictable before serving traffic.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	backend := strings.TrimSpace(strings.ToLower(c.Services.Cache.Backend))
	switch backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Services.Cache.Redis.Address) == "" {
			return errors.New("config: services.cache.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: services.cache.backend unsupported: %s", c.Services.Cache.Backend)
	}
	if c.Services.Cache.MaxCacheSizeMB < 0 {
		return fmt.Errorf("config: services.cache.max_cache_size_mb invalid: %d", c.Services.Cache.MaxCacheSizeMB)
	}
	if c.Services.Cache.CacheExpiryDays < 0 {
		return fmt.Errorf("config: services.cache.cache_expiry_days invalid: %d", c.Services.Cache.CacheExpiryDays)
	}
	switch strings.ToLower(c.Services.TextGeneration.Provider) {
	case "", "openai":
	default:
		return fmt.Errorf("config: services.text_generation.provider unsupported: %s", c.Services.TextGeneration.Provider)
	}
	switch strings.ToLower(c.Services.ImageGeneration.Provider) {
	case "", "openai", "stability", "leonardo":
	default:
		return fmt.Errorf("config: services.image_generation.provider unsupported: %s", c.Services.ImageGeneration.Provider)
	}
	switch strings.ToLower(c.Services.AudioGeneration.Provider) {
	case "", "gtts", "elevenlabs":
	default:
		return fmt.Errorf("config: services.audio_generation.provider unsupported: %s", c.Services.AudioGeneration.Provider)
	}
	if n := c.Services.ImageGeneration.SceneCount; n < 0 || n > 10 {
		return fmt.Errorf("config: services.image_generation.scene_count invalid: %d", n)
	}
	if c.Services.VideoGeneration.DefaultFPS < 0 {
		return fmt.Errorf("config: services.video_generation.default_fps invalid: %d", c.Services.VideoGeneration.DefaultFPS)
	}
	if c.Services.History.Enabled && strings.TrimSpace(c.Services.History.DatabasePath) == "" {
		return errors.New("config: services.history.database_path required when history is enabled")
	}
	return nil
}

// DefaultConfig returns the baseline values that align with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Templates: TemplatesConfig{
				TemplatesFolder: "./templates",
			},
		},
		Services: ServicesConfig{
			Cache: CacheConfig{
				EnableCaching:   true,
				MaxCacheSizeMB:  1000,
				CacheExpiryDays: 30,
				Backend:         "memory",
			},
			TextGeneration: TextGenerationConfig{
				Provider:           "openai",
				Model:              "gpt-4",
				Temperature:        0.7,
				MaxTokens:          1000,
				FallbackToTemplate: true,
			},
			ImageGeneration: ImageGenerationConfig{
				Provider:              "openai",
				Model:                 "dall-e-3",
				ImageSize:             "1024x1024",
				SceneCount:            3,
				Style:                 "photorealistic",
				TimePeriod:            "modern",
				FallbackToPlaceholder: true,
			},
			AudioGeneration: AudioGenerationConfig{
				Provider: "gtts",
			},
			VideoGeneration: VideoGenerationConfig{
				DefaultFPS:        24,
				DefaultDuration:   45,
				AddMusic:          true,
				DefaultTransition: "fade",
				EnableEffects:     true,
				SubtitleStyle:     "default",
			},
			Pipeline: PipelineConfig{
				RequestTimeoutSeconds:  120,
				ProviderTimeoutSeconds: 30,
				RetryBackoffMillis:     500,
			},
		},
		Kural: KuralConfig{
			CorpusFile: "./kural_data/kural_1330.json",
		},
	}
}
