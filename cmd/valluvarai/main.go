// Command valluvarai runs the verse-story generation service, either as the
// HTTP server or as a one-shot generation from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/valluvarai/valluvarai/internal/config"
	"github.com/valluvarai/valluvarai/internal/history"
	"github.com/valluvarai/valluvarai/internal/kural"
	"github.com/valluvarai/valluvarai/internal/logging"
	"github.com/valluvarai/valluvarai/internal/metrics"
	"github.com/valluvarai/valluvarai/internal/pipeline"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/cache"
	"github.com/valluvarai/valluvarai/internal/pipeline/provider"
	"github.com/valluvarai/valluvarai/internal/pipeline/stage"
	"github.com/valluvarai/valluvarai/internal/prompts"
	"github.com/valluvarai/valluvarai/internal/server"
	"github.com/valluvarai/valluvarai/internal/templates"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		envPrefix  string
	)
	root := &cobra.Command{
		Use:           "valluvarai",
		Short:         "Thirukkural verse-story generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&envPrefix, "env-prefix", "VALLUVARAI", "environment variable prefix")

	root.AddCommand(newServeCommand(&configFile, &envPrefix))
	root.AddCommand(newGenerateCommand(&configFile, &envPrefix))
	return root
}

func newServeCommand(configFile, envPrefix *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, *configFile, *envPrefix)
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.cfg.Kural.Watch {
				watcher, err := kural.WatchCorpus(ctx, rt.cfg.Kural.CorpusFile, func(verses []kural.Verse) {
					rt.retriever.Reload(verses)
					rt.logger.Info("corpus reloaded", slog.Int("verses", len(verses)))
				}, func(err error) {
					rt.logger.Error("corpus watcher error", slog.Any("error", err))
				})
				if err != nil {
					rt.logger.Warn("corpus watcher setup failed", slog.Any("error", err))
				} else {
					defer watcher.Stop()
				}
			}

			var log server.GenerationLog
			if rt.hist != nil {
				log = rt.hist
			}
			handler := server.NewHandler(rt.orch, log, rt.logger, rt.recorder.Handler())
			srv, err := server.New(rt.cfg, rt.logger, handler)
			if err != nil {
				return err
			}
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rt.logger.Info("server shutdown complete")
			return nil
		},
	}
}

func newGenerateCommand(configFile, envPrefix *string) *cobra.Command {
	var (
		keyword    string
		verseID    int
		language   string
		images     bool
		narration  bool
		video      bool
		bestEffort bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation and print the outcome as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, *configFile, *envPrefix)
			if err != nil {
				return err
			}
			defer rt.close()

			outcome, err := rt.orch.Generate(ctx, pipeline.GenerationRequest{
				Keyword:          keyword,
				VerseID:          verseID,
				Language:         artifact.NormalizeLanguage(language),
				IncludeImages:    images,
				IncludeNarration: narration,
				IncludeVideo:     video,
				BestEffort:       bestEffort,
			})
			if err != nil {
				return err
			}
			if rt.hist != nil {
				if herr := rt.hist.Append(ctx, keyword, outcome); herr != nil {
					rt.logger.Warn("history append failed", slog.Any("error", herr))
				}
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(outcome)
		},
	}
	cmd.Flags().StringVar(&keyword, "keyword", "", "keyword to match a verse against")
	cmd.Flags().IntVar(&verseID, "verse-id", 0, "generate for a specific verse id")
	cmd.Flags().StringVar(&language, "language", "both", "output language: ta, en or both")
	cmd.Flags().BoolVar(&images, "images", false, "generate scene images")
	cmd.Flags().BoolVar(&narration, "narration", false, "generate narration audio")
	cmd.Flags().BoolVar(&video, "video", false, "assemble the final video")
	cmd.Flags().BoolVar(&bestEffort, "best-effort", false, "keep partial results on timeout")
	return cmd
}

// appRuntime holds everything the commands share once configuration is loaded.
type appRuntime struct {
	cfg       config.Config
	logger    *slog.Logger
	recorder  *metrics.Recorder
	orch      *pipeline.Orchestrator
	retriever *kural.Retriever
	hist      *history.Store
	cache     cache.ArtifactCache
}

func (rt *appRuntime) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rt.cache.Close(shutdownCtx); err != nil {
		rt.logger.Error("cache shutdown failed", slog.Any("error", err))
	}
	if rt.hist != nil {
		if err := rt.hist.Close(); err != nil {
			rt.logger.Error("history shutdown failed", slog.Any("error", err))
		}
	}
}

func buildRuntime(ctx context.Context, configFile, envPrefix string) (*appRuntime, error) {
	loader := config.NewLoader(envPrefix, configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		return nil, fmt.Errorf("configure logger: %w", err)
	}

	recorder := metrics.NewRecorder(prometheus.NewRegistry())

	artifacts, err := buildArtifactCache(cfg.Services.Cache, logger)
	if err != nil {
		return nil, err
	}

	verses, err := kural.LoadCorpus(cfg.Kural.CorpusFile)
	if err != nil {
		return nil, err
	}
	retriever := kural.NewRetriever(verses)
	logger.Info("corpus loaded", slog.Int("verses", len(verses)))

	pipelineCfg := cfg.Services.Pipeline
	gateway := provider.NewGateway(logger, recorder, pipelineCfg.ProviderTimeout(), pipelineCfg.RetryBackoff())
	rt := stage.NewRuntime(artifacts, cfg.Services.Cache.TTL(), recorder, logger)

	text := buildTextProvider(cfg, logger)
	image := buildImageProvider(cfg, logger)
	audioPrimary, audioFallback := buildAudioProviders(cfg)
	video := provider.NewVideoAPI(cfg.Services.VideoGeneration.Endpoint, nil)

	renderer := templates.NewRenderer(cfg.Server.Templates.TemplatesFolder)
	builder := prompts.NewBuilder(cfg.Services.ImageGeneration.Style, cfg.Services.ImageGeneration.TimePeriod)

	orch := pipeline.NewOrchestrator(
		retriever,
		stage.NewStoryExecutor(rt, gateway, text, renderer, cfg.Services.TextGeneration),
		stage.NewImageExecutor(rt, gateway, image, builder, cfg.Services.ImageGeneration),
		stage.NewNarrationExecutor(rt, gateway, audioPrimary, audioFallback, cfg.Services.AudioGeneration),
		stage.NewVideoExecutor(rt, gateway, video, cfg.Services.VideoGeneration),
		recorder, logger, pipelineCfg.RequestTimeout(),
	)

	var hist *history.Store
	if cfg.Services.History.Enabled {
		hist, err = history.Open(cfg.Services.History.DatabasePath)
		if err != nil {
			return nil, err
		}
	}

	return &appRuntime{
		cfg:       cfg,
		logger:    logger,
		recorder:  recorder,
		orch:      orch,
		retriever: retriever,
		hist:      hist,
		cache:     artifacts,
	}, nil
}

func buildArtifactCache(cfg config.CacheConfig, logger *slog.Logger) (cache.ArtifactCache, error) {
	if !cfg.EnableCaching {
		logger.Info("artifact caching disabled")
		return cache.NewDisabled(), nil
	}
	switch strings.ToLower(cfg.Backend) {
	case "redis":
		c, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: cache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("build redis cache: %w", err)
		}
		logger.Info("artifact cache ready", slog.String("backend", "redis"))
		return c, nil
	default:
		logger.Info("artifact cache ready", slog.String("backend", "memory"))
		return cache.NewMemory(cfg.TTL(), cfg.MaxSizeBytes()), nil
	}
}

func buildTextProvider(cfg config.Config, logger *slog.Logger) provider.TextProvider {
	if cfg.APIKeys.OpenAI == "" {
		logger.Warn("no openai api key configured, story generation will use templates")
		return nil
	}
	return provider.NewOpenAIText(cfg.APIKeys.OpenAI)
}

func buildImageProvider(cfg config.Config, logger *slog.Logger) provider.ImageProvider {
	imageCfg := cfg.Services.ImageGeneration
	switch strings.ToLower(imageCfg.Provider) {
	case "stability":
		if cfg.APIKeys.Stability == "" {
			logger.Warn("stability selected but no api key configured")
			return nil
		}
		return provider.NewStability(cfg.APIKeys.Stability, imageCfg.Model, imageCfg.OutputDir, nil)
	case "leonardo":
		if cfg.APIKeys.Leonardo == "" {
			logger.Warn("leonardo selected but no api key configured")
			return nil
		}
		return provider.NewLeonardo(cfg.APIKeys.Leonardo, imageCfg.Model, nil)
	default:
		if cfg.APIKeys.OpenAI == "" {
			logger.Warn("no openai api key configured, scene images will use placeholders")
			return nil
		}
		return provider.NewOpenAIImage(cfg.APIKeys.OpenAI)
	}
}

func buildAudioProviders(cfg config.Config) (primary, fallback provider.AudioProvider) {
	audioCfg := cfg.Services.AudioGeneration
	gtts := provider.NewGTTS(audioCfg.OutputDir, nil)
	if strings.ToLower(audioCfg.Provider) == "elevenlabs" && cfg.APIKeys.ElevenLabs != "" {
		return provider.NewElevenLabs(cfg.APIKeys.ElevenLabs, audioCfg.OutputDir, nil), gtts
	}
	return gtts, nil
}
