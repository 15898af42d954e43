package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/rehearse/internal/anthropic"
	"github.com/MikeSquared-Agency/rehearse/internal/api"
	"github.com/MikeSquared-Agency/rehearse/internal/audio"
	"github.com/MikeSquared-Agency/rehearse/internal/bus"
	"github.com/MikeSquared-Agency/rehearse/internal/config"
	"github.com/MikeSquared-Agency/rehearse/internal/gemini"
	"github.com/MikeSquared-Agency/rehearse/internal/llm"
	"github.com/MikeSquared-Agency/rehearse/internal/metrics"
	"github.com/MikeSquared-Agency/rehearse/internal/rehearsal"
	"github.com/MikeSquared-Agency/rehearse/internal/report"
	"github.com/MikeSquared-Agency/rehearse/internal/slack"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
	"github.com/MikeSquared-Agency/rehearse/internal/store/postgres"
	"github.com/MikeSquared-Agency/rehearse/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("rehearse starting", "port", cfg.Port, "llm", cfg.LLMProvider, "store", cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Model provider
	client, speech, err := openLLM(ctx, cfg)
	if err != nil {
		slog.Error("failed to create llm client", "error", err)
		os.Exit(1)
	}
	client = m.WrapClient(client)

	// Store
	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Report rubric
	rubric := report.DefaultRubric()
	if cfg.RubricPath != "" {
		rubric, err = report.LoadRubric(cfg.RubricPath)
		if err != nil {
			slog.Error("failed to load rubric", "path", cfg.RubricPath, "error", err)
			os.Exit(1)
		}
		slog.Info("rubric loaded", "path", cfg.RubricPath)
	}
	reports := report.New(client, store.Recorder{Store: st}, rubric, slog.Default())

	cache, err := audio.NewCache(cfg.SpeechCacheSize)
	if err != nil {
		slog.Error("failed to create audio cache", "error", err)
		os.Exit(1)
	}

	// NATS (optional)
	var publisher bus.Publisher = bus.Nop{}
	if cfg.NatsURL != "" {
		busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer busClient.Close()
		publisher = busClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, lifecycle events disabled")
	}

	// Slack digest (optional)
	var notifier rehearsal.Notifier
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	mgr := rehearsal.New(rehearsal.Deps{
		LLM:         client,
		Reports:     reports,
		Store:       st,
		Audio:       cache,
		Bus:         publisher,
		Notifier:    notifier,
		Metrics:     m,
		Logger:      slog.Default(),
		Temperature: float32(cfg.ChatTemperature),
		Speech:      cfg.SpeechEnabled && speech,
	})

	// HTTP API
	srv := api.NewServer(cfg.Port, api.Deps{
		Manager:  mgr,
		Store:    st,
		Metrics:  m,
		APIToken: cfg.APIToken,
		Logger:   slog.Default(),
	})
	slog.Info("rehearse ready", "port", cfg.Port)

	// Serve until SIGINT/SIGTERM, then drain HTTP before closing live rehearsals.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		slog.Error("HTTP server error", "error", err)
	}

	mgr.Close()
	slog.Info("rehearse stopped")
}

// openLLM builds the configured provider and reports whether it can speak.
func openLLM(ctx context.Context, cfg config.Config) (llm.Client, bool, error) {
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, false, fmt.Errorf("GEMINI_API_KEY is required")
		}
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			ChatModel:   cfg.ChatModel,
			ReportModel: cfg.ReportModel,
			TTSModel:    cfg.TTSModel,
		}, slog.Default())
		if err != nil {
			return nil, false, err
		}
		slog.Info("gemini client ready", "chat_model", cfg.ChatModel, "report_model", cfg.ReportModel)
		return c, true, nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, false, fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), false, nil
	}
	return nil, false, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "file":
		s, err := store.NewFileStore(cfg.StorePath, slog.Default())
		if err != nil {
			return nil, err
		}
		slog.Info("file store ready", "path", s.Path())
		return s, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		s, err := postgres.New(ctx, cfg.DatabaseURL, slog.Default())
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		slog.Info("database connected")
		return s, nil
	case "redis":
		s, err := redisstore.New(ctx, cfg.RedisURL, slog.Default())
		if err != nil {
			return nil, err
		}
		slog.Info("redis connected")
		return s, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
