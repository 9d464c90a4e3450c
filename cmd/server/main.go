// Package main is the composition root for the tourism conversational
// core: it wires every component in dependency order and drives a single
// long-lived Orchestrator behind a minimal operator-facing shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Omarrvv/final-bot-sub005/internal/analytics"
	"github.com/Omarrvv/final-bot-sub005/internal/batch"
	"github.com/Omarrvv/final-bot-sub005/internal/cache"
	"github.com/Omarrvv/final-bot-sub005/internal/config"
	"github.com/Omarrvv/final-bot-sub005/internal/dbcore"
	"github.com/Omarrvv/final-bot-sub005/internal/dialog"
	"github.com/Omarrvv/final-bot-sub005/internal/knowledge"
	"github.com/Omarrvv/final-bot-sub005/internal/nlu"
	"github.com/Omarrvv/final-bot-sub005/internal/orchestrator"
	"github.com/Omarrvv/final-bot-sub005/internal/repository"
	"github.com/Omarrvv/final-bot-sub005/internal/servicehub"
	"github.com/Omarrvv/final-bot-sub005/internal/session"
	applog "github.com/Omarrvv/final-bot-sub005/pkg/logger"
)

const (
	serviceName    = "tourism-conversational-core"
	serviceVersion = "1.0.0"
)

func main() {
	var configPath = flag.String("config", "", "Path to YAML config file")
	var showVersion = flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := applog.New(applog.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(logger)
	logger.Info("starting", "service", serviceName, "version", serviceVersion, "env", cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o, shutdown, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build core", "error", err)
		os.Exit(1)
	}
	defer shutdown()

	logger.Info("core ready; waiting for shutdown signal")
	<-ctx.Done()
	logger.Info("shutdown signal received")
	_ = o
}

// build wires every component in dependency order (§4.10 composition):
// config and logger are already built by main; from there it's redis
// client -> session store -> db pool -> cache -> batch analyzer ->
// repository registry -> service hub -> knowledge base -> nlu pipeline ->
// dialog manager -> templates -> analytics emitter -> orchestrator. The
// returned shutdown func tears down in reverse.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, func(), error) {
	var closers []func()
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		MaxRetries:   cfg.Redis.MaxRetries,
	})
	closers = append(closers, func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis client close failed", "error", err)
		}
	})

	sessionCfg := session.DefaultConfig()
	sessionCfg.SessionTTL = cfg.Session.SessionTTL
	sessionCfg.RememberMeTTL = cfg.Session.RememberMeTTL
	sessionCfg.FallbackCapacity = cfg.Session.FallbackCapacity
	sessionStore, err := session.New(session.NewRedisBackend(redisClient), sessionCfg, logger, nil)
	if err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("building session store: %w", err)
	}

	poolCfg := dbcore.DefaultPoolConfig(cfg.Database.URI)
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	poolCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	pool, err := dbcore.New(poolCfg, logger)
	if err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("building db pool: %w", err)
	}
	if err := pool.Connect(ctx); err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("connecting db pool: %w", err)
	}
	closers = append(closers, func() {
		if err := pool.Close(); err != nil {
			logger.Warn("db pool close failed", "error", err)
		}
	})

	cacheCfg := cache.DefaultConfig()
	cacheCfg.L1Capacity = cfg.Cache.L1Capacity
	cacheCfg.DefaultL2TTL = cfg.Cache.L2TTL
	tieredCache := cache.New(cache.NewRedisBackend(redisClient), cacheCfg, logger)

	analyzer := batch.NewAnalyzer(nil)
	batchExecutor := batch.NewExecutor(pool, analyzer, 100, logger)
	_ = batchExecutor // available to write-side callers; no write path is exercised by the turn lifecycle itself

	defaultLanguage := cfg.NLU.LanguagesSupported[0]
	registry := repository.NewRegistry(pool, tieredCache, analyzer, defaultLanguage, logger)

	hub := servicehub.New(logger)
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		if err := hub.Register("llm", servicehub.NewAnthropicProvider(apiKey), servicehub.LLMServiceConfig()); err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("registering llm provider: %w", err)
		}
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set; RAG answers will degrade to prewritten descriptions")
	}
	if baseURL := os.Getenv("WEATHER_SERVICE_URL"); baseURL != "" {
		if err := hub.Register("weather", servicehub.NewHTTPProvider(baseURL, nil), servicehub.DefaultServiceConfig()); err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("registering weather provider: %w", err)
		}
	}
	if baseURL := os.Getenv("TRANSLATION_SERVICE_URL"); baseURL != "" {
		if err := hub.Register("translation", servicehub.NewHTTPProvider(baseURL, nil), servicehub.DefaultServiceConfig()); err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("registering translation provider: %w", err)
		}
	}

	kb := knowledge.New(registry, hub, nlu.NewHashEmbedder(64), defaultLanguage, logger)

	nluEmbedder := nlu.NewHashEmbedder(64)
	nluPipeline := nlu.New(nlu.Config{
		WorkerPoolSize: cfg.NLU.WorkerPoolSize,
		Prototypes:     nlu.DefaultPrototypes(nluEmbedder),
	}, kb.Resolver(), logger)

	flows, err := dialog.LoadFlowsFromFile(cfg.Dialog.FlowDefinitionPath)
	if err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("loading dialog flows: %w", err)
	}
	dialogRegistry, verrs := dialog.NewRegistry(flows)
	if verrs != nil {
		shutdown()
		return nil, nil, fmt.Errorf("invalid dialog flow definitions: %v", verrs)
	}
	dialogManager := dialog.New(dialogRegistry, logger)

	templates := orchestrator.NewDefaultTemplateStore()
	if templatePath := os.Getenv("RESPONSE_TEMPLATES_PATH"); templatePath != "" {
		loaded, err := orchestrator.LoadTemplatesFromFile(templatePath)
		if err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("loading response templates: %w", err)
		}
		templates = loaded
	}

	ringSink := analytics.NewRingSink(0, logger)
	emitter := analytics.NewEmitter(ringSink, logger)
	closers = append(closers, emitter.Close)

	orchCfg := orchestrator.Config{
		RequestDeadline:    cfg.Dialog.RequestDeadline,
		DefaultLanguage:    defaultLanguage,
		SupportedLanguages: cfg.NLU.LanguagesSupported,
		SlotMaxAge:         cfg.Dialog.SlotExpiryTurns,
	}

	o := orchestrator.New(sessionStore, nluPipeline, dialogManager, kb, hub, templates, emitter, orchCfg, logger)
	return o, shutdown, nil
}
