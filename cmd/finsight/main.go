package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finsight-ai/finsight/internal/api"
	"github.com/finsight-ai/finsight/internal/api/handlers"
	"github.com/finsight-ai/finsight/internal/cache"
	"github.com/finsight-ai/finsight/internal/gate"
	"github.com/finsight-ai/finsight/internal/invoker"
	"github.com/finsight-ai/finsight/internal/observability"
	"github.com/finsight-ai/finsight/internal/scheduler"
	"github.com/finsight-ai/finsight/internal/session"
	"github.com/finsight-ai/finsight/pkg/config"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	configFile = flag.String("config", getEnv("CONFIG_FILE", ""), "Configuration file")
	listenAddr = flag.String("addr", "", "HTTP listen address (overrides config)")
	logLevel   = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level")
)

func main() {
	flag.Parse()
	initLogging(*logLevel)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *listenAddr != "" {
		cfg.Server.Addr = *listenAddr
	}
	cfg.Export()

	log.Info().Str("version", Version).Str("addr", cfg.Server.Addr).Msg("starting finsight")

	if err := observability.InitFromEnv(); err != nil {
		log.Warn().Err(err).Msg("tracing init failed, continuing without")
	}
	observability.InitMetrics()

	store := session.NewStore(session.WithIdleTimeout(cfg.Session.IdleTimeout))

	dataCache, err := buildCache(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cache init failed")
	}
	defer func() { _ = dataCache.Close() }()

	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())
	healthChecker.RegisterCheck(observability.CacheCheck(dataCache.Ping))

	g := gate.New(cfg.Scheduler.MaxConcurrentCalls)
	inv := invoker.New(g, invoker.Config{
		DefaultModel: cfg.DefaultModel,
		Temperature:  cfg.Temperature,
		MaxRetries:   cfg.Scheduler.MaxRetries,
	})

	sched, err := scheduler.New(store, inv, scheduler.Config{
		ChunkSize:       cfg.Scheduler.ChunkSize,
		IncludeOptional: cfg.Scheduler.IncludeOptional,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline init failed")
	}
	log.Info().
		Int("agents", sched.TotalAgents()).
		Int("stages", sched.StageCount()).
		Int("gate_capacity", g.Capacity()).
		Msg("pipeline ready")

	// Periodic eviction of idle sessions; Create also sweeps lazily.
	sweeper := cron.New()
	_, err = sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.Session.SweepInterval), func() {
		if n := store.Sweep(); n > 0 {
			observability.RecordSessionsSwept(n)
			log.Info().Int("evicted", n).Msg("session sweep")
		}
		observability.SetSessionsActive(store.Len())
	})
	if err != nil {
		log.Fatal().Err(err).Msg("sweep schedule failed")
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handlers.New(store, sched)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Error().Err(err).Msg("HTTP server error")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := observability.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown error")
	}

	log.Info().Msg("finsight stopped")
}

func initLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildCache prefers Redis and falls back to file-only storage when no
// Redis address is configured or the connection fails at startup. The
// file backend also serves as the runtime fallback for a Redis outage.
func buildCache(cfg *config.Config) (*cache.Cache, error) {
	fileBackend, err := cache.NewFileBackend(cfg.Cache.FileDir)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.RedisAddr == "" {
		log.Info().Msg("cache: file backend only")
		return cache.New(fileBackend, nil), nil
	}

	redisBackend, err := cache.NewRedisBackend(cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("cache: redis unavailable, using file backend")
		return cache.New(fileBackend, nil), nil
	}

	log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("cache: redis with file fallback")
	return cache.New(redisBackend, fileBackend), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
