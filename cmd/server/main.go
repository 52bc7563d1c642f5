package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eldtechnologies/agentslack/internal/api"
	"github.com/eldtechnologies/agentslack/internal/api/middleware"
	"github.com/eldtechnologies/agentslack/internal/config"
	"github.com/eldtechnologies/agentslack/internal/inbox"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider"
	"github.com/eldtechnologies/agentslack/internal/provider/memory"
	"github.com/eldtechnologies/agentslack/internal/provider/slackapi"
	"github.com/eldtechnologies/agentslack/internal/registry"
	"github.com/eldtechnologies/agentslack/internal/store"
	"github.com/eldtechnologies/agentslack/internal/tools"
)

// memoryPoolSize is the number of identities seeded for the in-memory
// provider when no directory is configured.
const memoryPoolSize = 8

func main() {
	port := pflag.String("port", "", "listen port (overrides PORT)")
	env := pflag.String("env", "", "environment: development or production (overrides ENV)")
	logLevel := pflag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	pflag.Parse()

	for key, val := range map[string]string{"PORT": *port, "ENV": *env, "LOG_LEVEL": *logLevel} {
		if val != "" {
			os.Setenv(key, val)
		}
	}

	cfg := config.Load()
	logger := newLogger(cfg)
	ctx := context.Background()

	dir, closeDir, err := openDirectory(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("directory store failed")
	}
	defer closeDir()

	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	directory, err := loadDirectory(ctx, cfg, dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading directory failed")
	}

	dial, world := newProvider(cfg)

	reg := registry.New(registry.Config{
		Directory: directory,
		Dial:      dial,
		World:     world,
		Logger:    logger,
	})
	eng := inbox.New(reg, inbox.Config{
		HistoryLimit:     cfg.HistoryLimit,
		SweepConcurrency: cfg.SweepConcurrency,
		Logger:           logger,
	})

	var recorders []store.Recorder
	if dir != nil {
		recorders = append(recorders, dir)
	}
	if redisStore != nil {
		recorders = append(recorders, redisStore)
	}
	router := tools.NewRouter(tools.WithLogger(logger), tools.WithRecorder(store.Tee(recorders...)))
	if err := router.RegisterAgentTools(eng, reg); err != nil {
		logger.Fatal().Err(err).Msg("registering tools failed")
	}

	handler := api.NewRouter(logger, api.Deps{
		Registry:     reg,
		Tools:        router,
		Directory:    dir,
		Redis:        redisStore,
		AdminKeyHash: cfg.AdminKeyHash,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
			ToolRPS:          cfg.RateLimitRPS,
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.ProviderTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("provider", cfg.Provider).
			Int("pool", len(directory.Apps)).
			Int("humans", len(directory.Humans)).
			Msg("starting agentslack server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// openDirectory picks the directory store: Postgres, then a YAML file, then
// SQLite. It returns a nil store when none is configured.
func openDirectory(ctx context.Context, cfg *config.Config) (store.DirectoryStore, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case cfg.DirectoryFile != "":
		s, err := store.NewFileStore(cfg.DirectoryFile)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case cfg.SQLitePath != "":
		s, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, func() {}, nil
}

// loadDirectory reads the identity pool and human roster. Users listed in
// ALWAYS_INCLUDE_USERS join the roster as humans so that direct
// conversations count them as members.
func loadDirectory(ctx context.Context, cfg *config.Config, dir store.DirectoryStore) (registry.Directory, error) {
	var d registry.Directory
	if dir != nil {
		var err error
		if d.Apps, err = dir.ListSlackApps(ctx); err != nil {
			return d, err
		}
		if d.Humans, err = dir.ListHumans(ctx); err != nil {
			return d, err
		}
	}

	if len(d.Apps) == 0 {
		if cfg.Provider != config.ProviderMemory {
			return d, fmt.Errorf("directory has no slack apps")
		}
		for i := 1; i <= memoryPoolSize; i++ {
			d.Apps = append(d.Apps, models.SlackApp{UserID: fmt.Sprintf("UAPP%02d", i)})
		}
	}

	known := make(map[string]bool, len(d.Humans))
	for _, h := range d.Humans {
		known[h.UserID] = true
	}
	for _, uid := range cfg.AlwaysIncludeUsers {
		if !known[uid] {
			d.Humans = append(d.Humans, models.Human{ID: uid, UserID: uid})
			known[uid] = true
		}
	}
	return d, nil
}

func newProvider(cfg *config.Config) (provider.Dialer, provider.Client) {
	if cfg.Provider == config.ProviderSlack {
		opts := slackapi.Options{Timeout: cfg.ProviderTimeout, APIURL: cfg.SlackAPIURL}
		var world provider.Client
		if cfg.SlackWorldToken != "" {
			world = provider.Instrument(slackapi.New(models.SlackApp{
				UserID: cfg.SlackWorldUserID,
				Token:  cfg.SlackWorldToken,
			}, opts))
		}
		return provider.InstrumentDialer(slackapi.Dialer(opts)), world
	}

	ws := memory.NewWorkspace()
	ws.AddConversation("general", false, "UWORLD")
	return provider.InstrumentDialer(ws.Dialer()), provider.Instrument(ws.Client("UWORLD"))
}
