package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"dietboard/internal/config"
	"dietboard/internal/db"
	"dietboard/internal/db/mock"
	applog "dietboard/internal/log"
	"dietboard/internal/server"
)

// serverLifecycle is the slice of *server.Server that run depends on.
type serverLifecycle interface {
	Start() error
	Stop() error
}

// Seams for tests.
var (
	loadConfigFunc      = config.Load
	setLogLevelFunc     = applog.SetLevel
	newMockDatabaseFunc = mock.New
	configureDatabase   = db.Configure
	newServerFunc       = func(ctx context.Context, cfg server.Config) (serverLifecycle, error) {
		return server.New(ctx, cfg)
	}
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		return sigCh, func() { signal.Stop(sigCh) }
	}
)

func main() {
	// Missing .env is fine; the environment may be set by the deployment.
	_ = godotenv.Load()

	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "invalid configuration", "error", err)
		return 1
	}

	if cfg.Server.LogLevel != "" {
		if err := setLogLevelFunc(cfg.Server.LogLevel); err != nil {
			applog.Error(ctx, "invalid log level", "error", err, "level", cfg.Server.LogLevel)
			return 1
		}
	}

	var database *gorm.DB
	if strings.TrimSpace(cfg.Database.URL) == "" {
		applog.Warn(ctx, "no database url configured, using in-memory mock database")
		database, err = newMockDatabaseFunc(ctx)
	} else {
		database, err = configureDatabase(cfg.Database)
	}
	if err != nil {
		applog.Error(ctx, "database initialization failed", "error", err)
		return 1
	}

	srv, err := newServerFunc(ctx, server.Config{
		Addr: cfg.Server.Addr,
		Session: server.SessionConfig{
			Lifetime: cfg.Server.SessionLifetime,
		},
		Database:       database,
		SearchLimit:    cfg.Search.Limit,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})
	if err != nil {
		applog.Error(ctx, "server initialization failed", "error", err)
		return 1
	}

	startErr := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr)
		startErr <- srv.Start()
	}()

	shutdownCh, unsubscribe := subscribeShutdownSig()
	defer unsubscribe()

	select {
	case err := <-startErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
	case <-shutdownCh:
		applog.Info(ctx, "shutting down http server")
		if err := srv.Stop(); err != nil {
			applog.Error(ctx, "graceful shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}
