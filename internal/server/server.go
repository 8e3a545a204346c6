package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"dietboard/internal/catalog"
	"dietboard/internal/handlers"
	applog "dietboard/internal/log"
	"dietboard/internal/middleware"
	"dietboard/internal/targets"
)

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr           string
	Session        SessionConfig
	Database       *gorm.DB
	SearchLimit    int
	RateLimitRPS   float64
	RateLimitBurst int
}

// SessionConfig controls session behavior for the HTTP server.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// Server wraps an http.Server and exposes helpers for bootstrapping a
// production-ready web service.
type Server struct {
	config     Config
	httpServer *http.Server
}

// New builds a Server: it loads the nutrient catalog, rehydrates targets,
// configures the session-backed handlers, and assembles the middleware chain.
func New(ctx context.Context, cfg Config) (*Server, error) {
	applog.Debug(ctx, "initializing server",
		"addr", cfg.Addr,
		"sessionLifetime", cfg.Session.Lifetime.String(),
		"sessionCookie", cfg.Session.CookieName,
	)

	sessionCfg := cfg.Session
	if sessionCfg.Lifetime <= 0 {
		sessionCfg.Lifetime = 12 * time.Hour
	}
	if strings.TrimSpace(sessionCfg.CookieName) == "" {
		sessionCfg.CookieName = "dietboard_session"
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = sessionCfg.Lifetime
	sessionManager.Cookie.Name = sessionCfg.CookieName
	sessionManager.Cookie.Domain = sessionCfg.CookieDomain
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = sessionCfg.CookieSecure

	nutrients, err := catalog.LoadNutrients(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	foods := catalog.NewFoodCatalog(cfg.Database)
	targetStore := targets.NewStore(ctx, nutrients, targets.NewPreferenceRepository(cfg.Database))

	searchLimit := cfg.SearchLimit
	if searchLimit <= 0 {
		searchLimit = 20
	}

	handlers.Configure(sessionManager, cfg.Database, nutrients, foods, targetStore, searchLimit, sessionCfg.Lifetime)

	var handler http.Handler = newRouter()
	handler = sessionManager.LoadAndSave(handler)
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitRPS)
		}
		handler = middleware.RateLimit(cfg.RateLimitRPS, burst)(handler)
	}
	handler = middleware.Logging(handler)

	applog.Debug(ctx, "http handler chain prepared", "nutrients", nutrients.Len())

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start begins serving HTTP traffic using the underlying http.Server.
func (s *Server) Start() error {
	applog.Debug(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
