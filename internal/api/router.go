package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/agentslack/internal/api/middleware"
	"github.com/eldtechnologies/agentslack/internal/handlers"
	"github.com/eldtechnologies/agentslack/internal/registry"
	"github.com/eldtechnologies/agentslack/internal/store"
	"github.com/eldtechnologies/agentslack/internal/tools"
)

// maxBody bounds every request body. Tool calls carry one message at most.
const maxBody = 64 * 1024

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Registry  *registry.Registry
	Tools     *tools.Router
	Directory store.DirectoryStore // optional
	Redis     *store.RedisStore    // optional

	AdminKeyHash string
	RateLimit    middleware.RateLimiterConfig
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBody))
	r.Use(middleware.ValidateRequest)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	var rc *redis.Client
	if deps.Redis != nil {
		rc = deps.Redis.Client()
	}
	limiter := middleware.NewRateLimiter(rc, logger, deps.RateLimit)
	r.Use(limiter.Middleware)

	// Agents call from anywhere.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.AgentHeader, middleware.AdminKeyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(deps.Registry, deps.Tools, deps.Directory, deps.Redis)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	r.Get("/tools", h.ListTools)
	r.Get("/tools/{name}", h.GetTool)
	r.Post("/tools/{name}", h.CallTool)

	r.Get("/agents/{name}", h.GetAgent)
	r.Get("/worlds/{name}/channels", h.ListWorldChannels)

	// Management routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(deps.AdminKeyHash, logger))

		r.Post("/register_world", h.RegisterWorld)
		r.Post("/register_agent", h.RegisterAgent)
		r.Post("/worlds/{name}/humans", h.AddHuman)
		r.Delete("/worlds/{name}/humans/{id}", h.RemoveHuman)
		r.Post("/agents/{name}/excluded_humans", h.ExcludeHuman)
		r.Delete("/agents/{name}/excluded_humans/{id}", h.IncludeHuman)
	})

	return r
}
