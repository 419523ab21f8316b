package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"studypace/infrastructure/config"
	"studypace/interfaces/http/rest/handlers"
	"studypace/interfaces/http/rest/middleware"
	"studypace/pkg/auth"
)

// ReadinessChecker reports whether downstream dependencies are reachable.
type ReadinessChecker func(ctx context.Context) error

// Router creates and configures the HTTP router
type Router struct {
	cfg         *config.Config
	schedules   *handlers.ScheduleHandler
	performance *handlers.PerformanceHandler
	validator   *auth.JWTValidator
	ipLimiter   auth.RateLimiter
	userLimiter auth.RateLimiter
	readiness   ReadinessChecker
	logger      *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	schedules *handlers.ScheduleHandler,
	performance *handlers.PerformanceHandler,
	validator *auth.JWTValidator,
	ipLimiter auth.RateLimiter,
	userLimiter auth.RateLimiter,
	readiness ReadinessChecker,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:         cfg,
		schedules:   schedules,
		performance: performance,
		validator:   validator,
		ipLimiter:   ipLimiter,
		userLimiter: userLimiter,
		readiness:   readiness,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.studypace.app"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.ipLimiter, rt.userLimiter, rt.logger))

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/generate", rt.schedules.GenerateSchedule)
			r.Post("/adapt", rt.schedules.AdaptSchedules)
			r.Get("/", rt.schedules.ListEntries)
			r.Post("/{entryID}/complete", rt.schedules.CompleteEntry)
			r.Post("/{entryID}/reschedule", rt.schedules.RescheduleEntry)
		})

		r.Route("/performance", func(r chi.Router) {
			r.Post("/record", rt.performance.RecordPerformance)
			r.Get("/curve", rt.performance.LearningCurve)
			r.Get("/summary", rt.performance.Summary)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if rt.readiness != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		if err := rt.readiness(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not_ready"}`))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
