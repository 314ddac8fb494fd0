package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/app"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/handlers"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/middleware"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger.Named("http")))
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.ReadinessChecks(), deps.Logger.Named("health"))
	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	// Metrics share the API listener unless a dedicated port is configured
	if deps.Config.Observability.MetricsEnabled && deps.Config.Observability.MetricsPort == 0 {
		r.Handle("/metrics", MetricsHandler(deps))
	}

	chat := handlers.NewChatHandler(deps.Conversation, deps.Logger.Named("chat"))
	r.Route("/api", func(r chi.Router) {
		if deps.AuthMiddleware != nil {
			r.Use(deps.AuthMiddleware.RequireAuth)
		}
		r.Post("/chat", chat.HandleChat)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "The requested resource was not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	return r
}

// MetricsHandler serves the prometheus registry of deps
func MetricsHandler(deps *app.Dependencies) http.Handler {
	return promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{
		Registry: deps.Registry,
	})
}
