package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// SetupRouter configures all routes and returns the HTTP handler
func SetupRouter(deps *Dependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Route("/v1", deps.BudgetHandler.Routes)
	deps.Logger.Info("registered query API", "path", "/v1")

	registerUtilityRoutes(router, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         7200,
	})

	return corsHandler.Handler(router)
}

// registerUtilityRoutes registers health check and metrics routes
func registerUtilityRoutes(router chi.Router, deps *Dependencies) {
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
				deps.Logger.Error("failed to write health response", "error", writeErr)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", "error", err)
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	router.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", "error", err)
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	router.Handle("/metrics", promhttp.Handler())
	deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
}
