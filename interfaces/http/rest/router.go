package rest

import (
	"net/http"
	"strings"

	"cardtree-backend/application/commands/bus"
	querybus "cardtree-backend/application/queries/bus"
	"cardtree-backend/infrastructure/config"
	"cardtree-backend/interfaces/http/rest/handlers"
	"cardtree-backend/interfaces/http/rest/middleware"
	v1 "cardtree-backend/interfaces/http/rest/v1"
	"cardtree-backend/pkg/auth"
	appErrors "cardtree-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	cfg        *config.Config
	logger     *zap.Logger
	limiter    auth.RateLimiter
}

// NewRouter creates a new router instance. limiter may be nil to fall
// back to in-memory rate limiting.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	cfg *config.Config,
	logger *zap.Logger,
	limiter auth.RateLimiter,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		cfg:        cfg,
		logger:     logger,
		limiter:    limiter,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(rt.logger))
	router.Use(versionMiddleware)

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.cardtree.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Session-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	errorHandler := appErrors.NewErrorHandler(rt.logger, rt.cfg.Environment != "production")
	nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
	folderHandler := handlers.NewFolderHandler(rt.queryBus, errorHandler, rt.logger)

	// API v1 routes (legacy mux surface, deprecated but still served)
	router.Mount("/api/v1", v1.NewRouter(nodeHandler, folderHandler, rt.cfg, rt.logger, rt.limiter))

	// API v2 routes (current)
	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.cfg, rt.limiter))

		// Node endpoints
		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeHandler.CreateNode)
			r.Get("/{nodeID}", nodeHandler.GetNode)
			r.Put("/{nodeID}/parent", nodeHandler.MoveNode)
			r.Delete("/{nodeID}", nodeHandler.DeleteNode)
			r.Get("/{nodeID}/breadcrumb", nodeHandler.GetBreadcrumb)
		})

		// Folder endpoints
		r.Route("/folders", func(r chi.Router) {
			r.Get("/", folderHandler.ListTopLevel)
			r.Get("/{folderID}/children", folderHandler.ListChildren)
		})

		// Maintenance endpoint
		r.Post("/reconcile", handlers.NewReconcileHandler(rt.commandBus, errorHandler, rt.logger).Reconcile)
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
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := "v2"
		if strings.Contains(r.URL.Path, "/api/v1") {
			version = "v1"
		}

		w.Header().Set("X-API-Version", version)
		w.Header().Set("X-API-Latest", "v2")
		w.Header().Set("X-API-Deprecated", "false")

		if version == "v1" {
			w.Header().Set("X-API-Deprecated", "true")
			w.Header().Set("X-API-Sunset-Date", "2026-12-01")
		}

		next.ServeHTTP(w, r)
	})
}
