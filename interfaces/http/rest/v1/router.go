// Package v1 keeps the deprecated v1 API surface alive for clients
// that have not migrated to v2 yet. It exposes a reduced subset of
// the tree operations.
package v1

import (
	"net/http"

	"cardtree-backend/infrastructure/config"
	"cardtree-backend/interfaces/http/rest/handlers"
	"cardtree-backend/interfaces/http/rest/middleware"
	"cardtree-backend/pkg/auth"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter creates the v1 API router. limiter may be nil to fall back
// to in-memory rate limiting.
func NewRouter(
	nodeHandler *handlers.NodeHandler,
	folderHandler *handlers.FolderHandler,
	cfg *config.Config,
	logger *zap.Logger,
	limiter auth.RateLimiter,
) *mux.Router {
	router := mux.NewRouter()
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Apply middleware
	v1.Use(middleware.Logging(logger))
	v1.Use(middleware.CORS)
	v1.Use(middleware.RequestID)
	v1.Use(middleware.Authenticate(cfg, limiter))

	// Node endpoints
	v1.HandleFunc("/nodes", nodeHandler.CreateNode).Methods("POST")
	v1.HandleFunc("/nodes/{nodeID}", nodeHandler.GetNode).Methods("GET")
	v1.HandleFunc("/nodes/{nodeID}", nodeHandler.DeleteNode).Methods("DELETE")
	v1.HandleFunc("/nodes/{nodeID}/parent", nodeHandler.MoveNode).Methods("PUT")
	v1.HandleFunc("/nodes/{nodeID}/breadcrumb", nodeHandler.GetBreadcrumb).Methods("GET")

	// Folder endpoints
	v1.HandleFunc("/folders", folderHandler.ListTopLevel).Methods("GET")
	v1.HandleFunc("/folders/{folderID}/children", folderHandler.ListChildren).Methods("GET")

	// Health check
	v1.HandleFunc("/health", healthCheck).Methods("GET")

	// Add version header middleware
	v1.Use(versionHeaders)

	return router
}

// versionHeaders adds API version headers to responses
func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		w.Header().Set("X-API-Deprecated", "true")
		next.ServeHTTP(w, r)
	})
}

// healthCheck provides a health check endpoint
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","version":"v1"}`))
}
