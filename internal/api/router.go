// Package api - Router setup
package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(RecoveryMiddleware)
	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware)

	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)

	// Public routes
	r.HandleFunc("/", h.ServerInfo).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(h.AuthMiddleware)

	protected.HandleFunc("/status/latest", h.GetLatest).Methods("GET")
	protected.HandleFunc("/status/summary", h.GetSummary).Methods("GET")
	protected.HandleFunc("/status/history", h.GetHistory).Methods("GET")
	protected.HandleFunc("/status/history/{id}", h.GetCheck).Methods("GET")

	// WebSocket stream of status checks
	protected.HandleFunc("/ws/status", h.HandleWebSocket).Methods("GET")

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
