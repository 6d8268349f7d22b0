package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Protected routes (pass-through when auth is disabled)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{mac}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/state", s.handleGetDeviceState)
					r.Post("/commands", s.handleDeviceCommand)
				})
			})

			// Snapshot inspection and explicit refresh
			r.Get("/snapshot", s.handleSnapshot)
			r.Post("/refresh", s.handleRefresh)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns overall bridge health: process status, hub
// reachability as seen by the poll loop, and MQTT connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	hubReachable := s.coord.LastUpdateSuccess()
	mqttConnected := s.mqtt != nil && s.mqtt.IsConnected()

	status := "ok"
	if !hubReachable {
		status = "degraded"
	}

	stats := s.coord.Stats()

	hub := map[string]any{
		"reachable": hubReachable,
	}
	if !stats.LastSuccess.IsZero() {
		hub["last_success"] = stats.LastSuccess.UTC().Format(time.RFC3339)
	}
	if err := s.coord.LastError(); err != nil {
		hub["error"] = err.Error()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"hub":     hub,
		"mqtt": map[string]any{
			"connected": mqttConnected,
		},
		"devices": len(s.coord.Devices()),
	})
}
