package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/madxdev/home-assistant-eheim-digital/internal/bridges/hass"
	"github.com/madxdev/home-assistant-eheim-digital/internal/coordinator"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/config"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// MQTTStatus reports broker connectivity for health and metrics responses.
// Satisfied by *mqtt.Client.
type MQTTStatus interface {
	IsConnected() bool
}

// BridgeMetricsProvider exposes the Home Assistant bridge's counters.
// Satisfied by *hass.Bridge.
type BridgeMetricsProvider interface {
	GetMetrics() hass.BridgeMetrics
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	// Coordinator supplies devices and snapshots and accepts refreshes.
	Coordinator *coordinator.Coordinator

	// Hub executes switch commands against the EHEIM hub.
	Hub hass.HubClient

	// MQTT is optional; when nil the health and metrics endpoints report
	// the broker as disconnected.
	MQTT MQTTStatus

	// Bridge is optional; when set its counters appear in /metrics.
	Bridge BridgeMetricsProvider

	Version string
}

// Server is the local HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	coord     *coordinator.Coordinator
	hub       hass.HubClient
	mqtt      MQTTStatus
	bridge    BridgeMetricsProvider
	version   string
	startTime time.Time

	server  *http.Server
	wsHub   *Hub
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, coordinator, hub client)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("hub client is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		coord:     deps.Coordinator,
		hub:       deps.Hub,
		mqtt:      deps.MQTT,
		bridge:    deps.Bridge,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, registers a coordinator listener so snapshot
// changes reach WebSocket clients, builds the router, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.wsHub = NewHub(s.wsCfg, s.logger)
	go s.wsHub.Run(srvCtx)

	// Periodic ticket cleanup so abandoned WebSocket tickets don't pile up
	go s.cleanTicketsLoop(srvCtx)

	// Coordinator events drive the WebSocket broadcast channels.
	s.coord.Subscribe(s.broadcastEvent)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
