// Package api provides the HTTP REST API and WebSocket server for the panel.
//
// It exposes server lifecycle operations (start, stop, status), launch
// configuration and mod list management, console output, the event log,
// and a WebSocket feed of live status updates for the browser UI.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dzpanel/dzpanel/internal/events"
	"github.com/dzpanel/dzpanel/internal/infrastructure/config"
	"github.com/dzpanel/dzpanel/internal/infrastructure/database"
	"github.com/dzpanel/dzpanel/internal/infrastructure/logging"
	"github.com/dzpanel/dzpanel/internal/infrastructure/mqtt"
	"github.com/dzpanel/dzpanel/internal/supervisor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// statusPushInterval is how often the live status snapshot is pushed to
// WebSocket clients while the server is running.
const statusPushInterval = 5 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Supervisor *supervisor.Supervisor
	Events     events.Repository
	DB         *database.DB // optional, used by the health endpoint
	MQTT       *mqtt.Client // optional, used by the health endpoint
	Version    string
}

// Server is the HTTP API server for the panel.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	sup     *supervisor.Supervisor
	events  events.Repository
	db      *database.DB
	mqtt    *mqtt.Client
	version string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event repository is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		sup:     deps.Supervisor,
		events:  deps.Events,
		db:      deps.DB,
		mqtt:    deps.MQTT,
		version: deps.Version,
	}, nil
}

// Hub returns the WebSocket hub. Nil until Start is called.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the periodic status pusher, then launches
// the HTTP listener in a background goroutine. Stop with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.cfg.WS, s.logger)
	go s.hub.Run(srvCtx)
	go s.statusPushLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// statusPushLoop pushes status snapshots to subscribed WebSocket clients
// while the game server is running, so uptime ticks in the UI without
// polling.
func (s *Server) statusPushLoop(ctx context.Context) {
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.sup.Running() {
				s.BroadcastStatus(s.sup.Status())
			}
		}
	}
}

// BroadcastStatus pushes a status snapshot to WebSocket clients subscribed
// to the server.status channel.
func (s *Server) BroadcastStatus(st supervisor.Status) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelServerStatus, statusPayload(st))
}

// BroadcastEvent pushes a lifecycle event to WebSocket clients subscribed
// to the server.event channel.
func (s *Server) BroadcastEvent(evt events.Event) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelServerEvent, evt)
}

// BroadcastConsoleLine pushes a captured output line to WebSocket clients
// subscribed to the server.console channel.
func (s *Server) BroadcastConsoleLine(stream, text string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelConsole, map[string]string{
		"stream": stream,
		"text":   text,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Close gracefully shuts down the API server, waiting briefly for in-flight
// requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

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

// HealthCheck verifies the API server is running.
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
