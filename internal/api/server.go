package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/govee-local-bridge/internal/history"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/govee-local-bridge/internal/node"
	"github.com/nerrad567/govee-local-bridge/internal/report"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Pusher is the push surface the API drives.
type Pusher interface {
	PushText(ctx context.Context, n *node.Node, driver node.DriverName, text string) report.Result
	PushValue(ctx context.Context, n *node.Node, driver node.DriverName, value int) report.Result
	TransportName() string
}

// HealthChecker is implemented by optional infrastructure clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *node.Registry
	Pusher   Pusher

	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// History serves the push log endpoints. Nil disables them.
	History history.Repository

	// Checks are reported by /api/v1/health, keyed by dependency name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *node.Registry
	pusher    Pusher
	gatherer  prometheus.Gatherer
	history   history.Repository
	checks    map[string]HealthChecker
	version   string
	startTime time.Time
	tickets   *ticketStore
	hub       *Hub
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub exists from construction so push results can be
// broadcast before Start is called; they reach no one until clients connect.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("node registry is required")
	}
	if deps.Pusher == nil {
		return nil, fmt.Errorf("pusher is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		pusher:    deps.Pusher,
		gatherer:  deps.Gatherer,
		history:   deps.History,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
		hub:       NewHub(deps.WS, deps.Logger, snapshots(deps.Registry)),
	}, nil
}

// ObservePush implements report.Observer by broadcasting each result to
// WebSocket clients subscribed to the push.result channel for its address.
func (s *Server) ObservePush(res report.Result) {
	s.hub.BroadcastResult(res)
}

func snapshots(r *node.Registry) func() []node.Snapshot {
	return func() []node.Snapshot {
		nodes := r.List()
		out := make([]node.Snapshot, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, n.Snapshot())
		}
		return out
	}
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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
