package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/auth"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// Config configures a Server. Nil ports switch the matching routes or
// status sections off.
type Config struct {
	// Mode names the node: "initiator" or "responder".
	Mode    string
	Version string

	Roles        RolePort
	Association  AssociationPort
	Ranging      RangingPort
	AccessPoint  AccessPointPort
	Audit        AuditPort
	Telemetry    TelemetryPort
	Verifier     auth.TokenVerifier
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
	ShutdownWait time.Duration

	// OnOutcome receives outcomes of sessions triggered through the API.
	OnOutcome func(context.Context, ranging.Outcome)

	LoggerFactory logging.LoggerFactory
}

// Server is the node HTTP API.
type Server struct {
	cfg       Config
	auth      *auth.Middleware
	log       logging.LeveledLogger
	startTime time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

const healthPath = "/api/v1/health"

// NewServer creates a server.
func NewServer(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownWait <= 0 {
		cfg.ShutdownWait = 5 * time.Second
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Server{
		cfg:       cfg,
		auth:      auth.NewMiddleware(cfg.Verifier, writeAuthError, healthPath),
		log:       cfg.LoggerFactory.NewLogger("api"),
		startTime: time.Now(),
	}
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.auth.RequireAuth(mux)
}

// Serve serves the API on ln until Stop. It returns nil after Stop.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.log.Infof("HTTP API listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Start listens on addr and serves the API until Stop.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Stop gracefully stops the server. Open telemetry streams are closed
// when the wait expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
