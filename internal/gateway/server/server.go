// Package server exposes the gateway over HTTP: the messaging API, the
// websocket notification channel and operational endpoints.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/grovetools/wagate/config"
	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/internal/gateway/notify"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/heptiolabs/healthcheck"
	"github.com/sirupsen/logrus"
)

// Sessions is the part of the session manager the server talks to.
type Sessions interface {
	notify.Sessions
	Running() bool
	Ping(ctx context.Context) error
}

// Messenger performs messaging operations on behalf of a session.
type Messenger interface {
	SendMessage(ctx context.Context, id, recipient, body string, isGroup bool) (string, error)
	ListQualifyingGroups(ctx context.Context, id string) ([]models.Group, error)
}

// Options wires the server's collaborators.
type Options struct {
	Sessions  Sessions
	Messenger Messenger
	Hub       *notify.Hub
	Metrics   *metrics.Metrics
	// StorePath is checked by the readiness probe.
	StorePath string
	Logger    *logrus.Entry
}

// Server manages the gateway's HTTP listener.
type Server struct {
	cfg      config.ServerConfig
	opts     Options
	logger   *logrus.Entry
	server   *http.Server
	listener net.Listener
}

// New creates a new Server instance.
func New(cfg config.ServerConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("server")
	}
	s := &Server{cfg: cfg, opts: opts, logger: opts.Logger}
	s.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: cfg.ReadTimeout.Duration,
		ReadTimeout:       cfg.ReadTimeout.Duration,
		WriteTimeout:      cfg.WriteTimeout.Duration,
	}
	return s
}

// Handler returns the root handler with all middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(s.logger))
	r.Use(Recovery(s.logger))
	r.Use(CORS(s.cfg.AllowedOrigins))

	health := s.healthHandler()
	r.Get("/live", health.LiveEndpoint)
	r.Get("/ready", health.ReadyEndpoint)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	h := &handlers{sessions: s.opts.Sessions, messenger: s.opts.Messenger, log: s.logger}
	r.Post("/send-message", h.sendMessage)
	r.Get("/list-group", h.listGroup)
	r.Post("/list-group", h.listGroup)
	r.Get("/sessions", h.listSessions)
	if s.opts.Hub != nil {
		// Websocket connections outlive WriteTimeout; the hub manages its own deadlines.
		r.Handle("/ws", s.opts.Hub.Handler(s.opts.Sessions))
	}
	return r
}

func (s *Server) healthHandler() healthcheck.Handler {
	var health healthcheck.Handler
	if s.opts.Metrics != nil {
		health = healthcheck.NewMetricsHandler(s.opts.Metrics.Registry, "wagate")
	} else {
		health = healthcheck.NewHandler()
	}
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	if s.opts.Sessions != nil {
		sessions := s.opts.Sessions
		health.AddReadinessCheck("session-loop", healthcheck.Timeout(func() error {
			if !sessions.Running() {
				return fmt.Errorf("session loop is not running")
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return sessions.Ping(ctx)
		}, 2*time.Second))
	}
	if s.opts.StorePath != "" {
		dir := filepath.Dir(s.opts.StorePath)
		health.AddReadinessCheck("store-dir", func() error {
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			return nil
		})
	}
	return health
}

// Listen binds the configured address. It is separate from Serve so callers
// can report bind errors before backgrounding the server.
func (s *Server) Listen() (net.Addr, error) {
	l, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = l
	return l.Addr(), nil
}

// Serve blocks until the server stops. It returns nil after Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.WithField("addr", s.listener.Addr().String()).Info("Gateway listening")
	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}
