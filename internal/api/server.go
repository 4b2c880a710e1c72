package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/hemma-hub/internal/hub"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/database"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/logging"
	"github.com/nerrad567/hemma-hub/internal/transport"
	"github.com/nerrad567/hemma-hub/internal/upstream"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// HealthChecker is implemented by infrastructure clients that can report
// their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// UpstreamStatus reports the upstream link state.
type UpstreamStatus interface {
	State() upstream.State
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Hub      *hub.Hub
	Checks   map[string]HealthChecker
	Upstream UpstreamStatus
	DB       *database.DB
	Version  string
}

// Server owns the certificate, stream and ops listeners.
type Server struct {
	cfg       *config.Config
	logger    *logging.Logger
	hub       *hub.Hub
	checks    map[string]HealthChecker
	upstream  UpstreamStatus
	db        *database.DB
	version   string
	connCfg   transport.Config
	upgrader  websocket.Upgrader
	startTime time.Time
}

// listener is one configured HTTP listener.
type listener struct {
	name    string
	cfg     config.ListenerConfig
	handler http.Handler
	tls     bool
}

// New creates a server. Nothing listens until Run is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}

	ws := deps.Config.WebSocket
	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		hub:      deps.Hub,
		checks:   deps.Checks,
		upstream: deps.Upstream,
		db:       deps.DB,
		version:  deps.Version,
		connCfg: transport.Config{
			PingInterval:   deps.Config.GetPingInterval(),
			PongTimeout:    deps.Config.GetPongTimeout(),
			MaxMessageSize: int64(ws.MaxMessageSize),
			SendBuffer:     ws.SendBuffer,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are not browsers; trust comes from certificates.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startTime: time.Now(),
	}, nil
}

// AuthHandler returns the certificate endpoint handler.
func (s *Server) AuthHandler() http.Handler { return s.buildAuthRouter() }

// StreamHandler returns the stream endpoint handler.
func (s *Server) StreamHandler() http.Handler { return s.buildStreamRouter() }

// OpsHandler returns the ops endpoint handler.
func (s *Server) OpsHandler() http.Handler { return s.buildOpsRouter() }

func (s *Server) listeners() []listener {
	return []listener{
		{name: "local_auth", cfg: s.cfg.LocalAuth, handler: s.AuthHandler(), tls: s.cfg.TLS.Enabled},
		{name: "local_stream", cfg: s.cfg.LocalStream, handler: s.StreamHandler(), tls: s.cfg.TLS.Enabled},
		{name: "ops", cfg: s.cfg.Ops, handler: s.OpsHandler()},
	}
}

// Run serves every enabled listener until ctx is cancelled, then shuts them
// down gracefully. A listener that fails to start ends Run with its error.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range s.listeners() {
		if !l.cfg.Enabled {
			s.logger.Info("listener disabled", "listener", l.name)
			continue
		}

		srv := &http.Server{
			Addr:              l.cfg.Address(),
			Handler:           l.handler,
			ReadHeaderTimeout: readHeaderTimeout,
			// Hijacked WebSocket connections outlive Shutdown; deriving
			// request contexts from gctx ends them too.
			BaseContext: func(net.Listener) context.Context { return gctx },
		}
		if l.tls {
			srv.TLSConfig = &tls.Config{MinVersion: tlsVersion(s.cfg.TLS.MinVersion)}
		}

		g.Go(func() error { return s.serve(srv, l) })
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down %s listener: %w", l.name, err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Server) serve(srv *http.Server, l listener) error {
	var err error
	if l.tls {
		s.logger.Info("listener starting with TLS", "listener", l.name, "address", srv.Addr, "cert", s.cfg.TLS.CertFile)
		err = srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		s.logger.Info("listener starting", "listener", l.name, "address", srv.Addr)
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", l.name, err)
	}
	return nil
}

func tlsVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
