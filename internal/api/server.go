// Package api serves the websocket stream endpoint together with the
// huma status API, SSE event streams and Prometheus metrics.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/phonecam/internal/api/models"
	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/logging"
	"github.com/smazurov/phonecam/internal/session"
	"github.com/smazurov/phonecam/internal/sink"
	"github.com/smazurov/phonecam/internal/version"
)

const (
	// DefaultStreamPath is where phones open their websocket.
	DefaultStreamPath = "/"
	// DefaultMaxMessageBytes bounds a single websocket message.
	DefaultMaxMessageBytes = 16 << 20

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// SinkStatus reports the state of the shared sink.
type SinkStatus interface {
	Status() sink.Status
}

// Options configures the server.
type Options struct {
	AuthUsername string
	AuthPassword string

	// StreamPath is the websocket endpoint. Plain GETs on it are served
	// from StaticDir, or from Static when no directory is set.
	StreamPath      string
	StaticDir       string
	Static          http.Handler

	// CORSOrigins limits cross-origin API access; empty allows any origin.
	CORSOrigins []string
	MaxMessageBytes int64

	Controller *session.Controller
	Sink       SinkStatus
	SinkDevice string
	EventBus   *events.Bus

	// ListDevices enumerates output devices; sink.ListOutputDevices when nil.
	ListDevices       func() ([]sink.OutputDevice, error)
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the HTTP front end.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	upgrader   websocket.Upgrader
	static     http.Handler
	logger     *slog.Logger

	// sessionCtx outlives request contexts: hijacked websocket
	// connections are only ended when it is cancelled.
	sessionCtx     context.Context
	cancelSessions context.CancelFunc
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, problem := requestCredentials(ctx.Header("Authorization"), ctx.Query("auth"))
		if problem != "" {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="phonecam"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, problem)
			return
		}

		user, pass, ok := strings.Cut(credentials, ":")
		if !ok || user != username || pass != password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="phonecam"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// requestCredentials extracts "user:pass" from a Basic Authorization header,
// or from the base64 auth query parameter that EventSource clients use.
// problem is the client-facing reason when none could be read.
func requestCredentials(header, query string) (credentials, problem string) {
	encoded := query
	if header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	}
	if encoded == "" {
		return "", "Authentication required"
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "Invalid credentials format"
	}
	return string(decoded), ""
}

// NewServer creates the server and registers every route on its mux.
func NewServer(opts *Options) *Server {
	if opts.StreamPath == "" {
		opts.StreamPath = DefaultStreamPath
	}
	if !strings.HasPrefix(opts.StreamPath, "/") {
		opts.StreamPath = "/" + opts.StreamPath
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if opts.ListDevices == nil {
		opts.ListDevices = sink.ListOutputDevices
	}
	if opts.EventBus == nil {
		opts.EventBus = events.New()
	}

	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig(opts.CORSOrigins)
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("phonecam API", version.String())
	config.Info.Description = "Status and events for the phone-to-virtual-camera bridge"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	sessionCtx, cancel := context.WithCancel(context.Background())
	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 4 << 10,
			// Phones load the page from anywhere on the LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:         logging.GetLogger("api"),
		sessionCtx:     sessionCtx,
		cancelSessions: cancel,
	}
	switch {
	case opts.StaticDir != "":
		server.static = http.FileServer(http.Dir(opts.StaticDir))
	case opts.Static != nil:
		server.static = opts.Static
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	server.registerStreamRoutes()

	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Run listens on addr and serves until ctx is cancelled. TLS is used when
// certFile is set.
func (s *Server) Run(ctx context.Context, addr, certFile, keyFile string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, certFile, keyFile)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully and ends every open session.
func (s *Server) Serve(ctx context.Context, ln net.Listener, certFile, keyFile string) error {
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	scheme := "ws"
	if certFile != "" {
		scheme = "wss"
	}
	s.logger.Info("Starting server", "addr", ln.Addr().String(), "version", version.Get().String())
	s.logger.Info("Clients connect to", "url", fmt.Sprintf("%s://%s%s", scheme, ln.Addr().String(), s.options.StreamPath))
	s.logger.Info("OpenAPI documentation available", "path", "/docs")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if certFile != "" {
			err = s.httpServer.ServeTLS(ln, certFile, keyFile)
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})
	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Info("Stopping server")
	s.cancelSessions()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	// Health check endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Virtual camera state and number of connected clients",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		data := models.StatusData{
			StreamPath: s.options.StreamPath,
			Version:    version.String(),
		}
		if s.options.Sink != nil {
			data.Sink = s.options.Sink.Status()
		}
		if s.options.Controller != nil {
			data.ActiveSessions = s.options.Controller.Registry().Len()
		}
		return &models.StatusResponse{Body: data}, nil
	})

	s.registerSessionRoutes()
	s.registerDeviceRoutes()
	s.registerSSERoutes()
	s.registerMetricsRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
