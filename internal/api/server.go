package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/AstroPlant/astroplant-camera-module/internal/api/models"
	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
	"github.com/AstroPlant/astroplant-camera-module/internal/logging"
	"github.com/AstroPlant/astroplant-camera-module/internal/version"
)

// Server hosts the HTTP API over the camera.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	camera     *camera.Camera
	options    *Options
	logger     *slog.Logger
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Camera            *camera.Camera
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// NewServer assembles the mux, the OpenAPI layer, and the middleware
// chain: CORS first, then request logging, then auth.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	api := humago.New(mux, newAPIConfig())

	s := &Server{
		api:     api,
		mux:     mux,
		camera:  opts.Camera,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.requireBasicAuth(opts.AuthUsername, opts.AuthPassword))
	}

	// Metrics are scraped unauthenticated, outside the OpenAPI layer.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	return s
}

// newAPIConfig builds the OpenAPI document settings.
func newAPIConfig() huma.Config {
	cfg := huma.DefaultConfig("AstroPlant Camera API", "1.0.0")
	cfg.Info.Description = "Camera control API for plant growth monitoring kits"
	// An empty servers list keeps the document on relative paths, so
	// it stays valid behind whatever hostname the kit ends up on.
	cfg.Servers = []*huma.Server{}
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}
	return cfg
}

// requireBasicAuth guards every operation that declares a security
// requirement. Operations registered with an empty security list, like
// health and version, stay open.
func (s *Server) requireBasicAuth(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		user, pass, ok := parseBasicAuth(ctx.Header("Authorization"))
		if !ok {
			s.challenge(ctx, "Authentication required")
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !userOK || !passOK {
			s.challenge(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// challenge rejects the request with a 401 and the scheme the client
// should retry with.
func (s *Server) challenge(ctx huma.Context, msg string) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="AstroPlant Camera API"`)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
}

// parseBasicAuth decodes an Authorization header of the form
// "Basic base64(user:pass)".
func parseBasicAuth(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	user, pass, ok = strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}
	return user, pass, true
}

// Start serves the API on addr. It blocks until the listener fails or
// the server is stopped.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting camera API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts down the server without waiting for open connections; the
// kit's clients retry, so draining buys nothing.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // open
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
		Security:    []map[string][]string{}, // open
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerCameraRoutes()
}

// withAuth is the security requirement camera operations declare.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
