package httpapi

import (
	"context"
	"net/http"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/MrEthical07/voicegrant/metrics/export/prometheus"
	"github.com/MrEthical07/voicegrant/middleware"
	"github.com/MrEthical07/voicegrant/token"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Engine is the part of voicegrant.Engine the transport depends on.
type Engine interface {
	Issue(ctx context.Context, req voicegrant.CredentialRequest) (*voicegrant.IssuedToken, error)
	Verify(ctx context.Context, tokenStr string) (*token.VerifiedClaims, error)
	Ready() error
	ExposeInternalErrors() bool
	MetricsSnapshot() voicegrant.MetricsSnapshot
	AuditDropped() uint64
}

// Config controls routing and request limits.
type Config struct {
	// TokenPath is where issuance is mounted.
	TokenPath string `yaml:"token_path"`
	// BodyLimit uses echo's size syntax, e.g. "16K".
	BodyLimit           string `yaml:"body_limit"`
	EnableMetrics       bool   `yaml:"enable_metrics"`
	EnableIntrospection bool   `yaml:"enable_introspection"`
}

// DefaultConfig returns the routing used by deployed browser clients.
func DefaultConfig() Config {
	return Config{
		TokenPath:           "/api/token",
		BodyLimit:           "16K",
		EnableMetrics:       true,
		EnableIntrospection: true,
	}
}

// Server owns the echo instance and its routes.
type Server struct {
	echo   *echo.Echo
	engine Engine
	cfg    Config
	logger zerolog.Logger
}

// New wires routes and middleware. Zero Config fields take their defaults.
func New(engine Engine, cfg Config, logger zerolog.Logger) *Server {
	def := DefaultConfig()
	if cfg.TokenPath == "" {
		cfg.TokenPath = def.TokenPath
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = def.BodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(corsHeaders)
	e.Use(s.requestLogger)
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.Any(s.cfg.TokenPath, s.handleToken)
	s.echo.GET("/healthz", s.handleHealth)

	if s.cfg.EnableMetrics {
		exporter := prometheus.NewExporter(s.engine)
		s.echo.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	if s.cfg.EnableIntrospection {
		guard := echo.WrapMiddleware(middleware.Guard(s.engine))
		s.echo.GET(s.cfg.TokenPath+"/introspect", s.handleIntrospect, guard)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
