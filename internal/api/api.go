// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/analytics"
	"github.com/good-yellow-bee/vitalguard/internal/api/alerts"
	"github.com/good-yellow-bee/vitalguard/internal/api/auth"
	"github.com/good-yellow-bee/vitalguard/internal/api/devices"
	"github.com/good-yellow-bee/vitalguard/internal/api/health"
	"github.com/good-yellow-bee/vitalguard/internal/api/readings"
	"github.com/good-yellow-bee/vitalguard/internal/realtime"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address           string
	JWTSecret         []byte // empty disables operator authentication
	TokenTTL          time.Duration
	TLSEnabled        bool
	TLSCertFile       string
	TLSKeyFile        string
	RateLimitPerIP    int // requests per minute
	DeviceRateLimit   int // readings per minute per device
	DeviceBurst       int
	StreamHeartbeat   time.Duration
	StreamMaxDuration time.Duration
	ShutdownTimeout   time.Duration
	Version           string
	Verbose           bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 12 * time.Hour
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 300
	}
	if c.DeviceRateLimit == 0 {
		c.DeviceRateLimit = 60
	}
	if c.DeviceBurst == 0 {
		c.DeviceBurst = 10
	}
	if c.StreamHeartbeat == 0 {
		c.StreamHeartbeat = 15 * time.Second
	}
	if c.StreamMaxDuration == 0 {
		c.StreamMaxDuration = 30 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Deps are the services behind the API. Latest may be nil when no cache is
// configured.
type Deps struct {
	Storage   storage.Storage
	Ingester  readings.Ingester
	Lifecycle alerts.Lifecycle
	Analytics *analytics.Service
	Hub       *realtime.Hub
	Latest    devices.LatestCache
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	deps          Deps
	jwt           *auth.JWTService
	logger        *zap.Logger
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, deps Deps, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Ingester == nil || deps.Lifecycle == nil || deps.Hub == nil {
		return nil, fmt.Errorf("ingester, lifecycle and hub are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Analytics == nil {
		deps.Analytics = analytics.NewService(deps.Storage.Alerts(), deps.Storage.Readings())
	}

	cfg.SetDefaults()
	logger = logger.Named("api")

	s := &Server{
		config:        cfg,
		deps:          deps,
		logger:        logger,
		healthHandler: health.NewHandler(cfg.Version, logger),
	}
	if len(cfg.JWTSecret) > 0 {
		s.jwt = auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	} else {
		logger.Warn("operator authentication disabled: no JWT secret configured")
	}
	s.healthHandler.RegisterChecker(health.NewPingChecker("database", deps.Storage))

	s.server = &http.Server{
		Addr:        cfg.Address,
		Handler:     s.setupRouter(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE and WebSocket connections are long-lived.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     zap.NewStdLog(logger),
	}
	if cfg.TLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP API listening", zap.String("address", s.config.Address), zap.Bool("tls", s.config.TLSEnabled))
		var err error
		if s.config.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP API server")
		// Streams only end when their subscriptions close.
		s.deps.Hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
