package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/good-yellow-bee/vitalguard/internal/api/alerts"
	"github.com/good-yellow-bee/vitalguard/internal/api/devices"
	"github.com/good-yellow-bee/vitalguard/internal/api/middleware"
	"github.com/good-yellow-bee/vitalguard/internal/api/readings"
	"github.com/good-yellow-bee/vitalguard/internal/api/stream"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	ipLimiter := middleware.NewKeyedLimiter(s.config.RateLimitPerIP, s.config.RateLimitPerIP)
	deviceLimiter := middleware.NewKeyedLimiter(s.config.DeviceRateLimit, s.config.DeviceBurst)
	operator := middleware.JWTAuth(s.jwt, s.logger)

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(s.logger, s.config.Verbose))
	r.Use(middleware.Recoverer(s.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.HTTPMetrics)

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	r.Handle("/ws", s.deps.Hub)

	readingHandler := readings.NewHandler(s.deps.Ingester, s.deps.Storage.Readings(), s.deps.Analytics, deviceLimiter, s.logger)
	alertHandler := alerts.NewHandler(s.deps.Storage.Alerts(), s.deps.Lifecycle, s.deps.Analytics, s.logger)
	deviceHandler := devices.NewHandler(s.deps.Storage.Devices(), s.deps.Storage.Readings(), s.deps.Latest, s.logger)
	streamHandler := stream.NewHandler(s.deps.Hub, stream.Config{
		Heartbeat:   s.config.StreamHeartbeat,
		MaxDuration: s.config.StreamMaxDuration,
	}, s.logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Devices are throttled per device id inside the handler.
		r.Post("/readings", readingHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ipLimiter))

			r.Get("/readings", readingHandler.List)
			r.Get("/readings/stats", readingHandler.Stats)
			r.Route("/alerts", func(r chi.Router) { alertHandler.Routes(r, operator) })
			r.Route("/devices", func(r chi.Router) { deviceHandler.Routes(r, operator) })
			r.Get("/stream", streamHandler.Stream)
		})
	})

	return r
}
