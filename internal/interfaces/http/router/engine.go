package router

import (
	"github.com/freelance/backend/internal/infrastructure/logger"
	"github.com/freelance/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig selects the middleware of the HTTP engine
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	TrustedProxies []string
	// RateLimiter limits writes per client IP; nil disables limiting
	RateLimiter *middleware.RateLimiter
	// Meter records request metrics; nil disables them
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewEngine builds the gin engine with the middleware chain, the health
// probes and the /api/v1 routes
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(middleware.SpanAttributes())
	if cfg.Meter != nil {
		metrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, err
		}
		engine.Use(metrics)
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	if cfg.RateLimiter != nil {
		engine.Use(middleware.WritesOnly(middleware.RateLimit(cfg.RateLimiter)))
	}

	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	Mount(engine, BillingGroups(h)...)

	return engine, nil
}
