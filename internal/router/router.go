package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler/health"
	"github.com/jwalitptl/referral-api/internal/handler/prometheus"
	"github.com/jwalitptl/referral-api/internal/middleware"
)

// Handler is implemented by every domain handler package
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	health  *health.Handler
	metrics *prometheus.Handler
	config  RouterConfig
}

type RouterConfig struct {
	Version        string
	RequestTimeout time.Duration
	MaxBodySize    int64
	CORSConfig     middleware.CORSConfig
	Security       middleware.SecurityConfig
	// RateLimit is nil when rate limiting is disabled
	RateLimit   *middleware.RateLimiterConfig
	MetricsPath string
}

// NewRouter builds the engine and its global middleware chain. metrics may be
// nil when Prometheus is disabled.
func NewRouter(auth *middleware.AuthMiddleware, healthH *health.Handler, metrics *prometheus.Handler, config RouterConfig) *Router {
	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		health:  healthH,
		metrics: metrics,
		config:  config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORSConfig),
		middleware.Version(config.Version),
	)
	if config.RateLimit != nil {
		engine.Use(middleware.NewRateLimiter(*config.RateLimit).RateLimit())
	}

	maxBody := config.MaxBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodySize
	}
	engine.Use(
		middleware.SizeLimit(maxBody),
		middleware.Timeout(config.RequestTimeout),
	)

	return r
}

// Setup mounts the health and metrics endpoints followed by every handler
func (r *Router) Setup(handlers ...Handler) {
	root := r.engine.Group("")

	r.health.RegisterRoutes(root)
	if r.metrics != nil {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		root.GET(path, r.metrics.Handler())
	}

	for _, h := range handlers {
		h.RegisterRoutes(root, r.auth)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
