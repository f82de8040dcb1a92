package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/handler/accesscode"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	h           *handler.Handler
	accessCodeH *accesscode.Handler
	metrics     *metrics.Metrics
	config      RouterConfig
}

type RouterConfig struct {
	// RateLimit <= 0 disables per-IP rate limiting on public routes.
	RateLimit      rate.Limit
	RateBurst      int
	RateIdleTTL    time.Duration
	Lockout        middleware.LockoutConfig
	LockoutEnabled bool
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	AdminRole      string
	MetricsPath    string
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	h *handler.Handler,
	accessCodeH *accesscode.Handler,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	engine := gin.New() // Use New() instead of Default() for more control

	if config.AdminRole == "" {
		config.AdminRole = "admin"
	}

	r := &Router{
		engine:      engine,
		auth:        auth,
		h:           h,
		accessCodeH: accessCodeH,
		metrics:     m,
		config:      config,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		r.metricsMiddleware(),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.Timeout(config.RequestTimeout),
	)

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	// Health check endpoints
	r.h.RegisterRoutes(api)
	if r.config.MetricsPath != "" {
		api.GET(r.config.MetricsPath, r.h.MetricsHandler)
	}

	// Public routes
	r.setupPublicRoutes(api)

	// Admin routes
	admin := api.Group("/admin")
	admin.Use(
		r.auth.Authenticate(),
		r.auth.RequireRole(r.config.AdminRole),
		middleware.SizeLimit(middleware.DefaultMaxBodySize),
	)
	r.accessCodeH.RegisterAdminRoutes(admin)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	guards := []gin.HandlerFunc{middleware.SizeLimit(middleware.DefaultMaxBodySize)}

	if r.config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:    r.config.RateLimit,
			Burst:   r.config.RateBurst,
			IdleTTL: r.config.RateIdleTTL,
		})
		guards = append(guards, limiter.RateLimit())
	}
	if r.config.LockoutEnabled {
		guards = append(guards, middleware.NewLockout(r.config.Lockout).Guard())
	}

	r.accessCodeH.RegisterPublicRoutes(rg, guards...)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.metrics.HTTPDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		r.metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
