package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"findoc-gateway/internal/dashboard"
	"findoc-gateway/internal/health"
	"findoc-gateway/internal/news"
	"findoc-gateway/internal/shared/config"
	"findoc-gateway/internal/shared/metrics"
	"findoc-gateway/internal/shared/server/middleware"
	"findoc-gateway/internal/shared/server/respond"
	"findoc-gateway/internal/summary"
	"findoc-gateway/internal/uploads"
)

// Rate limit groups.
const (
	GroupUpload  = "UPLOAD"
	GroupDefault = "DEFAULT"
)

// DefaultRateLimits allows a few uploads per client address in a burst and
// a steady flow of view requests per session.
var DefaultRateLimits = map[string]middleware.RateLimitRule{
	GroupUpload:  {Rate: 0.1, Burst: 3, PerClient: true},
	GroupDefault: {Rate: 10, Burst: 40},
}

// RouterDeps are the handlers and settings the router mounts.
type RouterDeps struct {
	Config           config.Config
	UploadHandler    *uploads.Handler
	DashboardHandler *dashboard.Handler
	NewsHandler      *news.Handler
	SummaryHandler   *summary.Handler
	Health           *health.Service
	RateLimits       map[string]middleware.RateLimitRule
	Limiter          *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	limits := deps.RateLimits
	if limits == nil {
		limits = DefaultRateLimits
	}

	r.Use(
		middleware.RequestID(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Session(),
		middleware.Logging(),
		middleware.Recovery(),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.Health))

	limited := api.Group("", middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        limits,
		DefaultGroup: GroupDefault,
		GroupFor:     rateLimitGroup,
		Limiter:      deps.Limiter,
	}))
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(limited)
	}
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.RegisterRoutes(limited)
	}
	if deps.NewsHandler != nil {
		deps.NewsHandler.RegisterRoutes(limited)
	}
	if deps.SummaryHandler != nil {
		deps.SummaryHandler.RegisterRoutes(limited)
	}

	return r
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		report := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	}
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/uploads" {
		return GroupUpload
	}
	return GroupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
