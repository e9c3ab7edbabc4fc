package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skincare-backend/internal/shared/config"
	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/server/middleware"
	"skincare-backend/internal/shared/server/respond"
)

const (
	rateLimitDefault = "DEFAULT"
	rateLimitSubmit  = "SUBMIT"
	rateLimitAnalyze = "ANALYZE"
	rateLimitPolling = "POLLING"
	rateLimitCatalog = "CATALOG"
	rateLimitExempt  = ""
)

// RouteRegistrar is implemented by every HTTP handler mounted under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries the handlers and settings the router mounts.
type RouterDeps struct {
	Config   config.Config
	Handlers []RouteRegistrar
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(*gin.Context) error
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 12 << 20

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(rateLimitConfig(deps.Config)),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/ready", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(c); err != nil {
				respond.Error(c, http.StatusServiceUnavailable, "not_ready", err.Error(), nil)
				return
			}
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	return r
}

// Polling a consultation gets a looser budget than submitting one.
// rateLimitConfig gives each consultation route its own budget. Submissions
// start model work, the synchronous analyze endpoint holds it for the whole
// request, and status polling is cheap.
func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	rps := cfg.RateLimitRPS
	burst := cfg.RateLimitBurst
	analyzeBurst := burst / 2
	if analyzeBurst < 1 {
		analyzeBurst = 1
	}
	return middleware.RateLimitConfig{
		DefaultGroup: rateLimitDefault,
		Routes: map[string]string{
			middleware.RouteKey(http.MethodPost, "/api/v1/consultations"):         rateLimitSubmit,
			middleware.RouteKey(http.MethodPost, "/api/v1/consultations/analyze"): rateLimitAnalyze,
			middleware.RouteKey(http.MethodGet, "/api/v1/consultations/:id"):      rateLimitPolling,
			middleware.RouteKey(http.MethodGet, "/api/v1/products"):               rateLimitCatalog,
			middleware.RouteKey(http.MethodGet, "/api/v1/health"):                 rateLimitExempt,
			middleware.RouteKey(http.MethodGet, "/api/v1/ready"):                  rateLimitExempt,
			middleware.RouteKey(http.MethodGet, "/metrics"):                       rateLimitExempt,
		},
		Rules: map[string]middleware.RateLimitRule{
			rateLimitDefault: {Rate: rps, Burst: burst},
			rateLimitSubmit:  {Rate: rps, Burst: burst},
			rateLimitAnalyze: {Rate: rps / 2, Burst: analyzeBurst},
			rateLimitPolling: {Rate: rps * 5, Burst: burst * 5},
			rateLimitCatalog: {Rate: rps * 2, Burst: burst * 2},
		},
	}
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
