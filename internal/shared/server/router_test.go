package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"skincare-backend/internal/shared/config"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func testConfig() config.Config {
	return config.Config{
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		RateLimitRPS:    100,
		RateLimitBurst:  100,
	}
}

func TestRouterHealthAndHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterDeps{Config: testConfig(), Handlers: []RouteRegistrar{pingHandler{}, nil}})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "pong", resp.Body.String())
}

func TestRouterReadyReportsDependencyFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterDeps{
		Config: testConfig(),
		Ready:  func(*gin.Context) error { return errors.New("database unreachable") },
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Contains(t, resp.Body.String(), "not_ready")
}

func TestRouterServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterDeps{Config: testConfig()})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "worker_jobs_in_flight")
}

type consultationRoutes struct{}

func (consultationRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/consultations", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	rg.POST("/consultations/analyze", func(c *gin.Context) { c.Status(http.StatusOK) })
	rg.GET("/consultations/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
}

func TestRouterRateLimitsConsultationRoutesSeparately(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 2
	r := NewRouter(RouterDeps{Config: cfg, Handlers: []RouteRegistrar{consultationRoutes{}}})

	send := func(method, path string) int {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(method, path, nil))
		return resp.Code
	}

	require.Equal(t, http.StatusOK, send(http.MethodPost, "/api/v1/consultations/analyze"))
	require.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/api/v1/consultations/analyze"))

	require.Equal(t, http.StatusAccepted, send(http.MethodPost, "/api/v1/consultations"))
	require.Equal(t, http.StatusAccepted, send(http.MethodPost, "/api/v1/consultations"))
	require.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/api/v1/consultations"))

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/consultations/c-1"), "poll %d", i+1)
	}
	require.Equal(t, http.StatusTooManyRequests, send(http.MethodGet, "/api/v1/consultations/c-1"))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/health"))
	}
}

func TestAddr(t *testing.T) {
	require.Equal(t, ":8080", Addr(""))
	require.Equal(t, ":9000", Addr("9000"))
	require.Equal(t, ":9000", Addr(":9000"))
}
