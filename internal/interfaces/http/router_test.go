package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/insurance-derivatives/internal/interfaces/http/handlers"
	"github.com/turtacn/insurance-derivatives/internal/interfaces/http/middleware"
	"github.com/turtacn/insurance-derivatives/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter_Routes(t *testing.T) {
	r := NewRouter(RouterConfig{
		RiskHandler:       handlers.NewRiskHandler(nil, testutil.NewMockLogger()),
		ObligationHandler: handlers.NewObligationHandler(nil, testutil.NewMockLogger()),
		DerivativeHandler: handlers.NewDerivativeHandler(nil, nil, testutil.NewMockLogger()),
		Logger:            testutil.NewMockLogger(),
	})

	mounted := make(map[string]bool)
	for _, ri := range r.Routes() {
		mounted[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/risks",
		"POST /api/v1/risks/seed",
		"GET /api/v1/risks/:code",
		"GET /api/v1/obligations",
		"GET /api/v1/obligations/:id",
		"DELETE /api/v1/obligations/:id",
		"GET /api/v1/derivatives",
		"GET /api/v1/derivatives/:id",
		"DELETE /api/v1/derivatives/:id",
		"GET /api/v1/derivatives/:id/snapshots",
		"POST /api/v1/derivatives/:id/snapshots",
	} {
		assert.True(t, mounted[want], want)
	}
	assert.False(t, mounted["GET /healthz"])
	assert.False(t, mounted["GET /metrics"])
}

func TestNewRouter_ProbesAndMetrics(t *testing.T) {
	log := testutil.NewMockLogger()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ledger_up 1\n"))
	})
	r := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler("test",
			handlers.CheckFunc("postgres", func(context.Context) error { return nil })),
		Metrics: metrics,
		Logger:  log,
		Logging: middleware.DefaultLoggingConfig(),
	})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}
	assert.Empty(t, log.GetMessages(), "probe paths are not logged")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/risks", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, log.HasMessage("warn", "HTTP request completed with client error"))
}
