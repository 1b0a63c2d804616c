package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	xhttp "PriceCast/pkg/http"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	l := New(2, 1)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per key")

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestLimiter_Sweep(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	l := New(1, 1)
	l.now = func() time.Time { return clock }

	l.Allow("old")
	clock = clock.Add(10 * time.Minute)
	l.Allow("new")

	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.Len(t, l.m, 1)
}

func TestMiddleware_Returns429(t *testing.T) {
	e := echo.New()
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Middleware(New(1, 0)))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail"`)
}

type limitedRoute struct{ l *Limiter }

func (r limitedRoute) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/predict", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Middleware(r.l))
}

func TestMiddleware_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	srv := xhttp.NewServer(limitedRoute{New(1, 0)}, xhttp.WithMetricsPath(""))

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/predict", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{
		http.StatusOK,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}
