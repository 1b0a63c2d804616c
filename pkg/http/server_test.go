package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type ipRoute struct{}

func (ipRoute) RegisterRoutes(e *echo.Echo) {
	e.GET("/ip", func(c echo.Context) error { return c.String(http.StatusOK, c.RealIP()) })
}

func realIP(t *testing.T, srv *Server, remote, xff string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = remote
	if xff != "" {
		req.Header.Set(echo.HeaderXForwardedFor, xff)
	}
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.9")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec.Body.String()
}

func TestServer_RealIPUsesPeerByDefault(t *testing.T) {
	srv := NewServer(ipRoute{}, WithMetricsPath(""))

	assert.Equal(t, "10.0.0.1", realIP(t, srv, "10.0.0.1:5555", "203.0.113.7"))
	assert.Equal(t, "127.0.0.1", realIP(t, srv, "127.0.0.1:5555", "203.0.113.7"))
}

func TestServer_RealIPHonoursTrustedProxy(t *testing.T) {
	srv := NewServer(ipRoute{}, WithMetricsPath(""), WithTrustedProxies("10.0.0.0/24", "not-a-cidr"))

	assert.Equal(t, "203.0.113.7", realIP(t, srv, "10.0.0.1:5555", "203.0.113.7"))
	assert.Equal(t, "192.168.1.5", realIP(t, srv, "192.168.1.5:5555", "203.0.113.7"), "peer outside the trusted range")
	assert.Equal(t, "10.0.0.1", realIP(t, srv, "10.0.0.1:5555", ""))
}
