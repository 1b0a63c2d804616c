package ratelimit

import (
	"github.com/labstack/echo/v4"

	xhttp "PriceCast/pkg/http"
)

// Middleware rejects requests with 429 once the client address has spent
// its bucket.
func Middleware(l *Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Too many requests. Please slow down."))
			}
			return next(c)
		}
	}
}
