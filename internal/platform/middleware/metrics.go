package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/metrics"
)

// Metrics records request counts and latency labelled by route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			metrics.RequestStarted()
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.RequestFinished(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}
