package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deskworks/dashboard/internal/api/metrics"
	"github.com/deskworks/dashboard/internal/core/service"
)

// Guard runs the route guard before page handlers and redirects with 303 when
// navigation is not allowed.
func Guard(guard *service.RouteGuard, cookies *SessionCookies) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			sessionID, _ := cookies.SessionID(c)

			d := guard.Evaluate(req.Context(), req.URL.Path, req.URL.RawQuery, sessionID)
			if d.Allow {
				metrics.GuardDecisionsTotal.WithLabelValues("allow", d.Reason).Inc()
				return next(c)
			}
			metrics.GuardDecisionsTotal.WithLabelValues("redirect", d.Reason).Inc()
			return c.Redirect(http.StatusSeeOther, d.Redirect)
		}
	}
}
