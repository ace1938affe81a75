package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

// RequireRole admits authenticated sessions whose current role is one of
// allowedRoles. With no roles listed any authenticated session passes.
func RequireRole(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, ok := c.Get("session").(ports.Session)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}
			snap := s.Snapshot()
			if !snap.IsAuthenticated {
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}
			if len(allowed) > 0 {
				if _, ok := allowed[snap.CurrentRole]; !ok {
					return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
				}
			}
			return next(c)
		}
	}
}
