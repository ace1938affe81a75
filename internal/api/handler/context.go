package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deskworks/dashboard/internal/core/ports"
)

// sessionFrom extracts the session injected by the Session middleware. A
// missing session means the route was mounted without it.
func sessionFrom(c echo.Context) (ports.Session, error) {
	s, ok := c.Get("session").(ports.Session)
	if !ok || s == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return s, nil
}
