package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/service"
)

// PageHandler renders the guarded dashboard pages as JSON. Navigation
// decisions are made by the Guard middleware before it runs.
type PageHandler struct{}

func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Login renders the sign-in page. redirect_uri is echoed back only when it
// stays on this origin.
//
// @Summary      Sign-in page
// @Tags         pages
// @Produce      json
// @Param        redirect_uri  query     string  false  "Path to return to after signing in"
// @Success      200           {object}  pageResponse
// @Router       /login [get]
func (h *PageHandler) Login(c echo.Context) error {
	resp := pageResponse{Page: "login", Session: h.session(c)}
	if raw := c.QueryParam("redirect_uri"); raw != "" {
		resp.RedirectURI = service.SafeRedirectPath(raw)
	}
	return c.JSON(http.StatusOK, resp)
}

// ResetPassword renders the first-login password page.
//
// @Summary      Password reset page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  pageResponse
// @Router       /reset-password [get]
func (h *PageHandler) ResetPassword(c echo.Context) error {
	return c.JSON(http.StatusOK, pageResponse{Page: "reset-password", Session: h.session(c)})
}

// Area renders a role area page; the page name is the request path.
//
// @Summary      Role area page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  pageResponse
// @Failure      303  {string}  string  "redirect chosen by the route guard"
// @Router       /sales [get]
// @Router       /projects [get]
// @Router       /delivery [get]
func (h *PageHandler) Area(c echo.Context) error {
	return c.JSON(http.StatusOK, pageResponse{Page: c.Request().URL.Path, Session: h.session(c)})
}

func (h *PageHandler) session(c echo.Context) sessionView {
	s, err := sessionFrom(c)
	if err != nil {
		return sessionView{State: domain.StateAnonymous, AvailableRoles: []domain.Role{}}
	}
	return toSessionView(s.Snapshot())
}
