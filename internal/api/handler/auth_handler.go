package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/deskworks/dashboard/internal/api/metrics"
	"github.com/deskworks/dashboard/internal/core/domain"
)

// ActivityLister reads the session audit trail of one account.
type ActivityLister interface {
	ListByUsername(ctx context.Context, username string, limit int64) ([]domain.SessionEvent, error)
}

// CookieClearer drops the dashboard session cookie.
type CookieClearer interface {
	Clear(c echo.Context)
}

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// AuthHandler exposes the session state machine over HTTP. Every method
// operates on the session injected by the Session middleware.
type AuthHandler struct {
	cookies  CookieClearer
	activity ActivityLister
}

// NewAuthHandler builds the handler. activity may be nil when no audit store
// is configured.
func NewAuthHandler(cookies CookieClearer, activity ActivityLister) *AuthHandler {
	return &AuthHandler{cookies: cookies, activity: activity}
}

// Login verifies credentials and starts the session.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := s.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(failureReason(err)).Inc()
		return err
	}

	result := "authenticated"
	if res.RequiresPasswordReset {
		result = "password_reset_required"
	}
	metrics.LoginsTotal.WithLabelValues(result).Inc()

	return c.JSON(http.StatusOK, loginResponse{
		RequiresPasswordReset: res.RequiresPasswordReset,
		Session:               toSessionView(s.Snapshot()),
	})
}

// ResetPassword completes the mandatory first-login password change.
//
// @Summary      Complete first-login password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "New password"
// @Success      200   {object}  sessionView
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	snap := s.Snapshot()
	if snap.Identity != nil && snap.Identity.Username != req.Username {
		metrics.PasswordResetsTotal.WithLabelValues("username_mismatch").Inc()
		return c.JSON(http.StatusForbidden, map[string]string{"error": "username does not match the signed-in account"})
	}

	if err := s.CompletePasswordReset(c.Request().Context(), req.NewPassword); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues(failureReason(err)).Inc()
		return err
	}
	metrics.PasswordResetsTotal.WithLabelValues("ok").Inc()

	return c.JSON(http.StatusOK, toSessionView(s.Snapshot()))
}

// SwitchRole makes another available role current. Unknown or unavailable
// roles leave the session unchanged.
//
// @Summary      Switch the current role
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      switchRoleRequest  true  "Role name"
// @Success      200   {object}  sessionView
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/switch-role [post]
func (h *AuthHandler) SwitchRole(c echo.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var req switchRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	role := domain.Role(req.Role)
	before := s.Snapshot().CurrentRole
	snap := s.SwitchRole(c.Request().Context(), role)
	applied := snap.CurrentRole == role && before != role

	label := req.Role
	if !role.Valid() {
		label = "unknown"
	}
	metrics.RoleSwitchesTotal.WithLabelValues(label, strconv.FormatBool(applied)).Inc()

	return c.JSON(http.StatusOK, toSessionView(snap))
}

// Logout ends the session. It always succeeds.
//
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionView
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	s, err := sessionFrom(c)
	if err == nil {
		s.Logout(c.Request().Context())
	}
	metrics.LogoutsTotal.Inc()
	h.cookies.Clear(c)

	view := sessionView{State: domain.StateAnonymous, AvailableRoles: []domain.Role{}}
	if s != nil {
		view = toSessionView(s.Snapshot())
	}
	return c.JSON(http.StatusOK, view)
}

// Session returns the current session snapshot without contacting the
// identity backend.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionView
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionView(s.Snapshot()))
}

// Revalidate refreshes the session from the identity backend.
//
// @Summary      Revalidate the session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionView
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /auth/revalidate [post]
func (h *AuthHandler) Revalidate(c echo.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}

	snap, err := s.Revalidate(c.Request().Context())
	if err != nil {
		metrics.RevalidationsTotal.WithLabelValues(failureReason(err)).Inc()
		return err
	}
	metrics.RevalidationsTotal.WithLabelValues("ok").Inc()

	return c.JSON(http.StatusOK, toSessionView(snap))
}

// Activity lists the signed-in account's recent session events.
//
// @Summary      Recent session activity
// @Tags         auth
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of events (1-100)"
// @Success      200    {object}  activityResponse
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /auth/activity [get]
func (h *AuthHandler) Activity(c echo.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	snap := s.Snapshot()
	if snap.Identity == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	limit := defaultActivityLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxActivityLimit {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
		}
		limit = n
	}

	events, err := h.activity.ListByUsername(c.Request().Context(), snap.Identity.Username, int64(limit))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, activityResponse{
		Username: snap.Identity.Username,
		Events:   toActivityItems(events),
	})
}

// failureReason turns an operation error into a metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrNoValidRole):
		return "no_valid_role"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, domain.ErrPasswordTooShort):
		return "password_too_short"
	case errors.Is(err, domain.ErrPasswordResetFailed):
		return "reset_failed"
	case errors.Is(err, domain.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrSuperseded):
		return "superseded"
	default:
		return "error"
	}
}
