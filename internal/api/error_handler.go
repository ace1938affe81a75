package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/deskworks/dashboard/internal/api/handler"
	"github.com/deskworks/dashboard/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
// RedirectTo tells the client where to navigate after an expired session.
type errorResponse struct {
	Error      string `json:"error"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
//
// onExpired runs when the identity backend rejected the session, before the
// response is written. It may be nil.
func NewHTTPErrorHandler(log zerolog.Logger, loginPath string, onExpired func(c echo.Context)) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := errorResponse{}
		code, msg := resolveError(err, log, c)
		resp.Error = msg

		if errors.Is(err, domain.ErrSessionExpired) {
			if onExpired != nil {
				onExpired(c)
			}
			resp.RedirectTo = loginPath
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var ve *handler.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, ve.Message
	}

	// Known domain errors → deterministic HTTP codes. Unavailability is
	// checked first since reset failures may wrap it.
	switch {
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "identity service unavailable, try again"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, "session expired, sign in again"
	case errors.Is(err, domain.ErrNoValidRole):
		return http.StatusForbidden, "this account has no dashboard role"
	case errors.Is(err, domain.ErrPasswordTooShort):
		return http.StatusUnprocessableEntity, fmt.Sprintf("password must be at least %d characters", domain.MinPasswordLength)
	case errors.Is(err, domain.ErrPasswordResetFailed):
		return http.StatusBadGateway, "password could not be changed"
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict, "another sign-in operation is in progress"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusConflict, "the operation was superseded"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
