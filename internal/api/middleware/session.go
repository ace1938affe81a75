package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

const (
	SessionCookieName = "dashboard_session"
	tokenIssuer       = "dashboard"
)

// SessionCookies issues and reads the signed cookie that carries a session id.
// The cookie is an HS256 JWT whose subject is the session id.
type SessionCookies struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionCookies(secret string, ttl time.Duration, secure bool) *SessionCookies {
	return &SessionCookies{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

// Issue sets the session cookie for sessionID.
func (s *SessionCookies) Issue(c echo.Context, sessionID string) error {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SessionID returns the session id from a valid cookie.
func (s *SessionCookies) SessionID(c echo.Context) (string, bool) {
	ck, err := c.Cookie(SessionCookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}

	var claims jwt.RegisteredClaims
	tkn, err := jwt.ParseWithClaims(ck.Value, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// Clear expires the session cookie.
func (s *SessionCookies) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Expire forces a local logout of the session in context, if any, and clears
// the cookie. It is the error handler's hook for a backend-rejected session.
func (s *SessionCookies) Expire(c echo.Context) {
	if sess, ok := c.Get("session").(ports.Session); ok && sess != nil {
		sess.Expire(c.Request().Context())
	}
	s.Clear(c)
}

// Session resolves the caller's session and injects it into context under
// "session". Callers without a usable cookie get a fresh anonymous session.
func Session(cookies *SessionCookies, sessions ports.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if id, ok := cookies.SessionID(c); ok {
				s, err := sessions.Open(ctx, id)
				switch {
				case err == nil:
					c.Set("session", s)
					return next(c)
				case !errors.Is(err, domain.ErrNotFound):
					return fmt.Errorf("open session: %w", err)
				}
			}

			s := sessions.Create(ctx)
			if err := cookies.Issue(c, s.ID()); err != nil {
				return err
			}
			c.Set("session", s)
			return next(c)
		}
	}
}
