package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/deskworks/dashboard/internal/api/handler"
	"github.com/deskworks/dashboard/internal/api/middleware"
	"github.com/deskworks/dashboard/internal/core/ports"
	"github.com/deskworks/dashboard/internal/core/service"
)

// Dependencies is everything the dashboard router wires together.
type Dependencies struct {
	Sessions ports.SessionManager
	Cookies  *middleware.SessionCookies
	Guard    *service.RouteGuard
	// Activity is optional; /auth/activity is only mounted when set.
	Activity handler.ActivityLister
	Log      zerolog.Logger

	LoginRate  float64
	LoginBurst int

	// Registerer receives the HTTP request metrics. Defaults to the global
	// Prometheus registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	table := deps.Guard.Table()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log, table.LoginPath, deps.Cookies.Expire)

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "dashboard",
		Registerer: registerer,
	}))

	session := middleware.Session(deps.Cookies, deps.Sessions)

	// --- Session API ---
	authHandler := handler.NewAuthHandler(deps.Cookies, deps.Activity)
	auth := e.Group("/auth", session)
	auth.POST("/login", authHandler.Login, middleware.LoginRateLimit(deps.LoginRate, deps.LoginBurst))
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.POST("/switch-role", authHandler.SwitchRole)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", authHandler.Session)
	auth.POST("/revalidate", authHandler.Revalidate)
	if deps.Activity != nil {
		auth.GET("/activity", authHandler.Activity, middleware.RequireRole())
	}

	// --- Guarded pages ---
	pageHandler := handler.NewPageHandler()
	guard := middleware.Guard(deps.Guard, deps.Cookies)

	e.GET(table.LoginPath, pageHandler.Login, session, guard)
	e.GET("/", pageHandler.Login, session, guard)
	e.GET(table.PasswordResetPath, pageHandler.ResetPassword, session, guard)
	for _, g := range table.Gated {
		e.GET(g.Prefix, pageHandler.Area, session, guard)
		e.GET(g.Prefix+"/*", pageHandler.Area, session, guard)
	}

	return e
}

// requestLogger writes one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
