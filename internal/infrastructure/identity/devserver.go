package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/deskworks/dashboard/internal/core/domain"
)

const devSessionCookie = "sid"

// DevUser seeds one account of the development identity service. LastLogin nil
// marks an account that must rotate its password on first sign-in.
type DevUser struct {
	Username  string     `json:"username"`
	Password  string     `json:"password"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Roles     []any      `json:"roles"`
	LastLogin *time.Time `json:"last_login"`
}

// DefaultDevUsers has one account per role plus a first-login account.
func DefaultDevUsers() []DevUser {
	seen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []DevUser{
		{Username: "sales", Password: "sales-pass", FullName: "Sam Sales", Email: "sales@example.com", Roles: []any{"Sales User"}, LastLogin: &seen},
		{Username: "salesmgr", Password: "salesmgr-pass", FullName: "Morgan Manager", Email: "salesmgr@example.com", Roles: []any{"Sales User", map[string]any{"role": "Sales Manager"}}, LastLogin: &seen},
		{Username: "projects", Password: "projects-pass", FullName: "Pat Projects", Email: "projects@example.com", Roles: []any{"Projects User", "Projects Manager"}, LastLogin: &seen},
		{Username: "delivery", Password: "delivery-pass", FullName: "Dana Delivery", Email: "delivery@example.com", Roles: []any{map[string]any{"name": "Delivery Manager"}}, LastLogin: &seen},
		{Username: "newhire", Password: "welcome1", FullName: "Nico Newhire", Email: "newhire@example.com", Roles: []any{"Sales User"}},
		{Username: "guest", Password: "guest-pass", FullName: "Gale Guest", Email: "guest@example.com", Roles: []any{"Website Manager"}, LastLogin: &seen},
	}
}

// LoadDevUsers reads seed accounts from a JSON file.
func LoadDevUsers(path string) ([]DevUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dev users: %w", err)
	}
	var users []DevUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("unmarshal dev users: %w", err)
	}
	return users, nil
}

type devAccount struct {
	user DevUser
	hash []byte
}

// DevServer is an in-process stand-in for the identity service, speaking the
// same wire protocol as Client expects.
type DevServer struct {
	mu       sync.Mutex
	accounts map[string]*devAccount
	sessions map[string]string // sid -> username
	cost     int
	now      func() time.Time
	log      zerolog.Logger
}

// NewDevServer hashes the seed passwords with bcrypt at cost. Pass
// bcrypt.MinCost in tests.
func NewDevServer(users []DevUser, cost int, log zerolog.Logger) (*DevServer, error) {
	s := &DevServer{
		accounts: make(map[string]*devAccount, len(users)),
		sessions: make(map[string]string),
		cost:     cost,
		now:      time.Now,
		log:      log,
	}
	for _, u := range users {
		if u.Username == "" {
			return nil, errors.New("dev user without username")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		u.Password = ""
		s.accounts[u.Username] = &devAccount{user: u, hash: hash}
	}
	return s, nil
}

// Handler returns the echo instance serving the identity endpoints.
func (s *DevServer) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())

	e.POST("/login", s.login)
	e.GET("/whoami", s.whoAmI)
	e.GET("/user/:username", s.user, s.requireSession)
	e.POST("/update-password", s.updatePassword, s.requireSession)
	e.POST("/logout", s.logout)
	return e
}

func (s *DevServer) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid payload"})
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		s.log.Info().Str("username", req.Username).Msg("dev identity: login rejected")
		return c.JSON(http.StatusUnauthorized, map[string]string{"status": "error", "message": "Invalid login credentials"})
	}

	sid := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = acct.user.Username
	// First-login accounts keep a null last_login until they rotate the password.
	if acct.user.LastLogin != nil {
		now := s.now().UTC()
		acct.user.LastLogin = &now
	}
	roles := acct.user.Roles
	s.mu.Unlock()

	c.SetCookie(&http.Cookie{Name: devSessionCookie, Value: sid, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return c.JSON(http.StatusOK, loginResponse{Status: "ok", Roles: roles})
}

func (s *DevServer) whoAmI(c echo.Context) error {
	username, ok := s.sessionUser(c)
	if !ok {
		username = guestUsername
	}
	return c.JSON(http.StatusOK, whoAmIResponse{Username: username})
}

func (s *DevServer) user(c echo.Context) error {
	s.mu.Lock()
	acct, ok := s.accounts[c.Param("username")]
	var u DevUser
	if ok {
		u = acct.user
	}
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "user not found"})
	}

	out := map[string]any{
		"username":   u.Username,
		"full_name":  u.FullName,
		"email":      u.Email,
		"roles":      u.Roles,
		"last_login": nil,
	}
	if u.LastLogin != nil {
		out["last_login"] = u.LastLogin.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, out)
}

// updatePassword accepts an empty old password only while the account has
// never completed a login.
func (s *DevServer) updatePassword(c echo.Context) error {
	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid payload"})
	}
	if utf8.RuneCountInString(req.NewPassword) < domain.MinPasswordLength {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"message": "password too short"})
	}

	username := c.Get("username").(string)
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[username]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "user not found"})
	}
	if req.OldPassword == "" {
		if acct.user.LastLogin != nil {
			return c.JSON(http.StatusConflict, map[string]string{"message": "old password required"})
		}
	} else if bcrypt.CompareHashAndPassword(acct.hash, []byte(req.OldPassword)) != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "old password does not match"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	now := s.now().UTC()
	acct.hash = hash
	acct.user.LastLogin = &now

	s.log.Info().Str("username", username).Msg("dev identity: password updated")
	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *DevServer) logout(c echo.Context) error {
	if ck, err := c.Cookie(devSessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, ck.Value)
		s.mu.Unlock()
	}
	c.SetCookie(&http.Cookie{Name: devSessionCookie, Value: "", Path: "/", MaxAge: -1})
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *DevServer) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		username, ok := s.sessionUser(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "not logged in"})
		}
		c.Set("username", username)
		return next(c)
	}
}

func (s *DevServer) sessionUser(c echo.Context) (string, bool) {
	ck, err := c.Cookie(devSessionCookie)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.sessions[ck.Value]
	return username, ok
}

// DropSessions forgets every backend session, as a restarted service would.
func (s *DevServer) DropSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]string)
}
