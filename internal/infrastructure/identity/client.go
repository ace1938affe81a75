// Package identity talks to the remote identity service over JSON/HTTP. The
// backend session rides on cookies held in a per-client jar.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	guestUsername  = "Guest"
	maxBodyBytes   = 1 << 20
)

// Config describes how to reach the identity service.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Transport overrides the HTTP transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Factory builds one Client per dashboard session.
type Factory struct {
	base      *url.URL
	timeout   time.Duration
	transport http.RoundTripper
}

func NewFactory(cfg Config) (*Factory, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("identity base url is required")
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse identity base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("identity base url %q: scheme must be http or https", raw)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Factory{base: base, timeout: timeout, transport: cfg.Transport}, nil
}

// NewClient returns a client whose jar holds the cookies exported in artifact.
// An empty or unparsable artifact yields a client with no backend session.
func (f *Factory) NewClient(artifact string) ports.IdentityClient {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if artifact != "" {
		if cookies, err := http.ParseCookie(artifact); err == nil {
			jar.SetCookies(f.base, cookies)
		}
	}
	return &Client{
		base: f.base,
		jar:  jar,
		http: &http.Client{Timeout: f.timeout, Jar: jar, Transport: f.transport},
	}
}

// Ping reports whether the identity service answers at all.
func (f *Factory) Ping(ctx context.Context) error {
	c := f.NewClient("").(*Client)
	_, err := c.WhoAmI(ctx)
	return err
}

// Client is bound to one backend session.
type Client struct {
	base *url.URL
	jar  http.CookieJar
	http *http.Client
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status string `json:"status"`
	Roles  []any  `json:"roles"`
}

type whoAmIResponse struct {
	Username string `json:"username"`
}

type userResponse struct {
	Username  string          `json:"username"`
	FullName  string          `json:"full_name"`
	Email     string          `json:"email"`
	Roles     []any           `json:"roles"`
	LastLogin json.RawMessage `json:"last_login"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Verify logs in and loads the account record. It maps 401/403 to
// ErrInvalidCredentials and transport or 5xx failures to ErrBackendUnavailable.
func (c *Client) Verify(ctx context.Context, username, password string) (*ports.Verification, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	var login loginResponse
	status, err := c.do(ctx, http.MethodPost, "/login", loginRequest{Username: username, Password: password}, &login)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, domain.ErrInvalidCredentials
	}

	rec, err := c.User(ctx, username)
	if err != nil {
		// The caller never learns about this backend session; drop it here.
		_ = c.Logout(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("load user after login: %w", err)
	}
	claims := rec.RoleClaims
	if len(claims) == 0 {
		claims = domain.ParseRoleClaims(login.Roles)
	}

	return &ports.Verification{
		Username:    rec.Username,
		DisplayName: rec.FullName,
		Email:       rec.Email,
		RoleClaims:  claims,
		FirstLogin:  rec.FirstLogin,
	}, nil
}

// WhoAmI returns "" when the backend reports a guest.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	var out whoAmIResponse
	status, err := c.do(ctx, http.MethodGet, "/whoami", nil, &out)
	if err != nil {
		return "", err
	}
	if err := authedStatus(status); err != nil {
		return "", err
	}
	if out.Username == guestUsername {
		return "", nil
	}
	return out.Username, nil
}

func (c *Client) User(ctx context.Context, username string) (*ports.UserRecord, error) {
	var out userResponse
	status, err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(username), nil, &out)
	if err != nil {
		return nil, err
	}
	if err := authedStatus(status); err != nil {
		return nil, err
	}

	if out.Username == "" {
		out.Username = username
	}
	return &ports.UserRecord{
		Username:   out.Username,
		FullName:   out.FullName,
		Email:      out.Email,
		RoleClaims: domain.ParseRoleClaims(out.Roles),
		FirstLogin: isNull(out.LastLogin),
	}, nil
}

// UpdatePassword rotates the password of the logged-in account. An empty
// oldPassword requests the first-login reset.
func (c *Client) UpdatePassword(ctx context.Context, oldPassword, newPassword string) error {
	status, err := c.do(ctx, http.MethodPost, "/update-password", updatePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrSessionExpired
	case status >= 400:
		return fmt.Errorf("%w: status %d", domain.ErrPasswordResetFailed, status)
	}
	return nil
}

// Logout ends the backend session. The local jar is emptied either way.
func (c *Client) Logout(ctx context.Context) error {
	defer c.clearCookies()

	status, err := c.do(ctx, http.MethodPost, "/logout", nil, nil)
	if err != nil {
		return err
	}
	if status >= 400 && status != http.StatusUnauthorized {
		return fmt.Errorf("logout: status %d", status)
	}
	return nil
}

// Artifact exports the jar's cookies for the identity service as a Cookie
// header value.
func (c *Client) Artifact() string {
	cookies := c.jar.Cookies(c.base)
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

func (c *Client) clearCookies() {
	cookies := c.jar.Cookies(c.base)
	for _, ck := range cookies {
		c.jar.SetCookies(c.base, []*http.Cookie{{Name: ck.Name, Value: "", Path: "/", MaxAge: -1}})
	}
}

// do sends one JSON request. It returns the HTTP status for 2xx/4xx answers and
// ErrBackendUnavailable for transport failures and 5xx answers.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", domain.ErrBackendUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode, fmt.Errorf("%w: %s %s: status %d", domain.ErrBackendUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 300 || out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode %s %s: %w", domain.ErrBackendUnavailable, method, path, err)
	}
	return resp.StatusCode, nil
}

// authedStatus maps the status of a call made on behalf of a logged-in user.
func authedStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrSessionExpired
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status >= 400:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrBackendUnavailable, status)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
