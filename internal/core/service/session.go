package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

const defaultRemoteTimeout = 5 * time.Second

// SessionDeps groups the collaborators shared by every Session.
type SessionDeps struct {
	Clients   ports.IdentityClientFactory
	Resolver  *RoleResolver
	Roles     ports.RoleStore
	Snapshots ports.SnapshotStore
	Events    ports.SessionEventPublisher
	Log       zerolog.Logger
	Now       func() time.Time
	// RemoteTimeout bounds the best-effort backend logout.
	RemoteTimeout time.Duration
}

func (d SessionDeps) withDefaults() SessionDeps {
	if d.Resolver == nil {
		d.Resolver = NewRoleResolver(nil)
	}
	if d.Events == nil {
		d.Events = ports.NopPublisher{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RemoteTimeout <= 0 {
		d.RemoteTimeout = defaultRemoteTimeout
	}
	return d
}

// Session is the state machine of one client session:
//
//	Anonymous ──Login──▶ PasswordResetRequired ──CompletePasswordReset──▶ Authenticated(role)
//	Anonymous ──Login──▶ Authenticated(role) ──SwitchRole──▶ Authenticated(role')
//	any ──Logout/Expire──▶ Anonymous
//
// Login, Revalidate and CompletePasswordReset talk to the backend without
// holding the lock; only one of them may be in flight, and each commits only
// if no Logout or Expire happened meanwhile.
type Session struct {
	id   string
	deps SessionDeps
	log  zerolog.Logger

	mu        sync.Mutex
	client    ports.IdentityClient
	state     domain.SessionState
	identity  *domain.Identity
	current   domain.Role
	available []domain.Role
	inFlight  bool
	attempt   uint64
	lastErr   error
}

// NewSession returns an anonymous session.
func NewSession(id string, deps SessionDeps) *Session {
	s := newSession(id, deps)
	s.client = s.deps.Clients.NewClient("")
	return s
}

// RestoreSession rebuilds a session from its last persisted snapshot. A
// snapshot that no longer satisfies the session invariants restores as
// anonymous.
func RestoreSession(snap domain.Snapshot, deps SessionDeps) *Session {
	s := newSession(snap.SessionID, deps)
	s.client = s.deps.Clients.NewClient(snap.BackendArtifact)

	if snap.Identity == nil {
		return s
	}
	id := snap.Identity.Identity()
	if snap.Identity.RequiresPasswordReset {
		s.requireResetLocked(id)
		return s
	}

	roles := append([]domain.Role{}, snap.Identity.Roles...)
	role := SelectRole(roles, snap.CurrentRole)
	if role == "" {
		return s
	}
	s.authenticateLocked(id, roles, role)
	return s
}

func newSession(id string, deps SessionDeps) *Session {
	deps = deps.withDefaults()
	return &Session{
		id:    id,
		deps:  deps,
		log:   deps.Log.With().Str("session_id", id).Logger(),
		state: domain.StateAnonymous,
	}
}

func (s *Session) ID() string { return s.id }

// attempt captures what an asynchronous transition started from.
type attempt struct {
	seq      uint64
	client   ports.IdentityClient
	identity *domain.Identity
}

func (s *Session) begin(t domain.Transition) (attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return attempt{}, domain.ErrBusy
	}
	if !s.state.Allows(t) {
		return attempt{}, fmt.Errorf("%w: %s while %s", domain.ErrInvalidTransition, t, s.state)
	}
	s.attempt++
	s.inFlight = true
	s.lastErr = nil
	return attempt{seq: s.attempt, client: s.client, identity: s.identity}, nil
}

// commit applies fn if a is still the current attempt and persists the result.
func (s *Session) commit(ctx context.Context, a attempt, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.seq != s.attempt {
		return domain.ErrSuperseded
	}
	fn()
	s.inFlight = false
	s.persistLocked(ctx)
	return nil
}

// fail ends attempt a without changing state and records err.
func (s *Session) fail(a attempt, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.seq == s.attempt {
		s.inFlight = false
		s.lastErr = err
	}
	return err
}

// Login verifies credentials and moves an anonymous session to
// PasswordResetRequired or Authenticated.
func (s *Session) Login(ctx context.Context, username, password string) (ports.LoginResult, error) {
	a, err := s.begin(domain.TransitionLogin)
	if err != nil {
		return ports.LoginResult{}, err
	}

	if username == "" || password == "" {
		s.publish(domain.EventLoginFailed, username, domain.StateAnonymous, "", domain.ErrInvalidCredentials)
		return ports.LoginResult{}, s.fail(a, domain.ErrInvalidCredentials)
	}

	v, err := a.client.Verify(ctx, username, password)
	if err != nil {
		s.log.Info().Err(err).Str("username", username).Msg("login failed")
		s.publish(domain.EventLoginFailed, username, domain.StateAnonymous, "", err)
		return ports.LoginResult{}, s.fail(a, err)
	}

	res, err := s.settle(ctx, a, identityFromVerification(v, username), domain.EventLogin, domain.StateAnonymous)
	if errors.Is(err, domain.ErrSuperseded) {
		// The backend session this attempt opened is orphaned.
		s.revoke(ctx, a.client)
	}
	return res, err
}

// Revalidate recomputes the session from the backend's view of the current
// backend session. Calling it repeatedly without backend changes is a no-op.
func (s *Session) Revalidate(ctx context.Context) (domain.Snapshot, error) {
	a, err := s.begin(domain.TransitionRevalidate)
	if err != nil {
		return s.Snapshot(), err
	}

	username, err := a.client.WhoAmI(ctx)
	if err != nil {
		err = s.backendFailed(ctx, a, err)
		return s.Snapshot(), err
	}
	if username == "" {
		err = s.commit(ctx, a, s.resetLocked)
		return s.Snapshot(), err
	}

	rec, err := a.client.User(ctx, username)
	if err != nil {
		err = s.backendFailed(ctx, a, err)
		return s.Snapshot(), err
	}

	id := &domain.Identity{
		Username:              rec.Username,
		DisplayName:           rec.FullName,
		Email:                 rec.Email,
		RawRoleClaims:         rec.RoleClaims,
		RequiresPasswordReset: rec.FirstLogin,
	}
	if id.Username == "" {
		id.Username = username
	}
	// Snapshot must be taken after settle has committed.
	_, err = s.settle(ctx, a, id, domain.EventRevalidated, domain.StateAnonymous)
	return s.Snapshot(), err
}

// CompletePasswordReset rotates the first-login password and signs in again
// with it. On failure the session stays in PasswordResetRequired.
func (s *Session) CompletePasswordReset(ctx context.Context, newPassword string) error {
	a, err := s.begin(domain.TransitionCompletePasswordReset)
	if err != nil {
		return err
	}

	if utf8.RuneCountInString(newPassword) < domain.MinPasswordLength {
		return s.fail(a, domain.ErrPasswordTooShort)
	}

	username := a.identity.Username
	// An empty old password marks the first-login reset flow; the backend only
	// honours it while the account has never logged in.
	if err := a.client.UpdatePassword(ctx, "", newPassword); err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return s.backendFailed(ctx, a, err)
		}
		if !errors.Is(err, domain.ErrPasswordResetFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrPasswordResetFailed, err)
		}
		return s.fail(a, err)
	}

	v, err := a.client.Verify(ctx, username, newPassword)
	if err != nil {
		return s.backendFailed(ctx, a, err)
	}
	id := identityFromVerification(v, username)
	id.RequiresPasswordReset = false

	_, err = s.settle(ctx, a, id, domain.EventPasswordReset, domain.StatePasswordResetRequired)
	return err
}

// SwitchRole makes role current if it is one of the available roles of an
// authenticated session. Anything else leaves the session untouched.
func (s *Session) SwitchRole(ctx context.Context, role domain.Role) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Allows(domain.TransitionSwitchRole) || !domain.ContainsRole(s.available, role) || role == s.current {
		return s.snapshotLocked()
	}

	s.current = role
	s.storeRole(ctx, s.identity.Username, role)
	s.persistLocked(ctx)
	s.publish(domain.EventRoleSwitched, s.identity.Username, s.state, role, nil)
	s.log.Info().Str("username", s.identity.Username).Str("role", string(role)).Msg("role switched")

	return s.snapshotLocked()
}

// Logout clears the session unconditionally and drops the persisted role
// selection. The backend session is revoked best-effort.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	client := s.client
	username := s.usernameLocked()

	s.attempt++
	s.inFlight = false
	s.resetLocked()
	s.lastErr = nil
	s.client = s.deps.Clients.NewClient("")
	if username != "" {
		if err := s.deps.Roles.Clear(ctx, username); err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("failed to clear persisted role")
		}
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(domain.EventLogout, username, domain.StateAnonymous, "", nil)
	s.revoke(ctx, client)
}

// Expire drops local state after the backend rejected the session. The
// persisted role selection is kept; it is only a hint for the next login.
func (s *Session) Expire(ctx context.Context) {
	s.mu.Lock()
	username := s.usernameLocked()

	s.attempt++
	s.inFlight = false
	s.resetLocked()
	s.lastErr = domain.ErrSessionExpired
	s.client = s.deps.Clients.NewClient("")
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(domain.EventExpired, username, domain.StateAnonymous, "", domain.ErrSessionExpired)
	s.log.Info().Str("username", username).Msg("session expired")
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// settle lands a verified identity: PasswordResetRequired when a reset is
// pending, Authenticated when at least one role resolves. With no usable role
// the session falls back to noRole.
func (s *Session) settle(
	ctx context.Context,
	a attempt,
	id *domain.Identity,
	kind domain.SessionEventKind,
	noRole domain.SessionState,
) (ports.LoginResult, error) {
	if id.RequiresPasswordReset {
		if err := s.commit(ctx, a, func() { s.requireResetLocked(id) }); err != nil {
			return ports.LoginResult{}, err
		}
		s.publish(kind, id.Username, domain.StatePasswordResetRequired, "", nil)
		s.log.Info().Str("username", id.Username).Msg("password reset required")
		return ports.LoginResult{RequiresPasswordReset: true}, nil
	}

	roles := s.deps.Resolver.Resolve(id.RawRoleClaims)
	if len(roles) == 0 {
		return ports.LoginResult{}, s.noValidRole(ctx, a, id, kind, noRole)
	}

	preferred := s.persistedRole(ctx, id.Username)
	var role domain.Role
	changed := false
	err := s.commit(ctx, a, func() {
		// A SwitchRole that landed while the backend call was in flight wins
		// over the selection read before it.
		if s.usernameLocked() == id.Username && domain.ContainsRole(roles, s.current) {
			preferred = s.current
		}
		role = SelectRole(roles, preferred)
		changed = s.state != domain.StateAuthenticated || s.current != role || s.usernameLocked() != id.Username
		s.authenticateLocked(id, roles, role)
		s.storeRole(ctx, id.Username, role)
	})
	if err != nil {
		return ports.LoginResult{}, err
	}

	if changed || kind != domain.EventRevalidated {
		s.publish(kind, id.Username, domain.StateAuthenticated, role, nil)
		s.log.Info().Str("username", id.Username).Str("role", string(role)).Str("event", string(kind)).Msg("session authenticated")
	}
	return ports.LoginResult{}, nil
}

func (s *Session) noValidRole(
	ctx context.Context,
	a attempt,
	id *domain.Identity,
	kind domain.SessionEventKind,
	noRole domain.SessionState,
) error {
	s.log.Warn().Str("username", id.Username).Msg("no claim maps to an application role")

	if noRole == domain.StatePasswordResetRequired {
		err := s.commit(ctx, a, func() {
			s.requireResetLocked(a.identity)
			s.lastErr = domain.ErrNoValidRole
		})
		if err != nil {
			return err
		}
		s.publish(kind, id.Username, domain.StatePasswordResetRequired, "", domain.ErrNoValidRole)
		return domain.ErrNoValidRole
	}

	s.revoke(ctx, a.client)
	err := s.commit(ctx, a, func() {
		s.resetLocked()
		s.client = s.deps.Clients.NewClient("")
		s.lastErr = domain.ErrNoValidRole
	})
	if err != nil {
		return err
	}
	s.publish(domain.EventLoginFailed, id.Username, domain.StateAnonymous, "", domain.ErrNoValidRole)
	return domain.ErrNoValidRole
}

// backendFailed handles an error from an authenticated backend call. An
// expired backend session logs the client out locally; anything else leaves
// state untouched so a retry can succeed.
func (s *Session) backendFailed(ctx context.Context, a attempt, err error) error {
	if !errors.Is(err, domain.ErrSessionExpired) {
		return s.fail(a, err)
	}

	cerr := s.commit(ctx, a, func() {
		s.resetLocked()
		s.client = s.deps.Clients.NewClient("")
		s.lastErr = err
	})
	if cerr != nil {
		return cerr
	}
	username := ""
	if a.identity != nil {
		username = a.identity.Username
	}
	s.publish(domain.EventExpired, username, domain.StateAnonymous, "", err)
	return err
}

func (s *Session) revoke(ctx context.Context, client ports.IdentityClient) {
	if client == nil || client.Artifact() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.RemoteTimeout)
	defer cancel()

	if err := client.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("backend logout failed")
	}
}

func (s *Session) persistedRole(ctx context.Context, username string) domain.Role {
	role, err := s.deps.Roles.Get(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Str("username", username).Msg("failed to read persisted role")
		}
		return ""
	}
	return role
}

func (s *Session) storeRole(ctx context.Context, username string, role domain.Role) {
	if err := s.deps.Roles.Set(ctx, username, role); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("failed to persist role selection")
	}
}

func (s *Session) publish(kind domain.SessionEventKind, username string, state domain.SessionState, role domain.Role, err error) {
	ev := domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Username:  username,
		Kind:      kind,
		State:     state,
		Role:      role,
		Timestamp: s.deps.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.deps.Events.Publish(ev)
}

func (s *Session) persistLocked(ctx context.Context) {
	if s.state == domain.StateAnonymous {
		if err := s.deps.Snapshots.Clear(ctx, s.id); err != nil {
			s.log.Warn().Err(err).Msg("failed to clear session snapshot")
		}
		return
	}
	if err := s.deps.Snapshots.Set(ctx, s.snapshotLocked()); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist session snapshot")
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:       s.id,
		State:           s.state,
		Identity:        s.identity.Snapshot(s.available),
		CurrentRole:     s.current,
		AvailableRoles:  append([]domain.Role{}, s.available...),
		IsAuthenticated: s.identity != nil && !s.identity.RequiresPasswordReset && s.current != "",
		Loading:         s.inFlight,
		BackendArtifact: s.client.Artifact(),
		UpdatedAt:       s.deps.Now().UTC(),
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

func (s *Session) resetLocked() {
	s.state = domain.StateAnonymous
	s.identity = nil
	s.current = ""
	s.available = nil
}

func (s *Session) requireResetLocked(id *domain.Identity) {
	s.state = domain.StatePasswordResetRequired
	s.identity = id
	s.current = ""
	s.available = nil
}

func (s *Session) authenticateLocked(id *domain.Identity, roles []domain.Role, role domain.Role) {
	s.state = domain.StateAuthenticated
	s.identity = id
	s.available = roles
	s.current = role
}

func (s *Session) usernameLocked() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.Username
}

func identityFromVerification(v *ports.Verification, username string) *domain.Identity {
	if v.Username != "" {
		username = v.Username
	}
	return &domain.Identity{
		Username:              username,
		DisplayName:           v.DisplayName,
		Email:                 v.Email,
		RawRoleClaims:         v.RoleClaims,
		RequiresPasswordReset: v.FirstLogin,
	}
}
