package service

import (
	"context"
	"sync"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

// fakeUser is one account known to fakeBackend.
type fakeUser struct {
	password   string
	fullName   string
	claims     []domain.RoleClaim
	firstLogin bool
}

// fakeBackend simulates the identity backend; clients created by its factory
// share its accounts.
type fakeBackend struct {
	mu    sync.Mutex
	users map[string]*fakeUser

	verifyErr error
	whoamiErr error
	userErr   error
	updateErr error
	logoutErr error

	// entered/gate let a test hold Verify in flight.
	entered chan struct{}
	gate    chan struct{}

	logouts int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{users: map[string]*fakeUser{}}
}

func (b *fakeBackend) addUser(username, password string, firstLogin bool, roles ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[username] = &fakeUser{password: password, fullName: username + " Example", claims: claims(roles...), firstLogin: firstLogin}
}

func (b *fakeBackend) setClaims(username string, roles ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[username].claims = claims(roles...)
}

func (b *fakeBackend) logoutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logouts
}

func (b *fakeBackend) NewClient(artifact string) ports.IdentityClient {
	c := &fakeClient{backend: b}
	if len(artifact) > len("sid=") {
		c.loggedIn = artifact[len("sid="):]
	}
	return c
}

type fakeClient struct {
	backend  *fakeBackend
	mu       sync.Mutex
	loggedIn string
}

func (c *fakeClient) Verify(_ context.Context, username, password string) (*ports.Verification, error) {
	b := c.backend
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.verifyErr != nil {
		return nil, b.verifyErr
	}
	u, ok := b.users[username]
	if !ok || u.password != password {
		return nil, domain.ErrInvalidCredentials
	}

	c.mu.Lock()
	c.loggedIn = username
	c.mu.Unlock()
	return &ports.Verification{
		Username:    username,
		DisplayName: u.fullName,
		RoleClaims:  u.claims,
		FirstLogin:  u.firstLogin,
	}, nil
}

func (c *fakeClient) WhoAmI(context.Context) (string, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if c.backend.whoamiErr != nil {
		return "", c.backend.whoamiErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn, nil
}

func (c *fakeClient) User(_ context.Context, username string) (*ports.UserRecord, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.userErr != nil {
		return nil, b.userErr
	}
	u, ok := b.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ports.UserRecord{Username: username, FullName: u.fullName, RoleClaims: u.claims, FirstLogin: u.firstLogin}, nil
}

func (c *fakeClient) UpdatePassword(_ context.Context, oldPassword, newPassword string) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return b.updateErr
	}
	c.mu.Lock()
	username := c.loggedIn
	c.mu.Unlock()

	u, ok := b.users[username]
	if !ok {
		return domain.ErrSessionExpired
	}
	if oldPassword == "" && !u.firstLogin {
		return domain.ErrPasswordResetFailed
	}
	u.password = newPassword
	u.firstLogin = false
	return nil
}

func (c *fakeClient) Logout(context.Context) error {
	c.backend.mu.Lock()
	c.backend.logouts++
	err := c.backend.logoutErr
	c.backend.mu.Unlock()

	c.mu.Lock()
	c.loggedIn = ""
	c.mu.Unlock()
	return err
}

func (c *fakeClient) Artifact() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn == "" {
		return ""
	}
	return "sid=" + c.loggedIn
}

// stubRoleStore is an in-memory ports.RoleStore with an injectable error.
type stubRoleStore struct {
	mu    sync.Mutex
	roles map[string]domain.Role
	err   error

	// afterGet runs once Get has read its value, outside the store lock.
	afterGet func()
}

func newStubRoleStore() *stubRoleStore {
	return &stubRoleStore{roles: map[string]domain.Role{}}
}

func (s *stubRoleStore) Get(_ context.Context, username string) (domain.Role, error) {
	s.mu.Lock()
	err := s.err
	r, ok := s.roles[username]
	hook := s.afterGet
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotFound
	}
	return r, nil
}

func (s *stubRoleStore) Set(_ context.Context, username string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.roles[username] = role
	return nil
}

func (s *stubRoleStore) Clear(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.roles, username)
	return nil
}

func (s *stubRoleStore) stored(username string) (domain.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[username]
	return r, ok
}

type stubSnapshotStore struct {
	mu    sync.Mutex
	snaps map[string]domain.Snapshot
}

func newStubSnapshotStore() *stubSnapshotStore {
	return &stubSnapshotStore{snaps: map[string]domain.Snapshot{}}
}

func (s *stubSnapshotStore) Get(_ context.Context, id string) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

func (s *stubSnapshotStore) Set(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.SessionID] = snap
	return nil
}

func (s *stubSnapshotStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (p *recordingPublisher) Publish(ev domain.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) kinds() []domain.SessionEventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.SessionEventKind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

// harness wires a Session to fakes.
type harness struct {
	backend   *fakeBackend
	roles     *stubRoleStore
	snapshots *stubSnapshotStore
	events    *recordingPublisher
}

func newHarness() *harness {
	return &harness{
		backend:   newFakeBackend(),
		roles:     newStubRoleStore(),
		snapshots: newStubSnapshotStore(),
		events:    &recordingPublisher{},
	}
}

func (h *harness) deps() SessionDeps {
	return SessionDeps{
		Clients:   h.backend,
		Roles:     h.roles,
		Snapshots: h.snapshots,
		Events:    h.events,
	}
}

func (h *harness) session(id string) *Session {
	return NewSession(id, h.deps())
}
