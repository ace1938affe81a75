package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskworks/dashboard/internal/core/domain"
)

func TestSession_LoginSelectsFirstResolvedRole(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User", "Sales Manager")
	s := h.session("s1")

	res, err := s.Login(context.Background(), "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.False(t, res.RequiresPasswordReset)

	snap := s.Snapshot()
	assert.Equal(t, domain.StateAuthenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.Loading)
	assert.Equal(t, domain.RoleSalesUser, snap.CurrentRole)
	assert.Equal(t, []domain.Role{domain.RoleSalesUser, domain.RoleSalesManager}, snap.AvailableRoles)
	assert.Equal(t, "sid=ana", snap.BackendArtifact)

	role, ok := h.roles.stored("ana")
	assert.True(t, ok)
	assert.Equal(t, domain.RoleSalesUser, role)

	stored, err := h.snapshots.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSalesUser, stored.CurrentRole)
	assert.Equal(t, []domain.SessionEventKind{domain.EventLogin}, h.events.kinds())
}

func TestSession_LoginPrefersPersistedRole(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User", "Sales Manager")
	h.roles.roles["ana"] = domain.RoleSalesManager

	s := h.session("s1")
	_, err := s.Login(context.Background(), "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSalesManager, s.Snapshot().CurrentRole)
}

func TestSession_LoginIgnoresStalePersistedRole(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Projects User")
	h.roles.roles["ana"] = domain.RoleDeliveryManager

	s := h.session("s1")
	_, err := s.Login(context.Background(), "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleProjectsUser, s.Snapshot().CurrentRole)

	role, _ := h.roles.stored("ana")
	assert.Equal(t, domain.RoleProjectsUser, role)
}

func TestSession_LoginSurvivesRoleStoreFailure(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Delivery Manager")
	h.roles.err = errors.New("redis down")

	s := h.session("s1")
	_, err := s.Login(context.Background(), "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDeliveryManager, s.Snapshot().CurrentRole)
}

func TestSession_LoginWithoutValidRole(t *testing.T) {
	h := newHarness()
	h.backend.addUser("bob", "s3cret-pass", false, "Unknown Role")
	s := h.session("s1")

	_, err := s.Login(context.Background(), "bob", "s3cret-pass")
	require.ErrorIs(t, err, domain.ErrNoValidRole)

	snap := s.Snapshot()
	assert.Equal(t, domain.StateAnonymous, snap.State)
	assert.Nil(t, snap.Identity)
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.BackendArtifact)
	assert.Equal(t, domain.ErrNoValidRole.Error(), snap.Error)
	assert.Equal(t, 1, h.backend.logoutCount(), "backend session should be revoked")

	_, err = h.snapshots.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []domain.SessionEventKind{domain.EventLoginFailed}, h.events.kinds())
}

func TestSession_LoginFirstLoginRequiresReset(t *testing.T) {
	h := newHarness()
	h.backend.addUser("cy", "temp-pass", true, "Sales User")
	s := h.session("s1")

	res, err := s.Login(context.Background(), "cy", "temp-pass")
	require.NoError(t, err)
	assert.True(t, res.RequiresPasswordReset)

	snap := s.Snapshot()
	assert.Equal(t, domain.StatePasswordResetRequired, snap.State)
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.AvailableRoles)
	assert.Empty(t, snap.CurrentRole)
	require.NotNil(t, snap.Identity)
	assert.True(t, snap.Identity.RequiresPasswordReset)
	assert.Empty(t, snap.Identity.Roles)

	_, ok := h.roles.stored("cy")
	assert.False(t, ok)
}

func TestSession_LoginFailures(t *testing.T) {
	cases := []struct {
		name      string
		username  string
		password  string
		verifyErr error
		want      error
	}{
		{"wrong password", "ana", "nope", nil, domain.ErrInvalidCredentials},
		{"unknown user", "zed", "whatever", nil, domain.ErrInvalidCredentials},
		{"empty username", "", "whatever", nil, domain.ErrInvalidCredentials},
		{"empty password", "ana", "", nil, domain.ErrInvalidCredentials},
		{"backend down", "ana", "s3cret-pass", domain.ErrBackendUnavailable, domain.ErrBackendUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
			h.backend.verifyErr = tc.verifyErr
			s := h.session("s1")

			_, err := s.Login(context.Background(), tc.username, tc.password)
			require.ErrorIs(t, err, tc.want)

			snap := s.Snapshot()
			assert.Equal(t, domain.StateAnonymous, snap.State)
			assert.False(t, snap.Loading)
			assert.Equal(t, tc.want.Error(), snap.Error)
			assert.Equal(t, []domain.SessionEventKind{domain.EventLoginFailed}, h.events.kinds())
		})
	}
}

func TestSession_LoginOnlyFromAnonymous(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	s := h.session("s1")

	_, err := s.Login(context.Background(), "ana", "s3cret-pass")
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "ana", "s3cret-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StateAuthenticated, s.Snapshot().State)
}

func TestSession_SwitchRole(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales Manager", "Sales User")
	s := h.session("s1")
	ctx := context.Background()

	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, domain.RoleSalesManager, s.Snapshot().CurrentRole)

	t.Run("unavailable role is a no-op", func(t *testing.T) {
		snap := s.SwitchRole(ctx, domain.RoleProjectsManager)
		assert.Equal(t, domain.RoleSalesManager, snap.CurrentRole)
		role, _ := h.roles.stored("ana")
		assert.Equal(t, domain.RoleSalesManager, role)
	})

	t.Run("available role becomes current and persisted", func(t *testing.T) {
		snap := s.SwitchRole(ctx, domain.RoleSalesUser)
		assert.Equal(t, domain.RoleSalesUser, snap.CurrentRole)
		role, _ := h.roles.stored("ana")
		assert.Equal(t, domain.RoleSalesUser, role)

		stored, err := h.snapshots.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleSalesUser, stored.CurrentRole)
	})

	t.Run("same role is idempotent", func(t *testing.T) {
		before := len(h.events.kinds())
		snap := s.SwitchRole(ctx, domain.RoleSalesUser)
		assert.Equal(t, domain.RoleSalesUser, snap.CurrentRole)
		assert.Len(t, h.events.kinds(), before)
	})
}

func TestSession_SwitchRoleIgnoredOutsideAuthenticated(t *testing.T) {
	h := newHarness()
	h.backend.addUser("cy", "temp-pass", true, "Sales User")
	s := h.session("s1")
	ctx := context.Background()

	snap := s.SwitchRole(ctx, domain.RoleSalesUser)
	assert.Equal(t, domain.StateAnonymous, snap.State)

	_, err := s.Login(ctx, "cy", "temp-pass")
	require.NoError(t, err)
	snap = s.SwitchRole(ctx, domain.RoleSalesUser)
	assert.Equal(t, domain.StatePasswordResetRequired, snap.State)
	assert.Empty(t, snap.CurrentRole)
}

func TestSession_PersistedRoleRoundTrip(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Projects User", "Projects Manager")
	ctx := context.Background()

	first := h.session("s1")
	_, err := first.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	first.SwitchRole(ctx, domain.RoleProjectsManager)

	// A second client for the same user starts on the last selected role.
	second := h.session("s2")
	_, err = second.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleProjectsManager, second.Snapshot().CurrentRole)
}

func TestSession_Logout(t *testing.T) {
	setups := map[string]func(t *testing.T, h *harness, s *Session){
		"anonymous": func(*testing.T, *harness, *Session) {},
		"password reset required": func(t *testing.T, h *harness, s *Session) {
			h.backend.addUser("cy", "temp-pass", true, "Sales User")
			_, err := s.Login(context.Background(), "cy", "temp-pass")
			require.NoError(t, err)
		},
		"authenticated": func(t *testing.T, h *harness, s *Session) {
			h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
			_, err := s.Login(context.Background(), "ana", "s3cret-pass")
			require.NoError(t, err)
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			s := h.session("s1")
			setup(t, h, s)

			s.Logout(context.Background())

			snap := s.Snapshot()
			assert.Equal(t, domain.StateAnonymous, snap.State)
			assert.Nil(t, snap.Identity)
			assert.Empty(t, snap.CurrentRole)
			assert.Empty(t, snap.AvailableRoles)
			assert.False(t, snap.IsAuthenticated)
			assert.Empty(t, snap.Error)
			assert.Empty(t, snap.BackendArtifact)
			assert.Empty(t, h.roles.roles)

			_, err := h.snapshots.Get(context.Background(), "s1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestSession_LogoutSwallowsBackendFailure(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	s := h.session("s1")
	_, err := s.Login(context.Background(), "ana", "s3cret-pass")
	require.NoError(t, err)

	h.backend.logoutErr = domain.ErrBackendUnavailable
	s.Logout(context.Background())

	assert.Equal(t, 1, h.backend.logoutCount())
	assert.Equal(t, domain.StateAnonymous, s.Snapshot().State)
}

func TestSession_RevalidateIsIdempotent(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User", "Delivery Manager")
	s := h.session("s1")
	ctx := context.Background()

	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	s.SwitchRole(ctx, domain.RoleDeliveryManager)

	first, err := s.Revalidate(ctx)
	require.NoError(t, err)
	second, err := s.Revalidate(ctx)
	require.NoError(t, err)

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
	assert.Equal(t, domain.RoleDeliveryManager, second.CurrentRole)
	assert.NotContains(t, h.events.kinds(), domain.EventRevalidated)
}

func TestSession_RevalidatePicksUpClaimChanges(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User", "Sales Manager")
	s := h.session("s1")
	ctx := context.Background()

	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	s.SwitchRole(ctx, domain.RoleSalesManager)

	h.backend.setClaims("ana", "Sales User")
	snap, err := s.Revalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSalesUser, snap.CurrentRole)
	assert.Equal(t, []domain.Role{domain.RoleSalesUser}, snap.AvailableRoles)
	assert.Contains(t, h.events.kinds(), domain.EventRevalidated)

	h.backend.setClaims("ana", "Guest")
	snap, err = s.Revalidate(ctx)
	require.ErrorIs(t, err, domain.ErrNoValidRole)
	assert.Equal(t, domain.StateAnonymous, snap.State)
	assert.Empty(t, snap.BackendArtifact)
	assert.False(t, snap.Loading)
}

func TestSession_RevalidateRestoresFromBackendSession(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Projects User")
	s := RestoreSession(domain.Snapshot{SessionID: "s1", BackendArtifact: "sid=ana"}, h.deps())

	snap, err := s.Revalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, snap.State)
	assert.Equal(t, domain.RoleProjectsUser, snap.CurrentRole)
}

func TestSession_RevalidateGuestClearsSession(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	s := h.session("s1")
	ctx := context.Background()
	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)

	// Backend dropped the session on its own.
	s.client.(*fakeClient).loggedIn = ""

	snap, err := s.Revalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAnonymous, snap.State)
}

func TestSession_RevalidateFirstLogin(t *testing.T) {
	h := newHarness()
	h.backend.addUser("cy", "temp-pass", true, "Sales User")
	s := RestoreSession(domain.Snapshot{SessionID: "s1", BackendArtifact: "sid=cy"}, h.deps())

	snap, err := s.Revalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatePasswordResetRequired, snap.State)
	assert.Empty(t, snap.AvailableRoles)
}

func TestSession_RevalidateExpired(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	s := h.session("s1")
	ctx := context.Background()
	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)

	h.backend.whoamiErr = domain.ErrSessionExpired
	snap, err := s.Revalidate(ctx)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, domain.StateAnonymous, snap.State)
	assert.Empty(t, snap.BackendArtifact)

	// Expiry keeps the selection hint.
	role, ok := h.roles.stored("ana")
	assert.True(t, ok)
	assert.Equal(t, domain.RoleSalesUser, role)
}

func TestSession_RevalidateBackendUnavailableKeepsState(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	s := h.session("s1")
	ctx := context.Background()
	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)

	h.backend.userErr = domain.ErrBackendUnavailable
	snap, err := s.Revalidate(ctx)
	require.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, domain.StateAuthenticated, snap.State)
	assert.Equal(t, domain.RoleSalesUser, snap.CurrentRole)
	assert.False(t, snap.Loading)
	assert.Equal(t, domain.ErrBackendUnavailable.Error(), snap.Error)
}

func TestSession_CompletePasswordReset(t *testing.T) {
	h := newHarness()
	h.backend.addUser("cy", "temp-pass", true, "Delivery Manager")
	s := h.session("s1")
	ctx := context.Background()

	_, err := s.Login(ctx, "cy", "temp-pass")
	require.NoError(t, err)

	require.NoError(t, s.CompletePasswordReset(ctx, "brand-new-pass"))

	snap := s.Snapshot()
	assert.Equal(t, domain.StateAuthenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, domain.RoleDeliveryManager, snap.CurrentRole)
	assert.False(t, snap.Identity.RequiresPasswordReset)
	assert.Contains(t, h.events.kinds(), domain.EventPasswordReset)

	assert.Equal(t, "brand-new-pass", h.backend.users["cy"].password)
}

func TestSession_CompletePasswordResetTooShort(t *testing.T) {
	h := newHarness()
	h.backend.addUser("cy", "temp-pass", true, "Sales User")
	s := h.session("s1")
	ctx := context.Background()
	_, err := s.Login(ctx, "cy", "temp-pass")
	require.NoError(t, err)

	err = s.CompletePasswordReset(ctx, "1234567")
	require.ErrorIs(t, err, domain.ErrPasswordTooShort)
	assert.Equal(t, domain.StatePasswordResetRequired, s.Snapshot().State)
	assert.Equal(t, "temp-pass", h.backend.users["cy"].password)

	// Length counts characters, not bytes.
	err = s.CompletePasswordReset(ctx, "ñññññññ")
	require.ErrorIs(t, err, domain.ErrPasswordTooShort)
}

func TestSession_CompletePasswordResetFailures(t *testing.T) {
	t.Run("backend rejects update", func(t *testing.T) {
		h := newHarness()
		h.backend.addUser("cy", "temp-pass", true, "Sales User")
		s := h.session("s1")
		ctx := context.Background()
		_, err := s.Login(ctx, "cy", "temp-pass")
		require.NoError(t, err)

		h.backend.updateErr = errors.New("status 417")
		err = s.CompletePasswordReset(ctx, "brand-new-pass")
		require.ErrorIs(t, err, domain.ErrPasswordResetFailed)

		snap := s.Snapshot()
		assert.Equal(t, domain.StatePasswordResetRequired, snap.State)
		assert.NotEmpty(t, snap.Error)
	})

	t.Run("backend unavailable", func(t *testing.T) {
		h := newHarness()
		h.backend.addUser("cy", "temp-pass", true, "Sales User")
		s := h.session("s1")
		ctx := context.Background()
		_, err := s.Login(ctx, "cy", "temp-pass")
		require.NoError(t, err)

		h.backend.updateErr = domain.ErrBackendUnavailable
		err = s.CompletePasswordReset(ctx, "brand-new-pass")
		assert.ErrorIs(t, err, domain.ErrPasswordResetFailed)
		assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
		assert.Equal(t, domain.StatePasswordResetRequired, s.Snapshot().State)
	})

	t.Run("no valid role after reset stays in reset", func(t *testing.T) {
		h := newHarness()
		h.backend.addUser("cy", "temp-pass", true, "Unknown Role")
		s := h.session("s1")
		ctx := context.Background()
		_, err := s.Login(ctx, "cy", "temp-pass")
		require.NoError(t, err)

		err = s.CompletePasswordReset(ctx, "brand-new-pass")
		require.ErrorIs(t, err, domain.ErrNoValidRole)
		snap := s.Snapshot()
		assert.Equal(t, domain.StatePasswordResetRequired, snap.State)
		assert.Equal(t, "cy", snap.Identity.Username)
	})

	t.Run("not in reset state", func(t *testing.T) {
		h := newHarness()
		s := h.session("s1")
		err := s.CompletePasswordReset(context.Background(), "brand-new-pass")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestSession_CompletePasswordResetExpiredOnRelogin(t *testing.T) {
	h := newHarness()
	h.backend.addUser("cy", "temp-pass", true, "Sales User")
	s := h.session("s1")
	ctx := context.Background()
	_, err := s.Login(ctx, "cy", "temp-pass")
	require.NoError(t, err)

	h.backend.verifyErr = domain.ErrSessionExpired
	err = s.CompletePasswordReset(ctx, "brand-new-pass")
	require.ErrorIs(t, err, domain.ErrSessionExpired)

	snap := s.Snapshot()
	assert.Equal(t, domain.StateAnonymous, snap.State)
	assert.Nil(t, snap.Identity)
	assert.False(t, snap.Loading)
	assert.Equal(t, domain.ErrSessionExpired.Error(), snap.Error)
	_, err = h.snapshots.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, h.events.kinds(), domain.EventExpired)
}

func TestSession_RevalidateKeepsRoleSwitchedMeanwhile(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User", "Sales Manager")
	s := h.session("s1")
	ctx := context.Background()
	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, domain.RoleSalesUser, s.Snapshot().CurrentRole)

	// The switch lands after Revalidate has read the persisted selection.
	h.roles.mu.Lock()
	h.roles.afterGet = func() {
		h.roles.mu.Lock()
		h.roles.afterGet = nil
		h.roles.mu.Unlock()
		s.SwitchRole(ctx, domain.RoleSalesManager)
	}
	h.roles.mu.Unlock()

	snap, err := s.Revalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSalesManager, snap.CurrentRole)
	role, _ := h.roles.stored("ana")
	assert.Equal(t, domain.RoleSalesManager, role)
}

func TestSession_ConcurrentLoginIsBusy(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	h.backend.entered = make(chan struct{})
	h.backend.gate = make(chan struct{})
	s := h.session("s1")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(ctx, "ana", "s3cret-pass")
		done <- err
	}()
	<-h.backend.entered

	assert.True(t, s.Snapshot().Loading)
	_, err := s.Login(ctx, "ana", "s3cret-pass")
	assert.ErrorIs(t, err, domain.ErrBusy)
	_, err = s.Revalidate(ctx)
	assert.ErrorIs(t, err, domain.ErrBusy)

	close(h.backend.gate)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StateAuthenticated, s.Snapshot().State)
	assert.False(t, s.Snapshot().Loading)
}

func TestSession_LogoutSupersedesInFlightLogin(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	h.backend.entered = make(chan struct{})
	h.backend.gate = make(chan struct{})
	s := h.session("s1")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(ctx, "ana", "s3cret-pass")
		done <- err
	}()
	<-h.backend.entered

	s.Logout(ctx)
	close(h.backend.gate)

	require.ErrorIs(t, <-done, domain.ErrSuperseded)
	snap := s.Snapshot()
	assert.Equal(t, domain.StateAnonymous, snap.State)
	assert.Nil(t, snap.Identity)
	_, err := h.snapshots.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSession_Expire(t *testing.T) {
	h := newHarness()
	h.backend.addUser("ana", "s3cret-pass", false, "Sales User")
	s := h.session("s1")
	ctx := context.Background()
	_, err := s.Login(ctx, "ana", "s3cret-pass")
	require.NoError(t, err)

	s.Expire(ctx)

	snap := s.Snapshot()
	assert.Equal(t, domain.StateAnonymous, snap.State)
	assert.Equal(t, domain.ErrSessionExpired.Error(), snap.Error)
	assert.Equal(t, 0, h.backend.logoutCount())
	_, ok := h.roles.stored("ana")
	assert.True(t, ok)
}

func TestRestoreSession(t *testing.T) {
	h := newHarness()

	t.Run("authenticated with stale current role", func(t *testing.T) {
		s := RestoreSession(domain.Snapshot{
			SessionID:       "s1",
			State:           domain.StateAuthenticated,
			Identity:        &domain.IdentitySnapshot{Username: "ana", Roles: []domain.Role{domain.RoleSalesUser, domain.RoleSalesManager}},
			CurrentRole:     domain.RoleDeliveryManager,
			BackendArtifact: "sid=ana",
		}, h.deps())

		snap := s.Snapshot()
		assert.Equal(t, domain.StateAuthenticated, snap.State)
		assert.Equal(t, domain.RoleSalesUser, snap.CurrentRole)
		assert.Equal(t, "sid=ana", snap.BackendArtifact)
	})

	t.Run("password reset pending", func(t *testing.T) {
		s := RestoreSession(domain.Snapshot{
			SessionID: "s2",
			Identity:  &domain.IdentitySnapshot{Username: "cy", RequiresPasswordReset: true},
		}, h.deps())
		assert.Equal(t, domain.StatePasswordResetRequired, s.Snapshot().State)
	})

	t.Run("identity without roles restores anonymous", func(t *testing.T) {
		s := RestoreSession(domain.Snapshot{
			SessionID: "s3",
			Identity:  &domain.IdentitySnapshot{Username: "bob"},
		}, h.deps())
		assert.Equal(t, domain.StateAnonymous, s.Snapshot().State)
		assert.Nil(t, s.Snapshot().Identity)
	})
}
