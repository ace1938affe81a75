package service

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

// PathKind classifies a navigation target.
type PathKind string

const (
	PathPublic        PathKind = "public"
	PathAuthEntry     PathKind = "auth_entry"
	PathPasswordReset PathKind = "password_reset"
	PathRoleGated     PathKind = "role_gated"
)

// GatedPrefix restricts a path prefix to a set of roles. An empty Roles list
// admits any valid role.
type GatedPrefix struct {
	Prefix string
	Roles  []domain.Role
}

// RouteTable describes how paths are classified.
type RouteTable struct {
	LoginPath         string
	PasswordResetPath string
	AuthEntryPaths    []string
	PublicPrefixes    []string
	Gated             []GatedPrefix
}

// DefaultRouteTable gates each role home to the roles that may see it.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		LoginPath:         "/login",
		PasswordResetPath: "/reset-password",
		AuthEntryPaths:    []string{"/login", "/"},
		PublicPrefixes:    []string{"/static/", "/favicon.ico", "/auth/"},
		Gated: []GatedPrefix{
			{Prefix: "/sales", Roles: []domain.Role{domain.RoleSalesUser, domain.RoleSalesManager}},
			{Prefix: "/sales/manager", Roles: []domain.Role{domain.RoleSalesManager}},
			{Prefix: "/projects", Roles: []domain.Role{domain.RoleProjectsUser, domain.RoleProjectsManager}},
			{Prefix: "/projects/manager", Roles: []domain.Role{domain.RoleProjectsManager}},
			{Prefix: "/delivery", Roles: []domain.Role{domain.RoleDeliveryManager}},
		},
	}
}

// Classify returns the kind of path and, for role-gated paths, the roles it
// admits.
func (rt RouteTable) Classify(path string) (PathKind, []domain.Role) {
	for _, p := range rt.PublicPrefixes {
		if path == p || strings.HasPrefix(path, p) {
			return PathPublic, nil
		}
	}
	for _, p := range rt.AuthEntryPaths {
		if path == p {
			return PathAuthEntry, nil
		}
	}
	if path == rt.PasswordResetPath {
		return PathPasswordReset, nil
	}
	if g, ok := rt.match(path); ok {
		return PathRoleGated, g.Roles
	}
	return PathRoleGated, nil
}

// match returns the longest gated prefix covering path on a segment boundary.
func (rt RouteTable) match(path string) (GatedPrefix, bool) {
	gated := append([]GatedPrefix(nil), rt.Gated...)
	sort.SliceStable(gated, func(i, j int) bool { return len(gated[i].Prefix) > len(gated[j].Prefix) })

	for _, g := range gated {
		if path == g.Prefix || strings.HasPrefix(path, strings.TrimSuffix(g.Prefix, "/")+"/") {
			return g, true
		}
	}
	return GatedPrefix{}, false
}

// GuardInput is everything the guard needs for one navigation.
type GuardInput struct {
	Path              string
	RawQuery          string
	Identity          *domain.IdentitySnapshot
	HasBackendSession bool
	PersistedRole     domain.Role
}

// Decision is the guard's verdict. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
	Reason   string
}

func allow(reason string) Decision { return Decision{Allow: true, Reason: reason} }

func redirect(to, reason string) Decision { return Decision{Redirect: to, Reason: reason} }

// RouteGuard decides navigation from the last persisted session snapshot. It
// never calls the identity backend.
type RouteGuard struct {
	table     RouteTable
	snapshots ports.SnapshotStore
	roles     ports.RoleStore
	log       zerolog.Logger
}

func NewRouteGuard(table RouteTable, snapshots ports.SnapshotStore, roles ports.RoleStore, log zerolog.Logger) *RouteGuard {
	return &RouteGuard{table: table, snapshots: snapshots, roles: roles, log: log}
}

func (g *RouteGuard) Table() RouteTable { return g.table }

// Decide applies the guard rules in order; password reset wins over role
// routing, which wins over the generic login redirect.
func (g *RouteGuard) Decide(in GuardInput) Decision {
	kind, admitted := g.table.Classify(in.Path)

	if kind == PathPublic {
		return allow("public")
	}

	if in.Identity == nil || !in.HasBackendSession {
		switch kind {
		case PathRoleGated, PathPasswordReset:
			return redirect(g.loginRedirect(in), "unauthenticated")
		default:
			return allow("unauthenticated")
		}
	}

	if in.Identity.RequiresPasswordReset {
		if kind != PathPasswordReset {
			return redirect(g.table.PasswordResetPath, "password_reset_required")
		}
		return allow("password_reset_required")
	}

	role := in.PersistedRole
	hasRole := role.Valid() && in.Identity.HasRole(role)

	if kind == PathAuthEntry && hasRole {
		return redirect(role.Home(), "already_authenticated")
	}
	if kind == PathRoleGated {
		if !hasRole {
			return redirect(g.loginRedirect(in), "no_role")
		}
		if len(admitted) > 0 && !domain.ContainsRole(admitted, role) {
			return redirect(role.Home(), "misrouted")
		}
	}
	return allow("ok")
}

// Evaluate loads the session's snapshot and persisted role and decides.
func (g *RouteGuard) Evaluate(ctx context.Context, path, rawQuery, sessionID string) Decision {
	in := GuardInput{Path: path, RawQuery: rawQuery}

	if sessionID != "" {
		snap, err := g.snapshots.Get(ctx, sessionID)
		switch {
		case err == nil:
			in.Identity = snap.Identity
			in.HasBackendSession = snap.HasBackendSession()
		case !errors.Is(err, domain.ErrNotFound):
			g.log.Warn().Err(err).Str("session_id", sessionID).Msg("guard could not load session snapshot")
		}

		if in.Identity != nil {
			in.PersistedRole = g.persistedRole(ctx, in.Identity.Username, snap)
		}
	}
	return g.Decide(in)
}

func (g *RouteGuard) persistedRole(ctx context.Context, username string, snap *domain.Snapshot) domain.Role {
	role, err := g.roles.Get(ctx, username)
	if err == nil {
		return role
	}
	if !errors.Is(err, domain.ErrNotFound) {
		g.log.Warn().Err(err).Str("username", username).Msg("guard could not load persisted role")
	}
	// The snapshot's current role is the next best source.
	return snap.CurrentRole
}

func (g *RouteGuard) loginRedirect(in GuardInput) string {
	target := in.Path
	if in.RawQuery != "" {
		target += "?" + in.RawQuery
	}
	return g.table.LoginPath + "?redirect_uri=" + url.QueryEscape(SafeRedirectPath(target))
}

// SafeRedirectPath keeps redirects same-origin: anything that is not a
// relative path starting with "/" becomes "/".
func SafeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
