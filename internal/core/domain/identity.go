package domain

import "slices"

// MinPasswordLength is the shortest password accepted for a first-login reset.
const MinPasswordLength = 8

// Identity models one authenticated human as reported by the identity backend.
type Identity struct {
	Username              string
	DisplayName           string
	Email                 string
	RawRoleClaims         []RoleClaim
	RequiresPasswordReset bool
}

// IdentitySnapshot is the persisted view of an Identity together with its
// resolved roles. The route guard decides on this alone.
type IdentitySnapshot struct {
	Username              string `json:"username"`
	DisplayName           string `json:"display_name"`
	Email                 string `json:"email"`
	Roles                 []Role `json:"roles"`
	RequiresPasswordReset bool   `json:"requires_password_reset"`
}

// Snapshot returns the persisted view of id with the given resolved roles.
func (id *Identity) Snapshot(roles []Role) *IdentitySnapshot {
	if id == nil {
		return nil
	}
	return &IdentitySnapshot{
		Username:              id.Username,
		DisplayName:           id.DisplayName,
		Email:                 id.Email,
		Roles:                 slices.Clone(roles),
		RequiresPasswordReset: id.RequiresPasswordReset,
	}
}

// Identity rebuilds an Identity from a snapshot. Raw claims are not persisted,
// so the resolved roles stand in for them.
func (s *IdentitySnapshot) Identity() *Identity {
	if s == nil {
		return nil
	}
	return &Identity{
		Username:              s.Username,
		DisplayName:           s.DisplayName,
		Email:                 s.Email,
		RawRoleClaims:         RoleClaimsFromRoles(s.Roles),
		RequiresPasswordReset: s.RequiresPasswordReset,
	}
}

// HasRole reports whether the snapshot lists role among its resolved roles.
func (s *IdentitySnapshot) HasRole(role Role) bool {
	return s != nil && ContainsRole(s.Roles, role)
}
