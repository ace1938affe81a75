package service

import (
	"github.com/deskworks/dashboard/internal/core/domain"
)

// RoleResolver maps raw backend role claims to application roles.
type RoleResolver struct {
	table map[string]domain.Role
}

// NewRoleResolver returns a resolver over table. A nil table selects
// domain.DefaultRoleTable.
func NewRoleResolver(table map[string]domain.Role) *RoleResolver {
	if table == nil {
		table = domain.DefaultRoleTable()
	}
	return &RoleResolver{table: table}
}

// Resolve normalises each claim, drops empty and unknown names, and
// de-duplicates while keeping first-seen order. The result may be empty.
func (r *RoleResolver) Resolve(claims []domain.RoleClaim) []domain.Role {
	roles := make([]domain.Role, 0, len(claims))
	seen := make(map[domain.Role]struct{}, len(claims))

	for _, c := range claims {
		name := c.Name()
		if name == "" {
			continue
		}
		role, ok := r.table[name]
		if !ok {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// SelectRole picks the default current role: the persisted one when it is still
// available, otherwise the first available role. It returns "" when available
// is empty.
func SelectRole(available []domain.Role, persisted domain.Role) domain.Role {
	if domain.ContainsRole(available, persisted) {
		return persisted
	}
	if len(available) == 0 {
		return ""
	}
	return available[0]
}
