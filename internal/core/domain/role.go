package domain

import "slices"

// Role is one of the mutually exclusive operating contexts of the dashboard.
// The string form is the backend role name and is what gets persisted.
type Role string

const (
	RoleSalesUser       Role = "Sales User"
	RoleSalesManager    Role = "Sales Manager"
	RoleProjectsUser    Role = "Projects User"
	RoleProjectsManager Role = "Projects Manager"
	RoleDeliveryManager Role = "Delivery Manager"
)

// roleHomes maps every application role to the route it lands on.
var roleHomes = map[Role]string{
	RoleSalesUser:       "/sales",
	RoleSalesManager:    "/sales/manager",
	RoleProjectsUser:    "/projects",
	RoleProjectsManager: "/projects/manager",
	RoleDeliveryManager: "/delivery",
}

var allRoles = []Role{
	RoleSalesUser,
	RoleSalesManager,
	RoleProjectsUser,
	RoleProjectsManager,
	RoleDeliveryManager,
}

// AllRoles returns every application role in display order.
func AllRoles() []Role {
	return slices.Clone(allRoles)
}

// DefaultRoleTable returns the lookup table from backend role names to
// application roles. Backend names missing from the table never become roles.
func DefaultRoleTable() map[string]Role {
	table := make(map[string]Role, len(allRoles))
	for _, r := range allRoles {
		table[string(r)] = r
	}
	return table
}

// Valid reports whether r is one of the known application roles.
func (r Role) Valid() bool {
	_, ok := roleHomes[r]
	return ok
}

// Home returns the landing route for r, or "" for an unknown role.
func (r Role) Home() string {
	return roleHomes[r]
}

func (r Role) String() string { return string(r) }

// ContainsRole reports whether role is a member of roles.
func ContainsRole(roles []Role, role Role) bool {
	return role != "" && slices.Contains(roles, role)
}
