package perm

import "strings"

// Role is the fixed set of administrative profiles recognised by the platform.
type Role string

const (
	RoleCitizen              Role = "citizen"
	RoleAutoriteLocale       Role = "autorite_locale"
	RoleDelegation           Role = "delegation"
	RoleAdmin                Role = "admin"
	RoleSuperAdmin           Role = "super_admin"
	RoleGouverneur           Role = "gouverneur"
	RoleCoordinateurActivite Role = "coordinateur_activite"
)

var knownRoles = map[Role]struct{}{
	RoleCitizen:              {},
	RoleAutoriteLocale:       {},
	RoleDelegation:           {},
	RoleAdmin:                {},
	RoleSuperAdmin:           {},
	RoleGouverneur:           {},
	RoleCoordinateurActivite: {},
}

// ParseRole normalises a raw role string. Unknown values are reported so
// callers can fail closed instead of treating them as an empty profile.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	_, ok := knownRoles[role]
	return role, ok
}

// Known reports whether the role belongs to the fixed enumeration.
func (r Role) Known() bool {
	_, ok := knownRoles[r]
	return ok
}

// Actor is the per-request identity resolved by the session layer.
// Sector is only meaningful for delegations; ManagedEstablishmentIDs for
// local authorities that administer public establishments.
type Actor struct {
	ID                      string
	Role                    Role
	Sector                  string
	ManagedEstablishmentIDs []string
}

// Anonymous reports whether the actor carries no identity at all.
func (a Actor) Anonymous() bool {
	return strings.TrimSpace(a.ID) == ""
}
