package complaint

import (
	"strings"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

// Scope is the per-role visibility predicate over complaint records. It is
// the single source of truth for both listing filters and single-record
// guards: stores translate it into SQL, the service applies Allows after a
// fetch, and the two must agree exactly because this is an access-control
// boundary, not a convenience filter.
type Scope struct {
	// All grants unrestricted visibility.
	All bool
	// CreatedBy restricts to complaints owned by this actor id.
	CreatedBy string
	// AssignedAuthorityID restricts to complaints dispatched to this actor.
	AssignedAuthorityID string
	// Sector restricts to complaints tagged with this sector.
	Sector string
	// nothing marks the fail-closed scope matching no record.
	nothing bool
}

// Nothing is the scope matching no record at all.
func Nothing() Scope { return Scope{nothing: true} }

// Empty reports whether the scope can never match.
func (s Scope) Empty() bool { return s.nothing }

// ScopeFor derives the visibility scope from the actor's role. Unknown roles
// and delegations without a sector see nothing.
func ScopeFor(actor perm.Actor) Scope {
	if actor.Anonymous() {
		return Nothing()
	}
	switch actor.Role {
	case perm.RoleCitizen:
		return Scope{CreatedBy: actor.ID}
	case perm.RoleAutoriteLocale:
		return Scope{AssignedAuthorityID: actor.ID}
	case perm.RoleDelegation:
		sector := strings.TrimSpace(actor.Sector)
		if sector == "" {
			return Nothing()
		}
		return Scope{Sector: sector}
	case perm.RoleAdmin, perm.RoleSuperAdmin, perm.RoleGouverneur:
		return Scope{All: true}
	default:
		return Nothing()
	}
}

// Allows evaluates the predicate against one complaint.
func (s Scope) Allows(c Complaint) bool {
	if s.nothing {
		return false
	}
	if s.All {
		return true
	}
	if s.CreatedBy != "" {
		return c.CreatedBy == s.CreatedBy
	}
	if s.AssignedAuthorityID != "" {
		return c.AssignedAuthorityID == s.AssignedAuthorityID
	}
	if s.Sector != "" {
		return c.Sector == s.Sector
	}
	return false
}
