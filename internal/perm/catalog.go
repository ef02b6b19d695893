package perm

import "sort"

// Permission codes are namespaced "resource.action" strings. The catalog
// enumerates every capability explicitly; there is no wildcard matching.
const (
	PermReclamationsCreate   = "reclamations.create"
	PermReclamationsRead     = "reclamations.read"
	PermReclamationsEdit     = "reclamations.edit"
	PermReclamationsDelete   = "reclamations.delete"
	PermReclamationsValidate = "reclamations.validate"
	PermReclamationsAssign   = "reclamations.assign"
	PermReclamationsResolve  = "reclamations.resolve"
	PermReclamationsArchive  = "reclamations.archive"

	PermAuditRead          = "audit.read"
	PermPermissionsManage  = "permissions.manage"
	PermUtilisateursManage = "utilisateurs.manage"

	PermEvenementsCreate   = "evenements.create"
	PermEvenementsValidate = "evenements.validate"
	PermArticlesCreate     = "articles.create"
	PermArticlesValidate   = "articles.validate"
)

// Universe is the complete set of valid permission codes. Codes outside this
// list always resolve to deny.
var Universe = []string{
	PermReclamationsCreate,
	PermReclamationsRead,
	PermReclamationsEdit,
	PermReclamationsDelete,
	PermReclamationsValidate,
	PermReclamationsAssign,
	PermReclamationsResolve,
	PermReclamationsArchive,
	PermAuditRead,
	PermPermissionsManage,
	PermUtilisateursManage,
	PermEvenementsCreate,
	PermEvenementsValidate,
	PermArticlesCreate,
	PermArticlesValidate,
}

// Catalog maps each role to its default permission set. It is built once at
// composition time and is immutable afterwards; role inheritance is flattened
// during construction so resolution stays a plain map lookup.
type Catalog struct {
	defaults map[Role]map[string]struct{}
	universe map[string]struct{}
}

// builtinDefaults lists the per-role grants before inheritance flattening.
var builtinDefaults = map[Role][]string{
	RoleCitizen: {
		PermReclamationsCreate,
		PermReclamationsRead,
		PermReclamationsEdit,
		PermReclamationsDelete,
	},
	RoleAutoriteLocale: {
		PermReclamationsRead,
		PermReclamationsResolve,
	},
	RoleDelegation: {
		PermReclamationsRead,
		PermReclamationsValidate,
		PermReclamationsAssign,
		PermEvenementsValidate,
	},
	RoleAdmin: {
		PermReclamationsCreate,
		PermReclamationsEdit,
		PermReclamationsDelete,
		PermReclamationsArchive,
		PermAuditRead,
		PermUtilisateursManage,
		PermEvenementsCreate,
		PermArticlesCreate,
		PermArticlesValidate,
	},
	RoleSuperAdmin: {
		PermPermissionsManage,
	},
	RoleGouverneur: {
		PermReclamationsRead,
		PermAuditRead,
	},
	RoleCoordinateurActivite: {
		PermReclamationsCreate,
		PermEvenementsCreate,
	},
}

// builtinInheritance makes broader roles supersets of narrower ones.
// Flattened once by NewCatalog, never chased at request time.
var builtinInheritance = map[Role][]Role{
	RoleAdmin:      {RoleDelegation, RoleAutoriteLocale},
	RoleSuperAdmin: {RoleAdmin},
}

// NewCatalog builds the production catalog from the builtin role defaults.
func NewCatalog() Catalog {
	return NewCatalogWith(builtinDefaults, builtinInheritance, Universe)
}

// NewCatalogWith builds a catalog from explicit definitions. Tests use it to
// substitute alternate permission tables without touching the builtin one.
func NewCatalogWith(defaults map[Role][]string, inheritance map[Role][]Role, universe []string) Catalog {
	cat := Catalog{
		defaults: make(map[Role]map[string]struct{}, len(defaults)),
		universe: make(map[string]struct{}, len(universe)),
	}
	for _, code := range universe {
		cat.universe[code] = struct{}{}
	}
	for role := range defaults {
		cat.defaults[role] = flatten(role, defaults, inheritance, map[Role]bool{})
	}
	return cat
}

// flatten resolves the inheritance graph for one role. The visited map guards
// against definition cycles.
func flatten(role Role, defaults map[Role][]string, inheritance map[Role][]Role, visited map[Role]bool) map[string]struct{} {
	set := make(map[string]struct{})
	if visited[role] {
		return set
	}
	visited[role] = true
	for _, code := range defaults[role] {
		set[code] = struct{}{}
	}
	for _, parent := range inheritance[role] {
		for code := range flatten(parent, defaults, inheritance, visited) {
			set[code] = struct{}{}
		}
	}
	return set
}

// Known reports whether the code belongs to the catalog universe.
func (c Catalog) Known(code string) bool {
	_, ok := c.universe[code]
	return ok
}

// RoleDefault reports whether the role's flattened default set grants code.
func (c Catalog) RoleDefault(role Role, code string) bool {
	set, ok := c.defaults[role]
	if !ok {
		return false
	}
	_, ok = set[code]
	return ok
}

// DefaultsFor returns the sorted flattened default set for a role.
func (c Catalog) DefaultsFor(role Role) []string {
	set, ok := c.defaults[role]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
