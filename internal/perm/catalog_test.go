package perm

import "testing"

func TestCatalogFlattensInheritance(t *testing.T) {
	cat := NewCatalog()

	// Admin inherits triage and dispatch from delegation, resolution from
	// the local authority profile, on top of its own grants.
	for _, code := range []string{
		PermReclamationsValidate,
		PermReclamationsAssign,
		PermReclamationsResolve,
		PermReclamationsArchive,
		PermAuditRead,
	} {
		if !cat.RoleDefault(RoleAdmin, code) {
			t.Errorf("admin should default-hold %s", code)
		}
	}

	// Super admin is a strict superset of admin.
	for _, code := range cat.DefaultsFor(RoleAdmin) {
		if !cat.RoleDefault(RoleSuperAdmin, code) {
			t.Errorf("super_admin should inherit %s from admin", code)
		}
	}
	if !cat.RoleDefault(RoleSuperAdmin, PermPermissionsManage) {
		t.Error("super_admin should default-hold permissions.manage")
	}
	if cat.RoleDefault(RoleAdmin, PermPermissionsManage) {
		t.Error("admin must not hold permissions.manage by default")
	}
}

func TestCatalogRoleBoundaries(t *testing.T) {
	cat := NewCatalog()

	cases := []struct {
		role Role
		code string
		want bool
	}{
		{RoleCitizen, PermReclamationsCreate, true},
		{RoleCitizen, PermReclamationsValidate, false},
		{RoleCitizen, PermReclamationsAssign, false},
		{RoleAutoriteLocale, PermReclamationsResolve, true},
		{RoleAutoriteLocale, PermReclamationsValidate, false},
		{RoleDelegation, PermReclamationsValidate, true},
		{RoleDelegation, PermReclamationsAssign, true},
		{RoleDelegation, PermReclamationsDelete, false},
		{RoleGouverneur, PermAuditRead, true},
		{RoleGouverneur, PermReclamationsValidate, false},
		{RoleCoordinateurActivite, PermEvenementsCreate, true},
		{RoleCoordinateurActivite, PermReclamationsValidate, false},
	}
	for _, tc := range cases {
		if got := cat.RoleDefault(tc.role, tc.code); got != tc.want {
			t.Errorf("RoleDefault(%s, %s) = %v, want %v", tc.role, tc.code, got, tc.want)
		}
	}
}

func TestCatalogUnknownRoleAndCode(t *testing.T) {
	cat := NewCatalog()
	if cat.Known("reclamations.frobnicate") {
		t.Error("unknown code must not be in the universe")
	}
	if cat.RoleDefault(Role("intern"), PermReclamationsRead) {
		t.Error("unknown role must have no defaults")
	}
	if got := cat.DefaultsFor(Role("intern")); got != nil {
		t.Errorf("DefaultsFor unknown role = %v, want nil", got)
	}
}

func TestCatalogWithSurvivesInheritanceCycle(t *testing.T) {
	defaults := map[Role][]string{
		Role("a"): {"x.one"},
		Role("b"): {"x.two"},
	}
	inheritance := map[Role][]Role{
		Role("a"): {Role("b")},
		Role("b"): {Role("a")},
	}
	cat := NewCatalogWith(defaults, inheritance, []string{"x.one", "x.two"})
	if !cat.RoleDefault(Role("a"), "x.one") || !cat.RoleDefault(Role("a"), "x.two") {
		t.Error("cycle members should still see both grants")
	}
}
