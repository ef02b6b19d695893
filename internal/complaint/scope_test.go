package complaint

import (
	"testing"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

func TestScopeFor(t *testing.T) {
	own := pendingComplaint()
	other := pendingComplaint()
	other.ID = "01OTHER"
	other.CreatedBy = "usr-cit-2"

	assigned := pendingComplaint()
	assigned.ID = "01ASSIGNED"
	assigned.Status = StatusAccepted
	assigned.AssignedAuthorityID = "aut-1"

	sante := pendingComplaint()
	sante.ID = "01SANTE"
	sante.Sector = "SANTE"

	cases := []struct {
		name  string
		actor perm.Actor
		c     Complaint
		want  bool
	}{
		{"citizen sees own", perm.Actor{ID: "usr-cit-1", Role: perm.RoleCitizen}, own, true},
		{"citizen blind to others", perm.Actor{ID: "usr-cit-1", Role: perm.RoleCitizen}, other, false},
		{"authority sees its assignment", perm.Actor{ID: "aut-1", Role: perm.RoleAutoriteLocale}, assigned, true},
		{"authority blind to unassigned", perm.Actor{ID: "aut-1", Role: perm.RoleAutoriteLocale}, own, false},
		{"delegation sees its sector", perm.Actor{ID: "dlg-1", Role: perm.RoleDelegation, Sector: "SANTE"}, sante, true},
		{"delegation blind across sectors", perm.Actor{ID: "dlg-1", Role: perm.RoleDelegation, Sector: "SANTE"}, own, false},
		{"admin sees all", perm.Actor{ID: "adm-1", Role: perm.RoleAdmin}, other, true},
		{"gouverneur sees all", perm.Actor{ID: "gov-1", Role: perm.RoleGouverneur}, other, true},
		{"unknown role sees nothing", perm.Actor{ID: "x-1", Role: perm.Role("intern")}, own, false},
		{"anonymous sees nothing", perm.Actor{}, own, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScopeFor(tc.actor).Allows(tc.c); got != tc.want {
				t.Fatalf("Allows = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScopeDelegationWithoutSectorFailsClosed(t *testing.T) {
	scope := ScopeFor(perm.Actor{ID: "dlg-1", Role: perm.RoleDelegation})
	if !scope.Empty() {
		t.Fatal("sector-less delegation must get the empty scope")
	}
	if scope.Allows(pendingComplaint()) {
		t.Fatal("empty scope must match nothing")
	}
}
