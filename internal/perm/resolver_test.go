package perm

import (
	"context"
	"errors"
	"testing"
)

type staticOverrides struct {
	byActor map[string][]Override
	err     error
}

func (s *staticOverrides) OverridesFor(_ context.Context, actorID string) ([]Override, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byActor[actorID], nil
}

func TestResolverRoleDefaults(t *testing.T) {
	r := NewResolver(NewCatalog(), nil)
	ctx := context.Background()

	citizen := Actor{ID: "usr-1", Role: RoleCitizen}
	if !r.Has(ctx, citizen, PermReclamationsCreate) {
		t.Error("citizen should create by default")
	}
	if r.Has(ctx, citizen, PermReclamationsValidate) {
		t.Error("citizen must not validate by default")
	}
}

func TestResolverGrantOverride(t *testing.T) {
	src := &staticOverrides{byActor: map[string][]Override{
		"usr-1": {{ActorID: "usr-1", Code: PermReclamationsValidate, Effect: EffectGrant}},
	}}
	r := NewResolver(NewCatalog(), src)

	citizen := Actor{ID: "usr-1", Role: RoleCitizen}
	if !r.Has(context.Background(), citizen, PermReclamationsValidate) {
		t.Error("explicit grant should add the capability")
	}
	// The grant is per-actor, not per-role.
	other := Actor{ID: "usr-2", Role: RoleCitizen}
	if r.Has(context.Background(), other, PermReclamationsValidate) {
		t.Error("grant must not leak to other actors")
	}
}

func TestResolverRevokeBeatsRoleDefault(t *testing.T) {
	src := &staticOverrides{byActor: map[string][]Override{
		"dlg-1": {{ActorID: "dlg-1", Code: PermReclamationsValidate, Effect: EffectRevoke}},
	}}
	r := NewResolver(NewCatalog(), src)

	delegation := Actor{ID: "dlg-1", Role: RoleDelegation, Sector: "SANTE"}
	if r.Has(context.Background(), delegation, PermReclamationsValidate) {
		t.Error("explicit revoke must beat the role default")
	}
	// Other delegation capabilities are untouched.
	if !r.Has(context.Background(), delegation, PermReclamationsAssign) {
		t.Error("revoke of one code must not affect another")
	}
}

func TestResolverRevokeBeatsGrant(t *testing.T) {
	src := &staticOverrides{byActor: map[string][]Override{
		"usr-1": {
			{ActorID: "usr-1", Code: PermAuditRead, Effect: EffectGrant},
			{ActorID: "usr-1", Code: PermAuditRead, Effect: EffectRevoke},
		},
	}}
	r := NewResolver(NewCatalog(), src)
	if r.Has(context.Background(), Actor{ID: "usr-1", Role: RoleCitizen}, PermAuditRead) {
		t.Error("revoke must win when both effects are present")
	}
}

func TestResolverDeniesClosed(t *testing.T) {
	r := NewResolver(NewCatalog(), &staticOverrides{err: errors.New("db down")})
	ctx := context.Background()

	if r.Has(ctx, Actor{ID: "usr-1", Role: RoleAdmin}, PermReclamationsRead) {
		t.Error("override lookup failure must deny")
	}

	quiet := NewResolver(NewCatalog(), nil)
	if quiet.Has(ctx, Actor{}, PermReclamationsRead) {
		t.Error("anonymous actor must be denied")
	}
	if quiet.Has(ctx, Actor{ID: "usr-1", Role: Role("intern")}, PermReclamationsRead) {
		t.Error("unknown role must be denied")
	}
	if quiet.Has(ctx, Actor{ID: "usr-1", Role: RoleAdmin}, "reclamations.frobnicate") {
		t.Error("unknown code must be denied even for broad roles")
	}
}

func TestParseEffect(t *testing.T) {
	if e, ok := ParseEffect(" GRANT "); !ok || e != EffectGrant {
		t.Errorf("ParseEffect(GRANT) = %v, %v", e, ok)
	}
	if e, ok := ParseEffect("revoke"); !ok || e != EffectRevoke {
		t.Errorf("ParseEffect(revoke) = %v, %v", e, ok)
	}
	if _, ok := ParseEffect("maybe"); ok {
		t.Error("ParseEffect(maybe) should fail")
	}
}
