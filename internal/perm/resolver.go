package perm

import (
	"context"
	"errors"
	"strings"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/obs"
)

// ErrUnknownActor marks override writes targeting a non-existent actor.
var ErrUnknownActor = errors.New("perm: unknown actor")

// Effect is the direction of a per-actor override.
type Effect string

const (
	EffectGrant  Effect = "grant"
	EffectRevoke Effect = "revoke"
)

// ParseEffect normalises a raw effect string.
func ParseEffect(raw string) (Effect, bool) {
	switch Effect(strings.TrimSpace(strings.ToLower(raw))) {
	case EffectGrant:
		return EffectGrant, true
	case EffectRevoke:
		return EffectRevoke, true
	default:
		return "", false
	}
}

// Override adds or removes a single capability for one actor on top of the
// role defaults. An explicit revoke always beats a role-default grant.
type Override struct {
	ActorID string
	Code    string
	Effect  Effect
}

// OverrideSource looks up the per-actor overrides. Implemented by the
// Postgres store; an empty source (nil) means role defaults only.
type OverrideSource interface {
	OverridesFor(ctx context.Context, actorID string) ([]Override, error)
}

// Resolver combines the immutable catalog with per-actor overrides.
type Resolver struct {
	catalog   Catalog
	overrides OverrideSource
}

// NewResolver builds a resolver. src may be nil when overrides are not
// persisted (tests, demo mode).
func NewResolver(catalog Catalog, src OverrideSource) *Resolver {
	return &Resolver{catalog: catalog, overrides: src}
}

// Catalog exposes the underlying catalog (read-only by construction).
func (r *Resolver) Catalog() Catalog { return r.catalog }

// Has decides allow/deny for one actor and one permission code.
//
// Order of evaluation: unknown code -> deny; anonymous or unknown-role
// actor -> deny; explicit revoke -> deny; explicit grant -> allow; otherwise
// the role default. Denial is the defined behaviour for every failure mode,
// including override lookup errors: resolution never propagates an error.
func (r *Resolver) Has(ctx context.Context, actor Actor, code string) bool {
	if !r.catalog.Known(code) {
		return false
	}
	if actor.Anonymous() {
		return false
	}

	allowed := actor.Role.Known() && r.catalog.RoleDefault(actor.Role, code)

	if r.overrides != nil {
		list, err := r.overrides.OverridesFor(ctx, actor.ID)
		if err != nil {
			obs.LogRequest(map[string]any{
				"level":    "error",
				"msg":      "permission override lookup failed, denying",
				"actor_id": actor.ID,
				"code":     code,
				"error":    err.Error(),
			})
			return false
		}
		for _, ov := range list {
			if ov.Code != code {
				continue
			}
			switch ov.Effect {
			case EffectRevoke:
				return false
			case EffectGrant:
				allowed = true
			}
		}
	}
	return allowed
}
