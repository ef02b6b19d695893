package auth

import (
	"context"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor perm.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (perm.Actor, bool) {
	if ctx == nil {
		return perm.Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*perm.Actor)
	if !ok || v == nil {
		return perm.Actor{}, false
	}
	return *v, true
}
