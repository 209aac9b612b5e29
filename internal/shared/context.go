package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated user's ID in context. The auth
// middleware is the only writer; every downstream operation receives the
// already-resolved actor, never a raw credential.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the authenticated user's ID from context.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}
