package griot

import "context"

type contextKey string

const contextKeyActor contextKey = "griot.actor"

// WithActor attaches the application principal recorded as the actor of any
// changes captured under ctx. Without it the actor falls back to the
// connection's session user, which for pooled applications is usually a
// shared login rather than the person who acted.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}

// ActorFromContext returns the actor set by WithActor.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(contextKeyActor).(string)
	return actor, ok && actor != ""
}
