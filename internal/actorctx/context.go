package actorctx

import (
	"context"
	"strings"
)

// ActorContextKey is the request context key for the calling address.
type ActorContextKey struct{}

// WithActor stores the caller address in the context. The boundary layer is
// responsible for having verified the address (transaction signatures are
// outside this service).
func WithActor(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, strings.TrimSpace(address))
}

// ActorFromContext returns the caller address from context, if set.
func ActorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value := ctx.Value(ActorContextKey{})
	if value == nil {
		return "", false
	}
	address, ok := value.(string)
	if !ok || strings.TrimSpace(address) == "" {
		return "", false
	}
	return address, true
}
