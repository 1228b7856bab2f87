package domain

import "context"

type contextKey string

const contextKeyPrincipal = contextKey("principal")

// Principal is the opaque identity yielded by the external authentication provider
type Principal string

// WithPrincipal returns a context carrying the caller identity for "my" remote calls
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// PrincipalFromContext extracts the caller identity.
// Returns false when the context is anonymous.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(Principal)
	return p, ok && p != ""
}
