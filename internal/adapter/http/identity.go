package http

import (
	"context"

	"github.com/prontolabs/pronto/internal/domain"
)

// Identity is the authenticated actor as resolved by the scope guard.
type Identity struct {
	ActorID int64
	Scope   domain.Scope
}

type identityKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
