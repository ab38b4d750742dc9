package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/logabi/session"
)

// SessionResolver returns the session a guest call operates on.
type SessionResolver func(ctx context.Context, mod api.Module) (*session.Session, error)

// ContextResolver resolves the session carried by the call's context.
func ContextResolver(ctx context.Context, _ api.Module) (*session.Session, error) {
	if s, ok := session.FromContext(ctx); ok {
		return s, nil
	}
	return nil, session.ErrNotFound
}

// StoreResolver resolves the session from ctx, falling back to the store
// entry for the calling module's name.
func StoreResolver(store *session.Store) SessionResolver {
	return func(ctx context.Context, mod api.Module) (*session.Session, error) {
		return store.Resolve(ctx, mod.Name())
	}
}
