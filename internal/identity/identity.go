package identity

import (
	"context"
	"net/url"

	"github.com/google/uuid"
)

// Identity is the per-request caller: an anonymous session key plus the
// authenticated user when a valid token was presented.
type Identity struct {
	SessionKey string
	UserID     *uuid.UUID
	Staff      bool
	Params     url.Values
}

type ctxKey struct{}

// WithContext attaches the identity to ctx.
func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached to ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// IsAuthenticated reports whether a user is attached.
func (i Identity) IsAuthenticated() bool {
	return i.UserID != nil && *i.UserID != uuid.Nil
}

// Owns reports whether the identity is the given owner.
func (i Identity) Owns(owner *uuid.UUID) bool {
	if !i.IsAuthenticated() || owner == nil {
		return false
	}
	return *i.UserID == *owner
}

// Param returns the first value of a request parameter.
func (i Identity) Param(key string) string {
	if i.Params == nil {
		return ""
	}
	return i.Params.Get(key)
}
