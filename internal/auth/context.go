package auth

import (
	"context"
	"errors"
)

// ErrNoIdentity means the request did not pass RequireAccessToken.
var ErrNoIdentity = errors.New("auth: identity not in context")

// Identity is the caller as established by a verified access token.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, userID, tenantID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, TenantID: tenantID, Role: role})
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func field(ctx context.Context, pick func(Identity) string) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok || pick(id) == "" {
		return "", ErrNoIdentity
	}
	return pick(id), nil
}

func UserID(ctx context.Context) (string, error) {
	return field(ctx, func(id Identity) string { return id.UserID })
}

// TenantID is the only source of the tenant boundary for catalog and pricing queries.
func TenantID(ctx context.Context) (string, error) {
	return field(ctx, func(id Identity) string { return id.TenantID })
}

func Role(ctx context.Context) (string, error) {
	return field(ctx, func(id Identity) string { return id.Role })
}
