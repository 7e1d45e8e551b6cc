package identity

import (
	"context"

	"crowdfund-platform/pkg/errutil"
)

// Role is the closed set of platform roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Identity is the authenticated principal resolved by the external auth
// layer and forwarded with each request.
type Identity struct {
	ID   int64
	Role Role
}

type contextKey struct{}

func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller identity, or Unauthorized when the request
// carried none.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.ID == 0 || !id.Role.Valid() {
		return Identity{}, errutil.Unauthorized("authentication required", nil)
	}
	return id, nil
}
