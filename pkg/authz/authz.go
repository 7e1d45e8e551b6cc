package authz

import (
	"context"

	"crowdfund-platform/pkg/config"
	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/identity"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
)

var Module = fx.Module("authz", fx.Provide(New))

// Objects and actions enforced at the service boundary.
const (
	ObjCampaign = "campaign"
	ObjDonation = "donation"
	ObjReward   = "reward"
	ObjSweep    = "sweep"

	ActCreate = "create"
	ActReview = "review"
	ActClaim  = "claim"
	ActRun    = "run"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Enforcer centralizes the role capability checks that were previously
// scattered per endpoint. Ownership checks stay data-dependent in services.
type Enforcer struct {
	enforcer *casbin.Enforcer
}

func New(cfg *config.Config) (*Enforcer, error) {
	if cfg.AccessControl.Model != "" && cfg.AccessControl.Policy != "" {
		e, err := casbin.NewEnforcer(cfg.AccessControl.Model, cfg.AccessControl.Policy)
		if err != nil {
			return nil, err
		}
		return &Enforcer{enforcer: e}, nil
	}

	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	policies := [][]string{
		{string(identity.RoleMember), ObjCampaign, ActCreate},
		{string(identity.RoleMember), ObjDonation, ActCreate},
		{string(identity.RoleMember), ObjReward, ActClaim},
		{string(identity.RoleAdmin), ObjCampaign, ActReview},
		{string(identity.RoleAdmin), ObjSweep, ActRun},
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, err
		}
	}

	// admins inherit member capabilities
	if _, err := e.AddGroupingPolicy(string(identity.RoleAdmin), string(identity.RoleMember)); err != nil {
		return nil, err
	}

	return &Enforcer{enforcer: e}, nil
}

// Require resolves the caller identity and checks the (object, action)
// capability for its role.
func (a *Enforcer) Require(ctx context.Context, obj, act string) (identity.Identity, error) {
	id, err := identity.FromContext(ctx)
	if err != nil {
		return identity.Identity{}, err
	}

	ok, err := a.enforcer.Enforce(string(id.Role), obj, act)
	if err != nil {
		return identity.Identity{}, errutil.Internal("authorization check failed", err)
	}
	if !ok {
		return identity.Identity{}, errutil.Forbidden("insufficient role", nil)
	}

	return id, nil
}

// RequireOwner resolves the caller and checks resource ownership. Owner-only
// operations are strict: an admin does not act on another member's behalf.
func (a *Enforcer) RequireOwner(ctx context.Context, ownerID int64) (identity.Identity, error) {
	id, err := identity.FromContext(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	if id.ID != ownerID {
		return identity.Identity{}, errutil.Forbidden("not the resource owner", nil)
	}
	return id, nil
}
