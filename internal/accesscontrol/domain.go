package accesscontrol

import (
	"context"
	"errors"
	"fmt"
)

// Roles understood by the ledger. Membership is persisted as casbin grouping
// policies, so a grant survives restarts and logic upgrades.
const (
	RoleAdmin       = "role:admin"
	RoleRegistrar   = "role:registrar"
	RoleMinter      = "role:minter"
	RoleDistributor = "role:distributor"
	RolePauser      = "role:pauser"
)

var knownRoles = map[string]struct{}{
	RoleAdmin:       {},
	RoleRegistrar:   {},
	RoleMinter:      {},
	RoleDistributor: {},
	RolePauser:      {},
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidActor   = errors.New("invalid_actor")
)

// UnauthorizedError names the missing role and the caller so operators can
// diagnose permission problems instead of staring at a generic failure.
type UnauthorizedError struct {
	Role  string
	Actor string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: account %s is missing role %s", e.Actor, e.Role)
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// Service is the role-membership registry consulted by every mutating
// operation in the system.
type Service interface {
	// GrantRole adds account to role. Caller must hold the role's admin
	// role (the admin role, for every role including itself). Granting an
	// already-held role is a no-op.
	GrantRole(ctx context.Context, role, account string) error
	// RevokeRole removes account from role, same gating as GrantRole.
	// Revoking a role the account does not hold is a no-op.
	RevokeRole(ctx context.Context, role, account string) error
	// HasRole reports membership. Pure read.
	HasRole(ctx context.Context, role, account string) (bool, error)
	// Require returns the context actor if it holds role, or an
	// UnauthorizedError naming the missing role and the caller.
	Require(ctx context.Context, role string) (string, error)
	// RequireAny returns the context actor if it holds at least one of
	// roles.
	RequireAny(ctx context.Context, roles ...string) (string, error)
}
