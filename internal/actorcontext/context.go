package actorcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Role is the tier supplied by the identity provider for every call.
type Role string

const (
	RoleTaxpayer   Role = "taxpayer"
	RoleCashier    Role = "cashier"
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleDirector   Role = "director"
	RoleAuthority  Role = "authority"
	RoleSystem     Role = "system"
)

// Actor identifies the caller. For taxpayers ID is the taxpayer id, for staff it is the agent id.
type Actor struct {
	ID   snowflake.ID
	Role Role
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.Role == "" {
		return Actor{}, false
	}
	return actor, true
}

// System returns the actor used by scheduled jobs.
func System() Actor {
	return Actor{Role: RoleSystem}
}

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleTaxpayer, RoleCashier, RoleAgent, RoleSupervisor, RoleDirector, RoleAuthority, RoleSystem:
		return role, true
	default:
		return "", false
	}
}

// IsStaff reports whether the role belongs to broadcaster personnel.
func (r Role) IsStaff() bool {
	switch r {
	case RoleCashier, RoleAgent, RoleSupervisor, RoleDirector:
		return true
	default:
		return false
	}
}

// Subject is the casbin subject for the role.
func (a Actor) Subject() string {
	return "role:" + string(a.Role)
}

// IDString returns the actor id or an empty string for anonymous system callers.
func (a Actor) IDString() string {
	if a.ID == 0 {
		return ""
	}
	return a.ID.String()
}
