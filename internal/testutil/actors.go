package testutil

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// As returns ctx carrying an actor with the given role and id.
func As(ctx context.Context, role actorcontext.Role, id snowflake.ID) context.Context {
	return actorcontext.WithActor(ctx, actorcontext.Actor{ID: id, Role: role})
}

// NewAuthz returns an authorization service backed by an in-memory enforcer.
func NewAuthz(t *testing.T) authorization.Service {
	t.Helper()
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
}
