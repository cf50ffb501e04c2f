package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/fault"
	"github.com/smallbiznis/redevance/internal/taxpayer/domain"
	"github.com/smallbiznis/redevance/internal/taxpayer/repository"
	"github.com/smallbiznis/redevance/internal/taxpayer/service"
	"github.com/smallbiznis/redevance/internal/testutil"
	"github.com/smallbiznis/redevance/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) domain.Service {
	t.Helper()
	return service.New(service.Params{
		DB:    testutil.OpenDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: testutil.NewClock(2026, time.February, 1),
		Repo:  repository.Provide(),
		Authz: testutil.NewAuthz(t),
	})
}

func TestRegisterDerivesProfileCompleteness(t *testing.T) {
	svc := newService(t)
	ctx := testutil.As(context.Background(), actorcontext.RoleAgent, 1)

	partial, err := svc.Register(ctx, domain.RegisterRequest{Kind: "individual", LegalName: "Jean K."})
	require.NoError(t, err)
	assert.False(t, partial.ProfileComplete)
	assert.Equal(t, domain.StatusActive, partial.Status)

	full, err := svc.Register(ctx, domain.RegisterRequest{
		Kind:           "organization",
		LegalName:      "Hotel Memling",
		Email:          "contact@memling.cd",
		ZoneCode:       "kin",
		ZoneClass:      "a",
		Classification: "Hôtel 4 étoiles",
	})
	require.NoError(t, err)
	assert.True(t, full.ProfileComplete)
	assert.Equal(t, "KIN", full.ZoneCode)
	assert.Equal(t, "A", full.ZoneClass)
	assert.Equal(t, "hotel-4-etoiles", full.Classification)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := newService(t)
	ctx := testutil.As(context.Background(), actorcontext.RoleAgent, 1)

	_, err := svc.Register(ctx, domain.RegisterRequest{Kind: "robot"})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = svc.Register(ctx, domain.RegisterRequest{Kind: "individual", Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Register(ctx, domain.RegisterRequest{Kind: "individual", ZoneCode: "k!"})
	assert.ErrorIs(t, err, domain.ErrInvalidZone)
}

func TestRegisterRequiresStaff(t *testing.T) {
	svc := newService(t)
	ctx := testutil.As(context.Background(), actorcontext.RoleTaxpayer, 1)

	_, err := svc.Register(ctx, domain.RegisterRequest{Kind: "individual"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestUpdateProfileOwnership(t *testing.T) {
	svc := newService(t)
	agent := testutil.As(context.Background(), actorcontext.RoleAgent, 1)

	tp, err := svc.Register(agent, domain.RegisterRequest{Kind: "individual", LegalName: "Jean"})
	require.NoError(t, err)

	other := testutil.As(context.Background(), actorcontext.RoleTaxpayer, tp.ID+1)
	email := "jean@example.cd"
	_, err = svc.UpdateProfile(other, domain.UpdateProfileRequest{ID: tp.ID.String(), Email: &email})
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	self := testutil.As(context.Background(), actorcontext.RoleTaxpayer, tp.ID)
	updated, err := svc.UpdateProfile(self, domain.UpdateProfileRequest{ID: tp.ID.String(), Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.False(t, updated.ProfileComplete)
}

func TestDeactivateKeepsRecord(t *testing.T) {
	svc := newService(t)
	agent := testutil.As(context.Background(), actorcontext.RoleAgent, 1)
	supervisor := testutil.As(context.Background(), actorcontext.RoleSupervisor, 2)

	tp, err := svc.Register(agent, domain.RegisterRequest{Kind: "individual", LegalName: "Jean"})
	require.NoError(t, err)

	_, err = svc.Deactivate(agent, tp.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	out, err := svc.Deactivate(supervisor, tp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, out.Status)
	require.NotNil(t, out.DeactivatedAt)

	got, err := svc.Get(agent, tp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, got.Status)

	name := "Jean K."
	_, err = svc.UpdateProfile(agent, domain.UpdateProfileRequest{ID: tp.ID.String(), LegalName: &name})
	assert.ErrorIs(t, err, domain.ErrInactive)
}

func TestGetNotFound(t *testing.T) {
	svc := newService(t)
	agent := testutil.As(context.Background(), actorcontext.RoleAgent, 1)

	_, err := svc.Get(agent, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(agent, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListPaginatesByID(t *testing.T) {
	svc := newService(t)
	agent := testutil.As(context.Background(), actorcontext.RoleAgent, 1)
	for i := 0; i < 3; i++ {
		_, err := svc.Register(agent, domain.RegisterRequest{Kind: "individual", ZoneCode: "KIN"})
		require.NoError(t, err)
	}

	page, err := svc.List(agent, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}, ZoneCode: "kin"})
	require.NoError(t, err)
	assert.Len(t, page.Taxpayers, 2)
	assert.True(t, page.HasMore)

	next, err := svc.List(agent, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	require.NoError(t, err)
	assert.Len(t, next.Taxpayers, 1)
}
