package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/control/domain"
	"github.com/smallbiznis/redevance/internal/control/repository"
	"github.com/smallbiznis/redevance/internal/control/service"
	"github.com/smallbiznis/redevance/internal/fault"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	noterepo "github.com/smallbiznis/redevance/internal/note/repository"
	noteservice "github.com/smallbiznis/redevance/internal/note/service"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/redevance/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/redevance/internal/tariff/service"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	taxpayerrepo "github.com/smallbiznis/redevance/internal/taxpayer/repository"
	"github.com/smallbiznis/redevance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	taxpayerID   snowflake.ID = 200
	agentID      snowflake.ID = 500
	otherAgentID snowflake.ID = 501
	supervisorID snowflake.ID = 900
)

type fixture struct {
	db        *gorm.DB
	taxpayers taxpayerdomain.Repository
	notes     notedomain.Service
	noteRepo  notedomain.Repository
	svc       domain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	clk := testutil.NewClock(2026, time.June, 1)
	authz := testutil.NewAuthz(t)
	taxpayers := taxpayerrepo.Provide()
	noteRepo := noterepo.Provide()
	notes := noteservice.New(noteservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         noteRepo,
		TaxpayerRepo: taxpayers,
		Tariffs:      tariffservice.New(tariffservice.Params{DB: db, Log: zap.NewNop(), Repo: tariffrepo.Provide()}),
		Authz:        authz,
	})
	svc := service.New(service.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         repository.Provide(),
		TaxpayerRepo: taxpayers,
		NoteRepo:     noteRepo,
		Notes:        notes,
		Authz:        authz,
	})
	testutil.SeedTaxpayer(t, db, taxpayerID, "KIN", "A")
	return fixture{db: db, taxpayers: taxpayers, notes: notes, noteRepo: noteRepo, svc: svc}
}

func supervisor() context.Context {
	return testutil.As(context.Background(), actorcontext.RoleSupervisor, supervisorID)
}

func agent(id snowflake.ID) context.Context {
	return testutil.As(context.Background(), actorcontext.RoleAgent, id)
}

func (f fixture) plan(t *testing.T) domain.Control {
	t.Helper()
	control, err := f.svc.Plan(supervisor(), domain.PlanRequest{
		TaxpayerID:      taxpayerID.String(),
		FiscalYear:      2026,
		AssignedAgentID: agentID.String(),
	})
	require.NoError(t, err)
	return control
}

func (f fixture) taxpayerStatus(t *testing.T) taxpayerdomain.Status {
	t.Helper()
	tp, err := f.taxpayers.FindByID(context.Background(), f.db, taxpayerID)
	require.NoError(t, err)
	require.NotNil(t, tp)
	return tp.Status
}

func TestPlanRequiresSupervisor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Plan(agent(agentID), domain.PlanRequest{
		TaxpayerID:      taxpayerID.String(),
		AssignedAgentID: agentID.String(),
	})
	assert.ErrorIs(t, err, fault.ErrUnauthorized)
}

func TestPlanDefaults(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)
	assert.Equal(t, domain.StatusPlanned, control.Status)
	assert.Equal(t, domain.KindRoutine, control.Kind)
	require.NotNil(t, control.PlannedBy)
	assert.Equal(t, supervisorID, *control.PlannedBy)
}

func TestPlanValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		req  domain.PlanRequest
		want error
	}{
		{"bad taxpayer", domain.PlanRequest{TaxpayerID: "x", AssignedAgentID: "1"}, taxpayerdomain.ErrInvalidID},
		{"bad agent", domain.PlanRequest{TaxpayerID: taxpayerID.String(), AssignedAgentID: ""}, domain.ErrInvalidAgent},
		{"bad kind", domain.PlanRequest{TaxpayerID: taxpayerID.String(), AssignedAgentID: "1", Kind: "raid"}, domain.ErrInvalidKind},
		{"future year", domain.PlanRequest{TaxpayerID: taxpayerID.String(), AssignedAgentID: "1", FiscalYear: 2027}, domain.ErrInvalidYear},
		{"unknown taxpayer", domain.PlanRequest{TaxpayerID: "777", AssignedAgentID: "1"}, taxpayerdomain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Plan(supervisor(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCompleteWithInfractionCreatesReportAndFlagsTaxpayer(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)

	result, err := f.svc.Complete(agent(agentID), control.ID.String(), domain.CompleteRequest{
		Findings:       "declared 1 TV, found 3",
		Infraction:     true,
		InfractionText: "under-declaration",
		MeasuredLines:  []tariffdomain.LineInput{{Category: "TV", Count: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, result.Control.Status)
	require.NotNil(t, result.Report)
	assert.Equal(t, control.ID, result.Report.ControlID)
	assert.Equal(t, agentID, result.Report.OfficerID)
	assert.Equal(t, "under-declaration", result.Report.Infraction)
	assert.Equal(t, taxpayerdomain.StatusLiableForAudit, f.taxpayerStatus(t))

	stored, err := f.svc.Get(agent(agentID), control.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.MeasuredLines, 1)
	assert.Equal(t, "tv", stored.MeasuredLines[0].Category)
	assert.Equal(t, tariffdomain.AnySubCategory, stored.MeasuredLines[0].SubCategory)

	report, err := f.svc.GetReport(supervisor(), result.Report.ID.String())
	require.NoError(t, err)
	assert.Equal(t, taxpayerID, report.TaxpayerID)
	assert.Equal(t, 2026, report.FiscalYear)
}

func TestCompleteWithoutInfractionLeavesTaxpayerUntouched(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)

	result, err := f.svc.Complete(agent(agentID), control.ID.String(), domain.CompleteRequest{Findings: "all declared"})
	require.NoError(t, err)
	assert.Nil(t, result.Report)
	assert.Equal(t, taxpayerdomain.StatusActive, f.taxpayerStatus(t))

	report, err := repository.Provide().FindReportByControl(context.Background(), f.db, control.ID)
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestOnlyAssignedAgentOrSupervisorCompletes(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)
	req := domain.CompleteRequest{Findings: "ok"}

	_, err := f.svc.Complete(agent(otherAgentID), control.ID.String(), req)
	require.ErrorIs(t, err, domain.ErrNotAssignedAgent)

	_, err = f.svc.Complete(testutil.As(context.Background(), actorcontext.RoleCashier, 1), control.ID.String(), req)
	require.ErrorIs(t, err, fault.ErrUnauthorized)

	result, err := f.svc.Complete(supervisor(), control.ID.String(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Control.CompletedBy)
	assert.Equal(t, supervisorID, *result.Control.CompletedBy)
}

func TestCompleteTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)
	req := domain.CompleteRequest{Findings: "found 2 radios", Infraction: true}

	first, err := f.svc.Complete(agent(agentID), control.ID.String(), req)
	require.NoError(t, err)
	require.NotNil(t, first.Report)

	_, err = f.svc.Complete(agent(agentID), control.ID.String(), req)
	require.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	assert.ErrorIs(t, err, fault.ErrConflict)

	report, err := repository.Provide().FindReportByControl(context.Background(), f.db, control.ID)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, first.Report.ID, report.ID)
	assert.Equal(t, "found 2 radios", report.Infraction)
}

func TestCompleteRequiresFindings(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)
	_, err := f.svc.Complete(agent(agentID), control.ID.String(), domain.CompleteRequest{Infraction: true})
	assert.ErrorIs(t, err, domain.ErrMissingFindings)
	assert.Equal(t, taxpayerdomain.StatusActive, f.taxpayerStatus(t))
}

func TestListByTaxpayer(t *testing.T) {
	f := newFixture(t)
	f.plan(t)
	f.plan(t)

	controls, err := f.svc.ListByTaxpayer(agent(agentID), taxpayerID.String())
	require.NoError(t, err)
	assert.Len(t, controls, 2)
}

func TestMeasuredCountsIssueNoteForNonDeclarant(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)

	result, err := f.svc.Complete(agent(agentID), control.ID.String(), domain.CompleteRequest{
		Findings:      "no declaration, 2 TVs and 1 radio on site",
		Infraction:    true,
		MeasuredLines: []tariffdomain.LineInput{{Category: "tv", Count: 2}, {Category: "radio", Count: 1}},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Note)
	assert.Equal(t, notedomain.SourceControl, result.Note.Source)
	require.NotNil(t, result.Note.SourceID)
	assert.Equal(t, control.ID, *result.Note.SourceID)
	assert.Equal(t, "25.00", result.Note.TotalDue.StringFixed(2))
	assert.Equal(t, notedomain.StatusIssued, result.Note.Status)

	stored, err := f.noteRepo.FindActive(context.Background(), f.db, taxpayerID, 2026)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, result.Note.ID, stored.ID)
}

func TestMeasuredCountsLeaveExistingNoteAlone(t *testing.T) {
	f := newFixture(t)
	declared, err := f.notes.Issue(agent(agentID), notedomain.IssueRequest{
		TaxpayerID: taxpayerID.String(),
		FiscalYear: 2026,
		Lines:      []tariffdomain.LineInput{{Category: "tv", Count: 1}},
	})
	require.NoError(t, err)
	control := f.plan(t)

	result, err := f.svc.Complete(agent(agentID), control.ID.String(), domain.CompleteRequest{
		Findings:      "declared 1 TV, found 3",
		Infraction:    true,
		MeasuredLines: []tariffdomain.LineInput{{Category: "tv", Count: 3}},
	})
	require.NoError(t, err)
	assert.Nil(t, result.Note)

	stored, err := f.noteRepo.FindActive(context.Background(), f.db, taxpayerID, 2026)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, declared.ID, stored.ID)
	assert.Equal(t, "10.00", stored.TotalDue.StringFixed(2))
}

func TestCompleteWithoutMeasuredCountsIssuesNothing(t *testing.T) {
	f := newFixture(t)
	control := f.plan(t)

	result, err := f.svc.Complete(agent(agentID), control.ID.String(), domain.CompleteRequest{Findings: "premises closed", Infraction: true})
	require.NoError(t, err)
	assert.Nil(t, result.Note)
}
