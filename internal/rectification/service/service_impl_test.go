package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/clock"
	controldomain "github.com/smallbiznis/redevance/internal/control/domain"
	controlrepo "github.com/smallbiznis/redevance/internal/control/repository"
	controlservice "github.com/smallbiznis/redevance/internal/control/service"
	"github.com/smallbiznis/redevance/internal/fault"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	noterepo "github.com/smallbiznis/redevance/internal/note/repository"
	noteservice "github.com/smallbiznis/redevance/internal/note/service"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	"github.com/smallbiznis/redevance/internal/rectification/domain"
	"github.com/smallbiznis/redevance/internal/rectification/repository"
	"github.com/smallbiznis/redevance/internal/rectification/service"
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
	taxpayerID   snowflake.ID = 300
	agentID      snowflake.ID = 500
	supervisorID snowflake.ID = 900
)

type fixture struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	noteRepo  notedomain.Repository
	taxpayers taxpayerdomain.Repository
	notes     notedomain.Service
	controls  controldomain.Service
	svc       domain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := testutil.NewClock(2026, time.June, 1)
	node := testutil.NewNode(t)
	authz := testutil.NewAuthz(t)
	noteRepo := noterepo.Provide()
	taxpayers := taxpayerrepo.Provide()
	controls := controlrepo.Provide()
	tariffs := tariffservice.New(tariffservice.Params{DB: db, Log: zap.NewNop(), Repo: tariffrepo.Provide()})

	notes := noteservice.New(noteservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         noteRepo,
		TaxpayerRepo: taxpayers,
		Tariffs:      tariffs,
		Authz:        authz,
	})
	controlSvc := controlservice.New(controlservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         controls,
		TaxpayerRepo: taxpayers,
		NoteRepo:     noteRepo,
		Notes:        notes,
		Authz:        authz,
	})
	svc := service.New(service.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         clk,
		Repo:          repository.Provide(),
		ControlRepo:   controls,
		NoteRepo:      noteRepo,
		TaxpayerRepo:  taxpayers,
		Tariffs:       tariffs,
		Notifications: testutil.NewNotifier(t, db, node, clk),
		Authz:         authz,
	})

	testutil.SeedTaxpayer(t, db, taxpayerID, "KIN", "A")
	return fixture{db: db, clock: clk, noteRepo: noteRepo, taxpayers: taxpayers, notes: notes, controls: controlSvc, svc: svc}
}

func supervisor() context.Context {
	return testutil.As(context.Background(), actorcontext.RoleSupervisor, supervisorID)
}

func agent() context.Context {
	return testutil.As(context.Background(), actorcontext.RoleAgent, agentID)
}

// declareOneTV issues the taxpayer's 2026 note for a single TV.
func (f fixture) declareOneTV(t *testing.T) notedomain.TaxationNote {
	t.Helper()
	note, err := f.notes.Issue(agent(), notedomain.IssueRequest{
		TaxpayerID: taxpayerID.String(),
		FiscalYear: 2026,
		Lines:      []tariffdomain.LineInput{{Category: "tv", Count: 1}},
	})
	require.NoError(t, err)
	return note
}

// auditThreeTVs completes a control that measures three TVs and returns its report.
func (f fixture) auditThreeTVs(t *testing.T) controldomain.Report {
	t.Helper()
	return f.audit(t, []tariffdomain.LineInput{{Category: "tv", Count: 3}}).Report
}

func (f fixture) audit(t *testing.T, measured []tariffdomain.LineInput) auditResult {
	t.Helper()
	control, err := f.controls.Plan(supervisor(), controldomain.PlanRequest{
		TaxpayerID:      taxpayerID.String(),
		FiscalYear:      2026,
		AssignedAgentID: agentID.String(),
	})
	require.NoError(t, err)

	result, err := f.controls.Complete(agent(), control.ID.String(), controldomain.CompleteRequest{
		Findings:      "three televisions in the lobby and rooms",
		Infraction:    true,
		MeasuredLines: measured,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	return auditResult{Report: *result.Report, Note: result.Note}
}

type auditResult struct {
	Report controldomain.Report
	Note   *notedomain.TaxationNote
}

func TestSuggestGapPricesUndeclaredDevices(t *testing.T) {
	f := newFixture(t)
	note := f.declareOneTV(t)
	report := f.auditThreeTVs(t)

	suggestion, err := f.svc.SuggestGap(supervisor(), report.ID.String())
	require.NoError(t, err)
	assert.Equal(t, note.ID, suggestion.NoteID)
	require.Len(t, suggestion.Lines, 1)
	assert.Equal(t, 2, suggestion.Lines[0].Missing)
	assert.True(t, decimal.NewFromInt(20).Equal(suggestion.GapAmount))
}

func TestGenerateKeepsOriginalNoteTotal(t *testing.T) {
	f := newFixture(t)
	note := f.declareOneTV(t)
	report := f.auditThreeTVs(t)

	rect, err := f.svc.Generate(supervisor(), domain.GenerateRequest{
		ReportID:      report.ID.String(),
		GapAmount:     "20",
		PenaltyAmount: "5",
		Motif:         "two undeclared televisions",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, rect.Status)
	assert.Equal(t, note.ID, rect.OriginalNoteID)
	assert.Equal(t, report.ID, rect.ReportID)
	assert.True(t, decimal.NewFromInt(25).Equal(rect.Total))
	assert.Nil(t, rect.Number)

	original, err := f.noteRepo.FindByID(context.Background(), f.db, note.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(original.TotalDue))
	require.NotNil(t, original.LastRectificationID)
	assert.Equal(t, rect.ID, *original.LastRectificationID)
	assert.NotNil(t, original.RectifiedAt)

	taxpayer, err := f.taxpayers.FindByID(context.Background(), f.db, taxpayerID)
	require.NoError(t, err)
	assert.Equal(t, taxpayerdomain.StatusLiableForAudit, taxpayer.Status)
}

func TestGenerateTwiceIsConflict(t *testing.T) {
	f := newFixture(t)
	f.declareOneTV(t)
	report := f.auditThreeTVs(t)

	req := domain.GenerateRequest{ReportID: report.ID.String(), GapAmount: "20", PenaltyAmount: "5", Motif: "gap"}
	first, err := f.svc.Generate(supervisor(), req)
	require.NoError(t, err)

	_, err = f.svc.Generate(supervisor(), req)
	require.ErrorIs(t, err, domain.ErrAlreadyRectified)
	assert.ErrorIs(t, err, fault.ErrConflict)

	list, err := f.svc.ListByTaxpayer(supervisor(), taxpayerID.String())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
	assert.True(t, first.Total.Equal(list[0].Total))
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t)
	f.declareOneTV(t)
	report := f.auditThreeTVs(t)

	cases := []struct {
		name string
		req  domain.GenerateRequest
		want error
	}{
		{"bad report id", domain.GenerateRequest{ReportID: "x", GapAmount: "1", Motif: "m"}, domain.ErrInvalidReportID},
		{"negative gap", domain.GenerateRequest{ReportID: report.ID.String(), GapAmount: "-1", Motif: "m"}, domain.ErrInvalidAmount},
		{"zero total", domain.GenerateRequest{ReportID: report.ID.String(), GapAmount: "0", PenaltyAmount: "0", Motif: "m"}, domain.ErrInvalidAmount},
		{"missing motif", domain.GenerateRequest{ReportID: report.ID.String(), GapAmount: "1"}, domain.ErrMissingMotif},
		{"unknown report", domain.GenerateRequest{ReportID: "12345", GapAmount: "1", Motif: "m"}, controldomain.ErrReportNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Generate(supervisor(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerateWithoutOriginalNote(t *testing.T) {
	f := newFixture(t)
	report := f.audit(t, nil).Report

	_, err := f.svc.Generate(supervisor(), domain.GenerateRequest{
		ReportID:  report.ID.String(),
		GapAmount: "30",
		Motif:     "no declaration at all",
	})
	assert.ErrorIs(t, err, domain.ErrOriginalNoteMissing)
}

func TestNonDeclarantIsRectifiedAgainstControlNote(t *testing.T) {
	f := newFixture(t)
	audited := f.audit(t, []tariffdomain.LineInput{{Category: "tv", Count: 3}})
	require.NotNil(t, audited.Note)
	assert.Equal(t, notedomain.SourceControl, audited.Note.Source)
	assert.True(t, decimal.NewFromInt(30).Equal(audited.Note.TotalDue))

	rect, err := f.svc.Generate(supervisor(), domain.GenerateRequest{
		ReportID:      audited.Report.ID.String(),
		GapAmount:     "1",
		PenaltyAmount: "15",
		Motif:         "no declaration filed",
	})
	require.NoError(t, err)
	assert.Equal(t, audited.Note.ID, rect.OriginalNoteID)
}

func TestAgentCannotGenerate(t *testing.T) {
	f := newFixture(t)
	f.declareOneTV(t)
	report := f.auditThreeTVs(t)

	_, err := f.svc.Generate(agent(), domain.GenerateRequest{ReportID: report.ID.String(), GapAmount: "20", Motif: "gap"})
	assert.ErrorIs(t, err, fault.ErrUnauthorized)
}

func TestIssueAllocatesRectificationNumber(t *testing.T) {
	f := newFixture(t)
	f.declareOneTV(t)
	report := f.auditThreeTVs(t)
	rect, err := f.svc.Generate(supervisor(), domain.GenerateRequest{
		ReportID: report.ID.String(), GapAmount: "20", PenaltyAmount: "5", Motif: "gap",
	})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	issued, err := f.svc.Issue(supervisor(), rect.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIssued, issued.Status)
	require.NotNil(t, issued.Number)
	assert.Equal(t, "NR-2026-KIN-0001", *issued.Number)
	require.NotNil(t, issued.DueDate)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, notedomain.DueDays), *issued.DueDate)

	assert.Equal(t, int64(1), testutil.CountNotifications(t, f.db, notificationdomain.SubjectRectification, rect.ID))

	_, err = f.svc.Issue(supervisor(), rect.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotDraft)
}

func TestTaxpayerSeesOnlyOwnRectifications(t *testing.T) {
	f := newFixture(t)
	f.declareOneTV(t)
	report := f.auditThreeTVs(t)
	rect, err := f.svc.Generate(supervisor(), domain.GenerateRequest{ReportID: report.ID.String(), GapAmount: "20", Motif: "gap"})
	require.NoError(t, err)

	owner := testutil.As(context.Background(), actorcontext.RoleTaxpayer, taxpayerID)
	got, err := f.svc.Get(owner, rect.ID.String())
	require.NoError(t, err)
	assert.Equal(t, rect.ID, got.ID)

	stranger := testutil.As(context.Background(), actorcontext.RoleTaxpayer, 999)
	_, err = f.svc.Get(stranger, rect.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	_, err = f.svc.ListByTaxpayer(stranger, taxpayerID.String())
	assert.ErrorIs(t, err, domain.ErrNotOwner)
}
