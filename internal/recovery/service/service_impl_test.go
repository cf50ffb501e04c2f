package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/fault"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	noterepo "github.com/smallbiznis/redevance/internal/note/repository"
	noteservice "github.com/smallbiznis/redevance/internal/note/service"
	"github.com/smallbiznis/redevance/internal/recovery/domain"
	"github.com/smallbiznis/redevance/internal/recovery/repository"
	"github.com/smallbiznis/redevance/internal/recovery/service"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/redevance/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/redevance/internal/tariff/service"
	taxpayerrepo "github.com/smallbiznis/redevance/internal/taxpayer/repository"
	"github.com/smallbiznis/redevance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const taxpayerID snowflake.ID = 800

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	notes notedomain.Service
	svc   domain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := testutil.NewClock(2026, time.September, 1)
	node := testutil.NewNode(t)
	authz := testutil.NewAuthz(t)
	noteRepo := noterepo.Provide()
	taxpayers := taxpayerrepo.Provide()

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
		NoteRepo:     noteRepo,
		TaxpayerRepo: taxpayers,
		Authz:        authz,
	})
	testutil.SeedTaxpayer(t, db, taxpayerID, "KIN", "A")
	return fixture{db: db, clock: clk, notes: notes, svc: svc}
}

func authority() context.Context {
	return testutil.As(context.Background(), actorcontext.RoleAuthority, 0)
}

func (f fixture) issue(t *testing.T, year int) notedomain.TaxationNote {
	t.Helper()
	note, err := f.notes.Issue(testutil.As(context.Background(), actorcontext.RoleAgent, 500), notedomain.IssueRequest{
		TaxpayerID: taxpayerID.String(),
		FiscalYear: year,
		Lines:      []tariffdomain.LineInput{{Category: "tv", Count: 2}, {Category: "radio", Count: 1}},
	})
	require.NoError(t, err)
	return note
}

func (f fixture) refer(t *testing.T, note notedomain.TaxationNote) domain.ReferResult {
	t.Helper()
	var result domain.ReferResult
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = f.svc.ReferInTx(context.Background(), tx, domain.ReferCommand{
			TaxpayerID: note.TaxpayerID,
			NoteID:     note.ID,
			AmountDue:  note.Outstanding(),
		})
		return err
	})
	require.NoError(t, err)
	f.svc.AfterRefer(context.Background(), result)
	return result
}

func TestReferCreatesThenJoinsDossier(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, 2025)
	second := f.issue(t, 2026)

	created := f.refer(t, first)
	require.NotNil(t, created.Dossier)
	assert.True(t, created.Created)
	assert.True(t, created.Added)
	assert.Equal(t, domain.StatusReferred, created.Dossier.Status)
	assert.Regexp(t, `^DR-2026-[0-9A-Z]{26}$`, created.Dossier.Reference)

	joined := f.refer(t, second)
	assert.False(t, joined.Created)
	assert.True(t, joined.Added)
	assert.Equal(t, created.Dossier.ID, joined.Dossier.ID)

	again := f.refer(t, second)
	assert.False(t, again.Added)

	detail, err := f.svc.Get(authority(), created.Dossier.ID.String())
	require.NoError(t, err)
	assert.Len(t, detail.Notes, 2)
	assert.True(t, decimal.NewFromInt(50).Equal(detail.Dossier.AmountDue))
}

func TestCloseFreesActiveSlot(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, 2025)
	second := f.issue(t, 2026)
	referred := f.refer(t, first)

	closed, err := f.svc.Close(authority(), referred.Dossier.ID.String(), domain.CloseRequest{Outcome: "judgment obtained"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	require.NotNil(t, closed.Outcome)
	assert.Equal(t, "judgment obtained", *closed.Outcome)

	_, err = f.svc.Close(authority(), referred.Dossier.ID.String(), domain.CloseRequest{Outcome: "again"})
	require.ErrorIs(t, err, domain.ErrAlreadyClosed)
	assert.ErrorIs(t, err, fault.ErrConflict)

	next := f.refer(t, second)
	assert.True(t, next.Created)
	assert.NotEqual(t, referred.Dossier.ID, next.Dossier.ID)
}

func TestOnlyAuthorityCloses(t *testing.T) {
	f := newFixture(t)
	referred := f.refer(t, f.issue(t, 2026))

	supervisor := testutil.As(context.Background(), actorcontext.RoleSupervisor, 900)
	_, err := f.svc.Close(supervisor, referred.Dossier.ID.String(), domain.CloseRequest{Outcome: "settled"})
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	_, err = f.svc.Close(authority(), referred.Dossier.ID.String(), domain.CloseRequest{})
	assert.ErrorIs(t, err, domain.ErrMissingOutcome)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	referred := f.refer(t, f.issue(t, 2026))

	list, err := f.svc.List(authority(), "referred")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, referred.Dossier.ID, list[0].ID)

	list, err = f.svc.List(authority(), "closed")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.List(authority(), "pending")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestExportWritesReferredDossiers(t *testing.T) {
	f := newFixture(t)
	note := f.issue(t, 2026)
	referred := f.refer(t, note)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(authority(), &buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()

	rows, err := book.GetRows("Dossiers")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Référence", rows[0][0])
	assert.Equal(t, referred.Dossier.Reference, rows[1][0])
	assert.Equal(t, taxpayerID.String(), rows[1][1])
	assert.Equal(t, "Taxpayer "+taxpayerID.String(), rows[1][2])
	assert.Contains(t, rows[1][5], note.Number)
}
