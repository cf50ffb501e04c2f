package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/fault"
	"github.com/smallbiznis/redevance/internal/note/domain"
	"github.com/smallbiznis/redevance/internal/note/repository"
	"github.com/smallbiznis/redevance/internal/note/service"
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

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	repo  domain.Repository
	svc   domain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := testutil.NewClock(2026, time.March, 10)
	repo := repository.Provide()
	svc := service.New(service.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        testutil.NewNode(t),
		Clock:        clk,
		Repo:         repo,
		TaxpayerRepo: taxpayerrepo.Provide(),
		Tariffs:      tariffservice.New(tariffservice.Params{DB: db, Log: zap.NewNop(), Repo: tariffrepo.Provide()}),
		Authz:        testutil.NewAuthz(t),
	})
	return fixture{db: db, clock: clk, repo: repo, svc: svc}
}

var declaredLines = []tariffdomain.LineInput{
	{Category: "tv", Count: 2},
	{Category: "radio", Count: 1},
}

func agent() context.Context {
	return testutil.As(context.Background(), actorcontext.RoleAgent, 500)
}

func TestIssueComputesTotalAndDueDate(t *testing.T) {
	f := newFixture(t)
	testutil.SeedTaxpayer(t, f.db, 100, "KIN", "A")

	note, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines})
	require.NoError(t, err)

	assert.Equal(t, "NT-2026-KIN-0001", note.Number)
	assert.Equal(t, domain.StatusIssued, note.Status)
	assert.True(t, note.TotalDue.Equal(decimal.NewFromInt(25)), note.TotalDue.String())
	assert.True(t, note.NetAmount.Equal(note.TotalDue))
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 30), note.DueDate)

	stored, err := f.svc.Get(agent(), note.ID.String())
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.True(t, stored.TotalDue.Equal(decimal.NewFromInt(25)))
	assert.True(t, stored.DueDate.Equal(note.DueDate))
}

func TestIssueTwiceForSameYearConflicts(t *testing.T) {
	f := newFixture(t)
	testutil.SeedTaxpayer(t, f.db, 100, "KIN", "A")

	first, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines})
	require.NoError(t, err)

	_, err = f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines})
	assert.ErrorIs(t, err, domain.ErrDuplicateNote)
	assert.ErrorIs(t, err, fault.ErrConflict)

	notes, err := f.svc.ListByTaxpayer(agent(), "100")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, first.ID, notes[0].ID)
	assert.Equal(t, domain.StatusIssued, notes[0].Status)
}

func TestVoidedNoteFreesTheYear(t *testing.T) {
	f := newFixture(t)
	testutil.SeedTaxpayer(t, f.db, 100, "KIN", "A")

	first, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines})
	require.NoError(t, err)
	require.NoError(t, f.repo.Void(context.Background(), f.db, first.ID, "dispute:1", f.clock.Now()))

	second, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines[:1]})
	require.NoError(t, err)
	assert.Equal(t, "NT-2026-KIN-0002", second.Number)
	assert.True(t, second.TotalDue.Equal(decimal.NewFromInt(20)))
}

func TestConcurrentIssuanceAllocatesDistinctNumbers(t *testing.T) {
	f := newFixture(t)
	const n = 6
	for i := 1; i <= n; i++ {
		testutil.SeedTaxpayer(t, f.db, snowflake.ID(100+i), "KIN", "A")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]struct{}{}
		errs    []error
	)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			note, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: fmt.Sprint(100 + id), FiscalYear: 2026, Lines: declaredLines})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[note.Number] = struct{}{}
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		assert.Contains(t, numbers, fmt.Sprintf("NT-2026-KIN-%04d", i))
	}
}

func TestSequenceIsScopedByZoneAndYear(t *testing.T) {
	f := newFixture(t)
	testutil.SeedTaxpayer(t, f.db, 100, "KIN", "A")
	testutil.SeedTaxpayer(t, f.db, 101, "LUB", "B")

	a, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines})
	require.NoError(t, err)
	b, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "101", FiscalYear: 2026, Lines: declaredLines})
	require.NoError(t, err)
	c, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2025, Lines: declaredLines})
	require.NoError(t, err)

	assert.Equal(t, "NT-2026-KIN-0001", a.Number)
	assert.Equal(t, "NT-2026-LUB-0001", b.Number)
	assert.Equal(t, "NT-2025-KIN-0001", c.Number)
	assert.True(t, b.TotalDue.Equal(decimal.NewFromInt(20)), "zone B prices: 2x8 + 1x4")
}

func TestIssueValidation(t *testing.T) {
	f := newFixture(t)
	testutil.SeedTaxpayer(t, f.db, 100, "KIN", "A")

	_, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 1999, Lines: declaredLines})
	assert.ErrorIs(t, err, domain.ErrInvalidFiscalYear)

	_, err = f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "999", FiscalYear: 2026, Lines: declaredLines})
	assert.ErrorIs(t, err, taxpayerdomain.ErrNotFound)

	_, err = f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: []tariffdomain.LineInput{{Category: "drone", Count: 1}}})
	assert.ErrorIs(t, err, tariffdomain.ErrUnknownTariff)

	taxpayer := testutil.As(context.Background(), actorcontext.RoleTaxpayer, 100)
	_, err = f.svc.Issue(taxpayer, domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines})
	assert.ErrorIs(t, err, fault.ErrUnauthorized)
}

func TestTaxpayerSeesOnlyOwnNotes(t *testing.T) {
	f := newFixture(t)
	testutil.SeedTaxpayer(t, f.db, 100, "KIN", "A")

	note, err := f.svc.Issue(agent(), domain.IssueRequest{TaxpayerID: "100", FiscalYear: 2026, Lines: declaredLines})
	require.NoError(t, err)

	owner := testutil.As(context.Background(), actorcontext.RoleTaxpayer, 100)
	_, err = f.svc.Get(owner, note.ID.String())
	require.NoError(t, err)

	stranger := testutil.As(context.Background(), actorcontext.RoleTaxpayer, 101)
	_, err = f.svc.Get(stranger, note.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotOwner)
}
