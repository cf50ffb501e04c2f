package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/config"
	disputedomain "github.com/smallbiznis/redevance/internal/dispute/domain"
	disputerepo "github.com/smallbiznis/redevance/internal/dispute/repository"
	"github.com/smallbiznis/redevance/internal/escalation/domain"
	"github.com/smallbiznis/redevance/internal/escalation/repository"
	"github.com/smallbiznis/redevance/internal/escalation/service"
	"github.com/smallbiznis/redevance/internal/fault"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	noterepo "github.com/smallbiznis/redevance/internal/note/repository"
	noteservice "github.com/smallbiznis/redevance/internal/note/service"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/redevance/internal/notification/repository"
	notificationservice "github.com/smallbiznis/redevance/internal/notification/service"
	"github.com/smallbiznis/redevance/internal/providers/email"
	"github.com/smallbiznis/redevance/internal/providers/pdf"
	"github.com/smallbiznis/redevance/internal/providers/storage"
	recoverydomain "github.com/smallbiznis/redevance/internal/recovery/domain"
	recoveryrepo "github.com/smallbiznis/redevance/internal/recovery/repository"
	recoveryservice "github.com/smallbiznis/redevance/internal/recovery/service"
	rectificationdomain "github.com/smallbiznis/redevance/internal/rectification/domain"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/redevance/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/redevance/internal/tariff/service"
	taxpayerrepo "github.com/smallbiznis/redevance/internal/taxpayer/repository"
	"github.com/smallbiznis/redevance/internal/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const taxpayerID snowflake.ID = 700

type flakyEmail struct {
	mu       sync.Mutex
	failures int
	sent     []email.Message
}

func (f *flakyEmail) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *flakyEmail) fail(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *flakyEmail) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, msg := range f.sent {
		out = append(out, msg.To...)
	}
	return out
}

type EscalationSuite struct {
	suite.Suite

	db            *gorm.DB
	clock         *clock.FakeClock
	email         *flakyEmail
	noteRepo      notedomain.Repository
	notes         notedomain.Service
	notifications notificationdomain.Service
	recovery      recoverydomain.Service
	svc           domain.Service
}

func TestEscalationSuite(t *testing.T) {
	suite.Run(t, new(EscalationSuite))
}

func (s *EscalationSuite) SetupTest() {
	t := s.T()
	s.db = testutil.OpenDB(t)
	s.clock = testutil.NewClock(2026, time.January, 5)
	s.email = &flakyEmail{}
	node := testutil.NewNode(t)
	authz := testutil.NewAuthz(t)
	taxpayers := taxpayerrepo.Provide()
	policy := config.NewStaticPolicyHolder(config.DefaultEnforcementPolicy())
	s.noteRepo = noterepo.Provide()

	s.notes = noteservice.New(noteservice.Params{
		DB:           s.db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        s.clock,
		Repo:         s.noteRepo,
		TaxpayerRepo: taxpayers,
		Tariffs:      tariffservice.New(tariffservice.Params{DB: s.db, Log: zap.NewNop(), Repo: tariffrepo.Provide()}),
		Authz:        authz,
	})
	s.notifications = notificationservice.New(notificationservice.Params{
		DB:      s.db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   s.clock,
		Repo:    notificationrepo.Provide(),
		Email:   s.email,
		PDF:     &pdf.NoOpProvider{},
		Archive: storage.NoOpArchive{},
		Policy:  policy,
		Authz:   authz,
	})
	s.recovery = recoveryservice.New(recoveryservice.Params{
		DB:           s.db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        s.clock,
		Repo:         recoveryrepo.Provide(),
		NoteRepo:     s.noteRepo,
		TaxpayerRepo: taxpayers,
		Authz:        authz,
	})

	cfg := config.Config{}
	cfg.Authority = config.AuthorityConfig{Name: "Tribunal de commerce", Email: "greffe@tribunal.example.cd"}
	cfg.Scheduler.BatchSize = 2

	s.svc = service.New(service.Params{
		DB:            s.db,
		Log:           zap.NewNop(),
		Cfg:           cfg,
		Clock:         s.clock,
		Repo:          repository.Provide(),
		NoteRepo:      s.noteRepo,
		TaxpayerRepo:  taxpayers,
		DisputeRepo:   disputerepo.Provide(),
		Recovery:      s.recovery,
		Notifications: s.notifications,
		Policy:        policy,
		Authz:         authz,
	})

	testutil.SeedTaxpayer(t, s.db, taxpayerID, "KIN", "A")
}

func system() context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.System())
}

func (s *EscalationSuite) issue(year int) notedomain.TaxationNote {
	note, err := s.notes.Issue(testutil.As(context.Background(), actorcontext.RoleAgent, 500), notedomain.IssueRequest{
		TaxpayerID: taxpayerID.String(),
		FiscalYear: year,
		Lines:      []tariffdomain.LineInput{{Category: "tv", Count: 2}, {Category: "radio", Count: 1}},
	})
	s.Require().NoError(err)
	return note
}

func (s *EscalationSuite) daysAfterDue(note notedomain.TaxationNote, days int) {
	s.clock.Set(note.DueDate.AddDate(0, 0, days))
}

func (s *EscalationSuite) tick() domain.TickReport {
	report, err := s.svc.RunTick(system())
	s.Require().NoError(err)
	return report
}

func (s *EscalationSuite) stage(noteID snowflake.ID) domain.Stage {
	state, err := s.svc.Get(testutil.As(context.Background(), actorcontext.RoleAgent, 500), noteID.String())
	s.Require().NoError(err)
	return state.Stage
}

func (s *EscalationSuite) TestNothingBeforeDueDate() {
	note := s.issue(2026)
	s.daysAfterDue(note, 0)

	report := s.tick()
	s.Empty(report.Transitions)
	s.Equal(0, report.MarkedOverdue)
	s.Equal(domain.StageNone, s.stage(note.ID))
}

func (s *EscalationSuite) TestLateNoteAdvancesOneStagePerTick() {
	note := s.issue(2026)
	s.daysAfterDue(note, 40)

	report := s.tick()
	s.Require().Len(report.Transitions, 1)
	s.Equal(domain.StageNone, report.Transitions[0].From)
	s.Equal(domain.StageReminder, report.Transitions[0].To)
	s.Equal(1, report.MarkedOverdue)

	stored, err := s.noteRepo.FindByID(context.Background(), s.db, note.ID)
	s.Require().NoError(err)
	s.Equal(notedomain.StatusOverdue, stored.Status)

	for range 3 {
		again := s.tick()
		s.Empty(again.Transitions)
		s.Equal(0, again.Deliveries.Attempted)
	}
	s.Equal(domain.StageReminder, s.stage(note.ID))
	s.Equal(int64(1), testutil.CountNotifications(s.T(), s.db, notificationdomain.SubjectNote, note.ID))
	s.Len(s.email.recipients(), 1)
}

func (s *EscalationSuite) TestFullLadderEndsInSingleDossier() {
	note := s.issue(2026)

	expected := []struct {
		day   int
		stage domain.Stage
	}{
		{1, domain.StageReminder},
		{15, domain.StageWarning},
		{30, domain.StageFormalNotice},
		{45, domain.StageFinalNotice},
		{60, domain.StageForcedRecovery},
	}
	for _, step := range expected {
		s.daysAfterDue(note, step.day)
		report := s.tick()
		s.Require().Len(report.Transitions, 1, "day %d", step.day)
		s.Equal(step.stage, report.Transitions[0].To)
	}

	s.daysAfterDue(note, 200)
	s.Empty(s.tick().Transitions)

	state, err := s.svc.Get(system(), note.ID.String())
	s.Require().NoError(err)
	s.Equal(domain.StageForcedRecovery, state.Stage)
	s.Require().NotNil(state.DossierID)

	authority := testutil.As(context.Background(), actorcontext.RoleAuthority, 0)
	dossiers, err := s.recovery.List(authority, "referred")
	s.Require().NoError(err)
	s.Require().Len(dossiers, 1)
	s.Equal(*state.DossierID, dossiers[0].ID)
	s.Equal(int64(1), testutil.CountNotifications(s.T(), s.db, notificationdomain.SubjectDossier, dossiers[0].ID))
	s.Contains(s.email.recipients(), "greffe@tribunal.example.cd")
}

func (s *EscalationSuite) TestSecondNoteJoinsActiveDossier() {
	first := s.issue(2025)
	second := s.issue(2026)
	s.Require().Equal(first.DueDate, second.DueDate)

	for _, day := range []int{1, 15, 30, 45, 60} {
		s.daysAfterDue(first, day)
		report := s.tick()
		s.Len(report.Transitions, 2)
	}

	authority := testutil.As(context.Background(), actorcontext.RoleAuthority, 0)
	dossiers, err := s.recovery.List(authority, "referred")
	s.Require().NoError(err)
	s.Require().Len(dossiers, 1)

	detail, err := s.recovery.Get(authority, dossiers[0].ID.String())
	s.Require().NoError(err)
	s.Len(detail.Notes, 2)
}

func (s *EscalationSuite) TestPaidNoteIsLeftAlone() {
	note := s.issue(2026)
	s.Require().NoError(s.noteRepo.UpdatePaid(context.Background(), s.db, note.ID, note.TotalDue, notedomain.StatusPaid, s.clock.Now()))
	s.daysAfterDue(note, 90)

	report := s.tick()
	s.Equal(0, report.Scanned)
	s.Empty(report.Transitions)
}

func (s *EscalationSuite) TestRectificationNotesStayOutOfLadder() {
	note := s.issue(2026)
	s.Require().NoError(s.noteRepo.UpdatePaid(context.Background(), s.db, note.ID, note.TotalDue, notedomain.StatusPaid, s.clock.Now()))

	issuedAt := s.clock.Now()
	due := issuedAt.AddDate(0, 0, 30)
	number := "RN-2026-KIN-000001"
	rect := rectificationdomain.RectificationNote{
		ID:             snowflake.ID(8001),
		Number:         &number,
		ReportID:       snowflake.ID(8002),
		OriginalNoteID: note.ID,
		TaxpayerID:     taxpayerID,
		FiscalYear:     2026,
		ZoneCode:       "KIN",
		GapAmount:      note.TotalDue,
		PenaltyAmount:  note.TotalDue,
		Total:          note.TotalDue.Add(note.TotalDue),
		Motif:          "undeclared devices",
		Status:         rectificationdomain.StatusIssued,
		IssuedAt:       &issuedAt,
		DueDate:        &due,
		CreatedAt:      issuedAt,
		UpdatedAt:      issuedAt,
	}
	s.Require().NoError(s.db.Create(&rect).Error)
	s.clock.Set(due.AddDate(0, 0, 120))

	report := s.tick()
	s.Equal(0, report.Scanned)
	s.Empty(report.Transitions)
}

func (s *EscalationSuite) TestFiledDisputeSuspendsEscalation() {
	note := s.issue(2026)
	now := s.clock.Now()
	s.Require().NoError(disputerepo.Provide().Insert(context.Background(), s.db, &disputedomain.Dispute{
		ID:         99,
		NoteID:     note.ID,
		TaxpayerID: taxpayerID,
		Motif:      "contested",
		Status:     disputedomain.StatusFiled,
		FiledAt:    now,
		CreatedAt:  now,
	}))
	s.daysAfterDue(note, 20)

	report := s.tick()
	s.Empty(report.Transitions)
	s.Equal(domain.StageNone, s.stage(note.ID))
}

func (s *EscalationSuite) TestDeliveryFailureDoesNotBlockStage() {
	note := s.issue(2026)
	s.daysAfterDue(note, 2)
	s.email.fail(1)

	report := s.tick()
	s.Require().Len(report.Transitions, 1)
	s.Equal(1, report.Deliveries.Failed)
	s.Equal(domain.StageReminder, s.stage(note.ID))

	retry, err := s.notifications.RetryPending(system(), 10)
	s.Require().NoError(err)
	s.Equal(1, retry.Sent)
	s.Empty(s.tick().Transitions)
}

func (s *EscalationSuite) TestTaxpayerCannotRunTick() {
	_, err := s.svc.RunTick(testutil.As(context.Background(), actorcontext.RoleTaxpayer, taxpayerID))
	s.ErrorIs(err, fault.ErrUnauthorized)
}
