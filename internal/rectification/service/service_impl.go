package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	controldomain "github.com/smallbiznis/redevance/internal/control/domain"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/smallbiznis/redevance/internal/rectification/domain"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxMotifLength = 2000

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	ControlRepo   controldomain.Repository
	NoteRepo      notedomain.Repository
	TaxpayerRepo  taxpayerdomain.Repository
	Tariffs       tariffdomain.Service
	Notifications notificationdomain.Service
	Authz         authorization.Service
	AuditSvc      auditdomain.Service `optional:"true"`
	Metrics       *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	controlRepo   controldomain.Repository
	noteRepo      notedomain.Repository
	taxpayerRepo  taxpayerdomain.Repository
	tariffs       tariffdomain.Service
	notifications notificationdomain.Service
	authz         authorization.Service
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("rectification.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		controlRepo:   p.ControlRepo,
		noteRepo:      p.NoteRepo,
		taxpayerRepo:  p.TaxpayerRepo,
		tariffs:       p.Tariffs,
		notifications: p.Notifications,
		authz:         p.Authz,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
	}
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (domain.RectificationNote, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectRectification, authorization.ActionRectificationGenerate)
	if err != nil {
		return domain.RectificationNote{}, err
	}

	reportID, err := snowflake.ParseString(strings.TrimSpace(req.ReportID))
	if err != nil || reportID == 0 {
		return domain.RectificationNote{}, domain.ErrInvalidReportID
	}
	gap, err := parseAmount(req.GapAmount)
	if err != nil {
		return domain.RectificationNote{}, err
	}
	penalty, err := parseAmount(req.PenaltyAmount)
	if err != nil {
		return domain.RectificationNote{}, err
	}
	total := gap.Add(penalty)
	if !total.IsPositive() {
		return domain.RectificationNote{}, domain.ErrInvalidAmount
	}
	motif := strings.TrimSpace(req.Motif)
	if motif == "" {
		return domain.RectificationNote{}, domain.ErrMissingMotif
	}
	if len(motif) > maxMotifLength {
		motif = motif[:maxMotifLength]
	}

	var created *domain.RectificationNote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := s.controlRepo.FindReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return controldomain.ErrReportNotFound
		}

		existing, err := s.repo.FindByReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyRectified
		}

		original, err := s.noteRepo.FindActive(ctx, tx, report.TaxpayerID, report.FiscalYear)
		if err != nil {
			return err
		}
		if original == nil {
			return domain.ErrOriginalNoteMissing
		}

		now := s.clock.Now()
		var createdBy *snowflake.ID
		if actor.ID != 0 {
			id := actor.ID
			createdBy = &id
		}
		note := &domain.RectificationNote{
			ID:             s.genID.Generate(),
			ReportID:       report.ID,
			OriginalNoteID: original.ID,
			TaxpayerID:     report.TaxpayerID,
			FiscalYear:     report.FiscalYear,
			ZoneCode:       original.ZoneCode,
			GapAmount:      gap,
			PenaltyAmount:  penalty,
			Total:          total,
			PaidAmount:     decimal.Zero,
			Motif:          motif,
			Status:         domain.StatusDraft,
			CreatedBy:      createdBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.Insert(ctx, tx, note); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyRectified
			}
			return err
		}
		if err := s.noteRepo.MarkRectified(ctx, tx, original.ID, note.ID, now); err != nil {
			return err
		}
		created = note
		return nil
	})
	if err != nil {
		return domain.RectificationNote{}, pkgdb.Classify(err)
	}

	s.log.Info("rectification generated",
		zap.String("rectification_id", created.ID.String()),
		zap.String("report_id", reportID.String()),
		zap.String("original_note_id", created.OriginalNoteID.String()),
		zap.String("total", created.Total.StringFixed(2)),
	)
	s.audit(ctx, "rectification.generated", created.ID, map[string]any{
		"report_id":        reportID.String(),
		"original_note_id": created.OriginalNoteID.String(),
		"gap_amount":       gap.StringFixed(2),
		"penalty_amount":   penalty.StringFixed(2),
	})
	return *created, nil
}

func (s *Service) SuggestGap(ctx context.Context, rawReportID string) (domain.GapSuggestion, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectRectification, authorization.ActionRectificationGenerate); err != nil {
		return domain.GapSuggestion{}, err
	}

	reportID, err := snowflake.ParseString(strings.TrimSpace(rawReportID))
	if err != nil || reportID == 0 {
		return domain.GapSuggestion{}, domain.ErrInvalidReportID
	}

	report, err := s.controlRepo.FindReport(ctx, s.db, reportID)
	if err != nil {
		return domain.GapSuggestion{}, err
	}
	if report == nil {
		return domain.GapSuggestion{}, controldomain.ErrReportNotFound
	}
	control, err := s.controlRepo.FindByID(ctx, s.db, report.ControlID)
	if err != nil {
		return domain.GapSuggestion{}, err
	}
	if control == nil {
		return domain.GapSuggestion{}, controldomain.ErrNotFound
	}
	original, err := s.noteRepo.FindActive(ctx, s.db, report.TaxpayerID, report.FiscalYear)
	if err != nil {
		return domain.GapSuggestion{}, err
	}
	if original == nil {
		return domain.GapSuggestion{}, domain.ErrOriginalNoteMissing
	}
	taxpayer, err := s.taxpayerRepo.FindByID(ctx, s.db, report.TaxpayerID)
	if err != nil {
		return domain.GapSuggestion{}, err
	}
	if taxpayer == nil {
		return domain.GapSuggestion{}, taxpayerdomain.ErrNotFound
	}

	suggestion := domain.GapSuggestion{
		ReportID:  reportID,
		NoteID:    original.ID,
		Lines:     []domain.GapLine{},
		GapAmount: decimal.Zero,
	}
	for _, line := range domain.MissingLines(original.Lines, control.MeasuredLines) {
		quote, err := s.tariffs.Quote(ctx, s.db, taxpayer.ZoneClass, []tariffdomain.LineInput{{
			Category:    line.Category,
			SubCategory: line.SubCategory,
			Count:       line.Missing,
		}})
		if err != nil {
			return domain.GapSuggestion{}, err
		}
		line.UnitPrice = quote.Lines[0].UnitPrice
		line.Amount = quote.Lines[0].Amount
		suggestion.Lines = append(suggestion.Lines, line)
		suggestion.GapAmount = suggestion.GapAmount.Add(line.Amount)
	}
	return suggestion, nil
}

func (s *Service) Issue(ctx context.Context, rawID string) (domain.RectificationNote, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectRectification, authorization.ActionRectificationIssue); err != nil {
		return domain.RectificationNote{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.RectificationNote{}, domain.ErrInvalidID
	}

	var (
		issued       *domain.RectificationNote
		notification *notificationdomain.Notification
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		note, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if note == nil {
			return domain.ErrNotFound
		}
		if note.Status != domain.StatusDraft {
			return domain.ErrNotDraft
		}

		seq, err := s.noteRepo.NextSequence(ctx, tx, notedomain.SeriesRectification, note.FiscalYear, note.ZoneCode)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		number := notedomain.FormatNumber(notedomain.SeriesRectification, note.FiscalYear, note.ZoneCode, seq)
		dueDate := notedomain.DueDate(now)
		if err := s.repo.MarkIssued(ctx, tx, note.ID, number, now, dueDate); err != nil {
			return err
		}
		note.Number = &number
		note.Status = domain.StatusIssued
		note.IssuedAt = &now
		note.DueDate = &dueDate
		note.UpdatedAt = now
		issued = note

		n, err := s.enqueueNotice(ctx, tx, note)
		if err != nil {
			return err
		}
		notification = n
		return nil
	})
	if err != nil {
		return domain.RectificationNote{}, pkgdb.Classify(err)
	}

	s.log.Info("rectification issued",
		zap.String("rectification_id", id.String()),
		zap.String("number", *issued.Number),
		zap.String("total", issued.Total.StringFixed(2)),
	)
	s.metrics.RecordNoteIssued(ctx, string(notedomain.SeriesRectification))
	if notification != nil {
		s.notifications.Deliver(ctx, notification.ID)
	}
	s.audit(ctx, "rectification.issued", id, map[string]any{
		"number":   *issued.Number,
		"due_date": issued.DueDate.Format("2006-01-02"),
	})
	return *issued, nil
}

func (s *Service) enqueueNotice(ctx context.Context, tx *gorm.DB, note *domain.RectificationNote) (*notificationdomain.Notification, error) {
	taxpayer, err := s.taxpayerRepo.FindByID(ctx, tx, note.TaxpayerID)
	if err != nil {
		return nil, err
	}
	if taxpayer == nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	original, err := s.noteRepo.FindByID(ctx, tx, note.OriginalNoteID)
	if err != nil {
		return nil, err
	}
	originalNumber := ""
	if original != nil {
		originalNumber = original.Number
	}

	taxpayerID := note.TaxpayerID
	n, _, err := s.notifications.Enqueue(ctx, tx, notificationdomain.EnqueueCommand{
		SubjectType:  notificationdomain.SubjectRectification,
		SubjectID:    note.ID,
		TemplateKind: notificationdomain.TemplateRectificationNotice,
		TaxpayerID:   &taxpayerID,
		Recipient:    taxpayer.Email,
		Variables: map[string]any{
			"taxpayer_name":        taxpayer.LegalName,
			"rectification_number": *note.Number,
			"note_number":          originalNumber,
			"motif":                note.Motif,
			"gap_amount":           note.GapAmount.StringFixed(2),
			"penalty_amount":       note.PenaltyAmount.StringFixed(2),
			"total":                note.Total.StringFixed(2),
			"due_date":             note.DueDate.Format(notificationdomain.DateLayout),
		},
	})
	return n, err
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.RectificationNote, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectRectification, authorization.ActionRectificationView)
	if err != nil {
		return domain.RectificationNote{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.RectificationNote{}, domain.ErrInvalidID
	}
	note, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.RectificationNote{}, err
	}
	if note == nil {
		return domain.RectificationNote{}, domain.ErrNotFound
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != note.TaxpayerID {
		return domain.RectificationNote{}, domain.ErrNotOwner
	}
	return *note, nil
}

func (s *Service) ListByTaxpayer(ctx context.Context, rawTaxpayerID string) ([]domain.RectificationNote, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectRectification, authorization.ActionRectificationView)
	if err != nil {
		return nil, err
	}

	taxpayerID, err := snowflake.ParseString(strings.TrimSpace(rawTaxpayerID))
	if err != nil || taxpayerID == 0 {
		return nil, taxpayerdomain.ErrInvalidID
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != taxpayerID {
		return nil, domain.ErrNotOwner
	}

	notes, err := s.repo.ListByTaxpayer(ctx, s.db, taxpayerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RectificationNote, 0, len(notes))
	for _, note := range notes {
		out = append(out, *note)
	}
	return out, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, action, "rectification", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// parseAmount accepts an empty value as zero. Negative amounts are rejected.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return amount.Round(2), nil
}
