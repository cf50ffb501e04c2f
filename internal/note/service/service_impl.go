package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/note/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minFiscalYear = 2000

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	TaxpayerRepo taxpayerdomain.Repository
	Tariffs      tariffdomain.Service
	Authz        authorization.Service
	AuditSvc     auditdomain.Service `optional:"true"`
	Metrics      *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	taxpayerRepo taxpayerdomain.Repository
	tariffs      tariffdomain.Service
	authz        authorization.Service
	auditSvc     auditdomain.Service
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("note.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		taxpayerRepo: p.TaxpayerRepo,
		tariffs:      p.Tariffs,
		authz:        p.Authz,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.TaxationNote, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectNote, authorization.ActionNoteIssue); err != nil {
		return domain.TaxationNote{}, err
	}

	taxpayerID, err := snowflake.ParseString(strings.TrimSpace(req.TaxpayerID))
	if err != nil || taxpayerID == 0 {
		return domain.TaxationNote{}, taxpayerdomain.ErrInvalidID
	}

	var issued *domain.TaxationNote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		note, err := s.IssueInTx(ctx, tx, domain.IssueCommand{
			TaxpayerID: taxpayerID,
			FiscalYear: req.FiscalYear,
			Lines:      req.Lines,
			Source:     domain.SourceManual,
		})
		if err != nil {
			return err
		}
		issued = note
		return nil
	})
	if err != nil {
		return domain.TaxationNote{}, pkgdb.Classify(err)
	}

	s.AfterIssue(ctx, issued)
	return *issued, nil
}

// IssueInTx prices the lines, allocates a number and inserts an issued note.
// Callers must invoke AfterIssue once their transaction commits.
func (s *Service) IssueInTx(ctx context.Context, tx *gorm.DB, cmd domain.IssueCommand) (*domain.TaxationNote, error) {
	now := s.clock.Now()
	if cmd.FiscalYear < minFiscalYear || cmd.FiscalYear > now.Year()+1 {
		return nil, domain.ErrInvalidFiscalYear
	}

	taxpayer, err := s.taxpayerRepo.FindByID(ctx, tx, cmd.TaxpayerID)
	if err != nil {
		return nil, err
	}
	if taxpayer == nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	if !taxpayer.IsActive() {
		return nil, taxpayerdomain.ErrInactive
	}
	if taxpayer.ZoneCode == "" || taxpayer.ZoneClass == "" {
		return nil, domain.ErrMissingZone
	}

	existing, err := s.repo.FindActive(ctx, tx, cmd.TaxpayerID, cmd.FiscalYear)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateNote
	}

	quote, err := s.tariffs.Quote(ctx, tx, taxpayer.ZoneClass, cmd.Lines)
	if err != nil {
		return nil, err
	}

	seq, err := s.repo.NextSequence(ctx, tx, domain.SeriesTaxation, cmd.FiscalYear, taxpayer.ZoneCode)
	if err != nil {
		return nil, err
	}

	source := cmd.Source
	if source == "" {
		source = domain.SourceManual
	}
	note := &domain.TaxationNote{
		ID:         s.genID.Generate(),
		Number:     domain.FormatNumber(domain.SeriesTaxation, cmd.FiscalYear, taxpayer.ZoneCode, seq),
		TaxpayerID: taxpayer.ID,
		FiscalYear: cmd.FiscalYear,
		ZoneCode:   taxpayer.ZoneCode,
		Source:     source,
		SourceID:   cmd.SourceID,
		Lines:      quote.Lines,
		TotalDue:   quote.Total,
		NetAmount:  quote.Total,
		Status:     domain.StatusIssued,
		IssuedAt:   now,
		DueDate:    domain.DueDate(now),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, tx, note); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateNote
		}
		return nil, err
	}
	return note, nil
}

// AfterIssue records post-commit side effects of an issuance.
func (s *Service) AfterIssue(ctx context.Context, note *domain.TaxationNote) {
	if note == nil {
		return
	}
	s.log.Info("note issued",
		zap.String("number", note.Number),
		zap.String("taxpayer_id", note.TaxpayerID.String()),
		zap.Int("fiscal_year", note.FiscalYear),
		zap.String("total_due", note.TotalDue.StringFixed(2)),
	)
	s.metrics.RecordNoteIssued(ctx, string(domain.SeriesTaxation))
	if s.auditSvc != nil {
		targetID := note.ID.String()
		_ = s.auditSvc.AuditLog(ctx, "note.issued", "note", &targetID, map[string]any{
			"number":      note.Number,
			"fiscal_year": note.FiscalYear,
			"total_due":   note.TotalDue.StringFixed(2),
			"source":      string(note.Source),
		})
	}
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.TaxationNote, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectNote, authorization.ActionNoteView)
	if err != nil {
		return domain.TaxationNote{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.TaxationNote{}, domain.ErrInvalidID
	}

	note, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.TaxationNote{}, err
	}
	if note == nil {
		return domain.TaxationNote{}, domain.ErrNotFound
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != note.TaxpayerID {
		return domain.TaxationNote{}, domain.ErrNotOwner
	}
	return *note, nil
}

func (s *Service) ListByTaxpayer(ctx context.Context, rawTaxpayerID string) ([]domain.TaxationNote, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectNote, authorization.ActionNoteView)
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
	out := make([]domain.TaxationNote, 0, len(notes))
	for _, note := range notes {
		out = append(out, *note)
	}
	return out, nil
}
