package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/declaration/domain"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	TaxpayerRepo taxpayerdomain.Repository
	Tariffs      tariffdomain.Service
	Notes        notedomain.Service
	Authz        authorization.Service
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	taxpayerRepo taxpayerdomain.Repository
	tariffs      tariffdomain.Service
	notes        notedomain.Service
	authz        authorization.Service
	auditSvc     auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("declaration.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		taxpayerRepo: p.TaxpayerRepo,
		tariffs:      p.Tariffs,
		notes:        p.Notes,
		authz:        p.Authz,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectDeclaration, authorization.ActionDeclarationSubmit)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	taxpayerID, err := snowflake.ParseString(strings.TrimSpace(req.TaxpayerID))
	if err != nil || taxpayerID == 0 {
		return domain.SubmitResult{}, taxpayerdomain.ErrInvalidID
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != taxpayerID {
		return domain.SubmitResult{}, domain.ErrNotOwner
	}

	now := s.clock.Now()
	year := req.FiscalYear
	if year == 0 {
		year = now.Year()
	}

	var (
		declaration *domain.Declaration
		note        *notedomain.TaxationNote
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taxpayer, err := s.taxpayerRepo.FindByID(ctx, tx, taxpayerID)
		if err != nil {
			return err
		}
		if taxpayer == nil {
			return taxpayerdomain.ErrNotFound
		}
		if taxpayer.ZoneClass == "" {
			return notedomain.ErrMissingZone
		}

		existing, err := s.repo.FindByTaxpayerYear(ctx, tx, taxpayerID, year)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyDeclared
		}

		quote, err := s.tariffs.Quote(ctx, tx, taxpayer.ZoneClass, req.Lines)
		if err != nil {
			return err
		}

		var submittedBy *snowflake.ID
		if actor.ID != 0 {
			id := actor.ID
			submittedBy = &id
		}
		declaration = &domain.Declaration{
			ID:          s.genID.Generate(),
			TaxpayerID:  taxpayerID,
			FiscalYear:  year,
			Lines:       quote.Lines,
			Total:       quote.Total,
			Status:      domain.StatusSubmitted,
			SubmittedBy: submittedBy,
			SubmittedAt: now,
			CreatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, declaration); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyDeclared
			}
			return err
		}

		sourceID := declaration.ID
		note, err = s.notes.IssueInTx(ctx, tx, notedomain.IssueCommand{
			TaxpayerID: taxpayerID,
			FiscalYear: year,
			Lines:      req.Lines,
			Source:     notedomain.SourceDeclaration,
			SourceID:   &sourceID,
		})
		if err != nil {
			return err
		}
		declaration.NoteID = &note.ID
		return s.repo.AttachNote(ctx, tx, declaration.ID, note.ID)
	})
	if err != nil {
		return domain.SubmitResult{}, pkgdb.Classify(err)
	}

	s.notes.AfterIssue(ctx, note)
	s.log.Info("declaration submitted",
		zap.String("declaration_id", declaration.ID.String()),
		zap.String("taxpayer_id", taxpayerID.String()),
		zap.Int("fiscal_year", year),
	)
	if s.auditSvc != nil {
		targetID := declaration.ID.String()
		if err := s.auditSvc.AuditLog(ctx, "declaration.submitted", "declaration", &targetID, map[string]any{
			"taxpayer_id": taxpayerID.String(),
			"fiscal_year": year,
			"total":       declaration.Total.StringFixed(2),
			"note_id":     note.ID.String(),
		}); err != nil {
			s.log.Warn("audit log failed", zap.String("action", "declaration.submitted"), zap.Error(err))
		}
	}
	return domain.SubmitResult{Declaration: *declaration, Note: *note}, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Declaration, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectDeclaration, authorization.ActionDeclarationView)
	if err != nil {
		return domain.Declaration{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Declaration{}, domain.ErrInvalidID
	}
	declaration, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Declaration{}, err
	}
	if declaration == nil {
		return domain.Declaration{}, domain.ErrNotFound
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != declaration.TaxpayerID {
		return domain.Declaration{}, domain.ErrNotOwner
	}
	return *declaration, nil
}

func (s *Service) ListByTaxpayer(ctx context.Context, rawTaxpayerID string) ([]domain.Declaration, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectDeclaration, authorization.ActionDeclarationView)
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

	declarations, err := s.repo.ListByTaxpayer(ctx, s.db, taxpayerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Declaration, 0, len(declarations))
	for _, d := range declarations {
		out = append(out, *d)
	}
	return out, nil
}
