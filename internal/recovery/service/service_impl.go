package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/smallbiznis/redevance/internal/recovery/domain"
	taxpayerdomain "github.com/smallbiznis/redevance/internal/taxpayer/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	listLimit         = 200
	maxOutcomeLength  = 2000
	dossierEventRefer = "referred"
	dossierEventJoin  = "joined"
	dossierEventClose = "closed"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	NoteRepo     notedomain.Repository
	TaxpayerRepo taxpayerdomain.Repository
	Authz        authorization.Service
	AuditSvc     auditdomain.Service         `optional:"true"`
	Metrics      *metrics.EnforcementMetrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	noteRepo     notedomain.Repository
	taxpayerRepo taxpayerdomain.Repository
	authz        authorization.Service
	auditSvc     auditdomain.Service
	metrics      *metrics.EnforcementMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("recovery.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		noteRepo:     p.NoteRepo,
		taxpayerRepo: p.TaxpayerRepo,
		authz:        p.Authz,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
	}
}

func (s *Service) ReferInTx(ctx context.Context, tx *gorm.DB, cmd domain.ReferCommand) (domain.ReferResult, error) {
	now := s.clock.Now()

	dossier, err := s.repo.FindActiveByTaxpayerForUpdate(ctx, tx, cmd.TaxpayerID)
	if err != nil {
		return domain.ReferResult{}, err
	}

	result := domain.ReferResult{}
	if dossier == nil {
		dossier = &domain.Dossier{
			ID:         s.genID.Generate(),
			Reference:  domain.NewReference(now),
			TaxpayerID: cmd.TaxpayerID,
			Kind:       domain.KindForcedRecovery,
			Status:     domain.StatusReferred,
			AmountDue:  cmd.AmountDue,
			ReferredAt: now,
			CreatedAt:  now,
		}
		if err := s.repo.Insert(ctx, tx, dossier); err != nil {
			return domain.ReferResult{}, err
		}
		result.Created = true
	}

	added, err := s.repo.AddNote(ctx, tx, &domain.DossierNote{
		DossierID: dossier.ID,
		NoteID:    cmd.NoteID,
		AmountDue: cmd.AmountDue,
		AddedAt:   now,
	})
	if err != nil {
		return domain.ReferResult{}, err
	}
	if added && !result.Created {
		if err := s.repo.IncreaseAmount(ctx, tx, dossier.ID, cmd.AmountDue); err != nil {
			return domain.ReferResult{}, err
		}
		dossier.AmountDue = dossier.AmountDue.Add(cmd.AmountDue)
	}

	result.Dossier = dossier
	result.Added = added
	return result, nil
}

// AfterRefer records post-commit side effects of a referral.
func (s *Service) AfterRefer(ctx context.Context, result domain.ReferResult) {
	if result.Dossier == nil || !result.Added {
		return
	}
	event := dossierEventJoin
	if result.Created {
		event = dossierEventRefer
	}
	s.log.Info("dossier "+event,
		zap.String("dossier_id", result.Dossier.ID.String()),
		zap.String("reference", result.Dossier.Reference),
		zap.String("taxpayer_id", result.Dossier.TaxpayerID.String()),
		zap.String("amount_due", result.Dossier.AmountDue.StringFixed(2)),
	)
	s.metrics.IncDossier(event)
	s.audit(ctx, "recovery.dossier_"+event, result.Dossier.ID, map[string]any{
		"reference":   result.Dossier.Reference,
		"taxpayer_id": result.Dossier.TaxpayerID.String(),
		"amount_due":  result.Dossier.AmountDue.StringFixed(2),
	})
}

func (s *Service) Close(ctx context.Context, rawID string, req domain.CloseRequest) (domain.Dossier, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectRecovery, authorization.ActionRecoveryClose); err != nil {
		return domain.Dossier{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Dossier{}, domain.ErrInvalidID
	}
	outcome := strings.TrimSpace(req.Outcome)
	if outcome == "" {
		return domain.Dossier{}, domain.ErrMissingOutcome
	}
	if len(outcome) > maxOutcomeLength {
		outcome = outcome[:maxOutcomeLength]
	}

	var closed *domain.Dossier
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dossier, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if dossier == nil {
			return domain.ErrNotFound
		}
		if dossier.Status != domain.StatusReferred {
			return domain.ErrAlreadyClosed
		}

		now := s.clock.Now()
		changed, err := s.repo.Close(ctx, tx, id, outcome, now)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrAlreadyClosed
		}
		dossier.Status = domain.StatusClosed
		dossier.Outcome = &outcome
		dossier.ClosedAt = &now
		closed = dossier
		return nil
	})
	if err != nil {
		return domain.Dossier{}, pkgdb.Classify(err)
	}

	s.log.Info("dossier closed",
		zap.String("dossier_id", id.String()),
		zap.String("reference", closed.Reference),
	)
	s.metrics.IncDossier(dossierEventClose)
	s.audit(ctx, "recovery.dossier_closed", id, map[string]any{
		"reference": closed.Reference,
		"outcome":   outcome,
	})
	return *closed, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.DossierDetail, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectRecovery, authorization.ActionRecoveryView); err != nil {
		return domain.DossierDetail{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.DossierDetail{}, domain.ErrInvalidID
	}
	dossier, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.DossierDetail{}, err
	}
	if dossier == nil {
		return domain.DossierDetail{}, domain.ErrNotFound
	}
	links, err := s.repo.ListNotes(ctx, s.db, id)
	if err != nil {
		return domain.DossierDetail{}, err
	}

	detail := domain.DossierDetail{Dossier: *dossier, Notes: make([]domain.DossierNote, 0, len(links))}
	for _, link := range links {
		detail.Notes = append(detail.Notes, *link)
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, rawStatus string) ([]domain.Dossier, error) {
	if _, err := authorization.Require(ctx, s.authz, authorization.ObjectRecovery, authorization.ActionRecoveryView); err != nil {
		return nil, err
	}

	var status domain.Status
	if strings.TrimSpace(rawStatus) != "" {
		parsed, ok := domain.ParseStatus(rawStatus)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		status = parsed
	}

	dossiers, err := s.repo.List(ctx, s.db, status, listLimit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Dossier, 0, len(dossiers))
	for _, d := range dossiers {
		out = append(out, *d)
	}
	return out, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, action, "recovery_dossier", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
