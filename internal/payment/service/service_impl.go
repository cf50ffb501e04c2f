package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	auditdomain "github.com/smallbiznis/redevance/internal/audit/domain"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/smallbiznis/redevance/internal/payment/domain"
	rectificationdomain "github.com/smallbiznis/redevance/internal/rectification/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxChannelLength = 32

type Params struct {
	fx.In

	DB                *gorm.DB
	Log               *zap.Logger
	GenID             *snowflake.Node
	Clock             clock.Clock
	Repo              domain.Repository
	NoteRepo          notedomain.Repository
	RectificationRepo rectificationdomain.Repository
	Authz             authorization.Service
	AuditSvc          auditdomain.Service `optional:"true"`
	Metrics           *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	genID             *snowflake.Node
	clock             clock.Clock
	repo              domain.Repository
	noteRepo          notedomain.Repository
	rectificationRepo rectificationdomain.Repository
	authz             authorization.Service
	auditSvc          auditdomain.Service
	metrics           *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("payment.service"),
		genID:             p.GenID,
		clock:             p.Clock,
		repo:              p.Repo,
		noteRepo:          p.NoteRepo,
		rectificationRepo: p.RectificationRepo,
		authz:             p.Authz,
		auditSvc:          p.AuditSvc,
		metrics:           p.Metrics,
	}
}

// target is the payable entity a payment points at, reduced to what the ledger needs.
type target struct {
	taxpayerID snowflake.ID
	total      decimal.Decimal
	payable    bool
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (domain.Payment, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectPayment, authorization.ActionPaymentRecord)
	if err != nil {
		return domain.Payment{}, err
	}

	kind, err := parseTargetKind(req.TargetKind)
	if err != nil {
		return domain.Payment{}, err
	}
	targetID, err := snowflake.ParseString(strings.TrimSpace(req.TargetID))
	if err != nil || targetID == 0 {
		return domain.Payment{}, domain.ErrInvalidTargetID
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		return domain.Payment{}, domain.ErrInvalidAmount
	}
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		channel = "cash"
	}
	if len(channel) > maxChannelLength {
		channel = channel[:maxChannelLength]
	}

	now := s.clock.Now()
	paidAt := now
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		paidAt = req.PaidAt.UTC()
	}

	var recordedBy *snowflake.ID
	if actor.ID != 0 {
		id := actor.ID
		recordedBy = &id
	}

	var payment *domain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tgt, err := s.loadTarget(ctx, tx, kind, targetID, false)
		if err != nil {
			return err
		}
		if actor.Role == actorcontext.RoleTaxpayer && actor.ID != tgt.taxpayerID {
			return domain.ErrNotOwner
		}
		if !tgt.payable {
			return domain.ErrTargetNotPayable
		}

		payment = &domain.Payment{
			ID:         s.genID.Generate(),
			TargetKind: kind,
			TargetID:   targetID,
			TaxpayerID: tgt.taxpayerID,
			Amount:     amount.Round(2),
			Channel:    channel,
			Reference:  strings.TrimSpace(req.Reference),
			Status:     domain.StatusPending,
			PaidAt:     paidAt,
			RecordedBy: recordedBy,
			CreatedAt:  now,
		}
		return s.repo.Insert(ctx, tx, payment)
	})
	if err != nil {
		return domain.Payment{}, pkgdb.Classify(err)
	}

	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("target_kind", string(kind)),
		zap.String("target_id", targetID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	s.audit(ctx, "payment.recorded", payment, map[string]any{
		"target_kind": string(kind),
		"target_id":   targetID.String(),
		"amount":      payment.Amount.StringFixed(2),
		"channel":     channel,
	})
	return *payment, nil
}

func (s *Service) Confirm(ctx context.Context, rawID string) (domain.ConfirmResult, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectPayment, authorization.ActionPaymentConfirm)
	if err != nil {
		return domain.ConfirmResult{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.ConfirmResult{}, domain.ErrInvalidID
	}

	var confirmedBy *snowflake.ID
	if actor.ID != 0 {
		by := actor.ID
		confirmedBy = &by
	}

	var result domain.ConfirmResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrNotFound
		}

		// Lock the target before touching the ledger so concurrent confirmations sum, not overwrite.
		if _, err := s.loadTarget(ctx, tx, payment.TargetKind, payment.TargetID, true); err != nil {
			return err
		}

		now := s.clock.Now()
		changed, err := s.repo.MarkConfirmed(ctx, tx, payment.ID, confirmedBy, now)
		if err != nil {
			return err
		}
		if !changed {
			result.AlreadyConfirmed = true
		} else {
			payment.Status = domain.StatusConfirmed
			payment.ConfirmedAt = &now
			payment.ConfirmedBy = confirmedBy
		}

		payments, err := s.repo.ListByTarget(ctx, tx, payment.TargetKind, payment.TargetID)
		if err != nil {
			return err
		}
		confirmed := domain.SumConfirmed(payments)

		status, err := s.applyConfirmedSum(ctx, tx, payment.TargetKind, payment.TargetID, confirmed, now)
		if err != nil {
			return err
		}

		result.Payment = *payment
		result.TargetStatus = status
		result.ConfirmedTotal = confirmed.StringFixed(2)
		return nil
	})
	if err != nil {
		return domain.ConfirmResult{}, pkgdb.Classify(err)
	}

	if result.AlreadyConfirmed {
		s.log.Debug("payment already confirmed", zap.String("payment_id", id.String()))
		return result, nil
	}

	s.log.Info("payment confirmed",
		zap.String("payment_id", id.String()),
		zap.String("target_status", result.TargetStatus),
		zap.String("confirmed_total", result.ConfirmedTotal),
	)
	s.metrics.RecordPaymentConfirmed(ctx, result.Payment.Channel, result.TargetStatus)
	s.audit(ctx, "payment.confirmed", &result.Payment, map[string]any{
		"target_kind":     string(result.Payment.TargetKind),
		"target_id":       result.Payment.TargetID.String(),
		"target_status":   result.TargetStatus,
		"confirmed_total": result.ConfirmedTotal,
	})
	return result, nil
}

func (s *Service) ListByTarget(ctx context.Context, rawKind string, rawTargetID string) ([]domain.Payment, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectPayment, authorization.ActionPaymentView)
	if err != nil {
		return nil, err
	}

	kind, err := parseTargetKind(rawKind)
	if err != nil {
		return nil, err
	}
	targetID, err := snowflake.ParseString(strings.TrimSpace(rawTargetID))
	if err != nil || targetID == 0 {
		return nil, domain.ErrInvalidTargetID
	}

	tgt, err := s.loadTarget(ctx, s.db, kind, targetID, false)
	if err != nil {
		return nil, err
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != tgt.taxpayerID {
		return nil, domain.ErrNotOwner
	}

	payments, err := s.repo.ListByTarget(ctx, s.db, kind, targetID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, *p)
	}
	return out, nil
}

func (s *Service) loadTarget(ctx context.Context, db *gorm.DB, kind domain.TargetKind, id snowflake.ID, lock bool) (target, error) {
	switch kind {
	case domain.TargetTaxationNote:
		find := s.noteRepo.FindByID
		if lock {
			find = s.noteRepo.FindByIDForUpdate
		}
		note, err := find(ctx, db, id)
		if err != nil {
			return target{}, err
		}
		if note == nil {
			return target{}, notedomain.ErrNotFound
		}
		return target{taxpayerID: note.TaxpayerID, total: note.TotalDue, payable: note.Collectible()}, nil
	case domain.TargetRectificationNote:
		find := s.rectificationRepo.FindByID
		if lock {
			find = s.rectificationRepo.FindByIDForUpdate
		}
		rect, err := find(ctx, db, id)
		if err != nil {
			return target{}, err
		}
		if rect == nil {
			return target{}, domain.ErrTargetNotFound
		}
		return target{taxpayerID: rect.TaxpayerID, total: rect.Total, payable: rect.Status == rectificationdomain.StatusIssued}, nil
	default:
		return target{}, domain.ErrInvalidTargetKind
	}
}

// applyConfirmedSum writes the recomputed paid amount and derived status. total_due is never written.
func (s *Service) applyConfirmedSum(ctx context.Context, tx *gorm.DB, kind domain.TargetKind, id snowflake.ID, confirmed decimal.Decimal, now time.Time) (string, error) {
	switch kind {
	case domain.TargetTaxationNote:
		note, err := s.noteRepo.FindByID(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if note == nil {
			return "", notedomain.ErrNotFound
		}
		status := notedomain.DeriveStatus(note.Status, note.TotalDue, confirmed)
		if err := s.noteRepo.UpdatePaid(ctx, tx, id, confirmed, status, now); err != nil {
			return "", err
		}
		return string(status), nil
	case domain.TargetRectificationNote:
		rect, err := s.rectificationRepo.FindByID(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if rect == nil {
			return "", domain.ErrTargetNotFound
		}
		status := rectificationdomain.SettlementStatus(rect.Status, rect.Total, confirmed)
		if err := s.rectificationRepo.UpdatePaid(ctx, tx, id, confirmed, status, now); err != nil {
			return "", err
		}
		return string(status), nil
	default:
		return "", domain.ErrInvalidTargetKind
	}
}

func (s *Service) audit(ctx context.Context, action string, payment *domain.Payment, metadata map[string]any) {
	if s.auditSvc == nil || payment == nil {
		return
	}
	targetID := payment.ID.String()
	if err := s.auditSvc.AuditLog(ctx, action, "payment", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseTargetKind(raw string) (domain.TargetKind, error) {
	switch kind := domain.TargetKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "", domain.TargetTaxationNote:
		return domain.TargetTaxationNote, nil
	case domain.TargetRectificationNote:
		return kind, nil
	default:
		return "", domain.ErrInvalidTargetKind
	}
}
