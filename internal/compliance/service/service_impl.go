package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/authorization"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/compliance/domain"
	notedomain "github.com/smallbiznis/redevance/internal/note/domain"
	paymentdomain "github.com/smallbiznis/redevance/internal/payment/domain"
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
	Clock        clock.Clock
	TaxpayerRepo taxpayerdomain.Repository
	NoteRepo     notedomain.Repository
	PaymentRepo  paymentdomain.Repository
	Authz        authorization.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	taxpayerRepo taxpayerdomain.Repository
	noteRepo     notedomain.Repository
	paymentRepo  paymentdomain.Repository
	authz        authorization.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("compliance.service"),
		clock:        p.Clock,
		taxpayerRepo: p.TaxpayerRepo,
		noteRepo:     p.NoteRepo,
		paymentRepo:  p.PaymentRepo,
		authz:        p.Authz,
	}
}

func (s *Service) Resolve(ctx context.Context, rawID string) (domain.Result, error) {
	actor, err := authorization.Require(ctx, s.authz, authorization.ObjectCompliance, authorization.ActionComplianceView)
	if err != nil {
		return domain.Result{}, err
	}

	taxpayerID, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || taxpayerID == 0 {
		return domain.Result{}, taxpayerdomain.ErrInvalidID
	}
	if actor.Role == actorcontext.RoleTaxpayer && actor.ID != taxpayerID {
		return domain.Result{}, taxpayerdomain.ErrNotOwner
	}

	snap, err := s.snapshot(ctx, taxpayerID)
	if err != nil {
		return domain.Result{}, pkgdb.Classify(err)
	}

	result := domain.Resolve(snap, s.clock.Now())
	s.log.Debug("compliance resolved",
		zap.String("taxpayer_id", taxpayerID.String()),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// snapshot reads the taxpayer, notes and payments inside one read-only transaction.
func (s *Service) snapshot(ctx context.Context, taxpayerID snowflake.ID) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taxpayer, err := s.taxpayerRepo.FindByID(ctx, tx, taxpayerID)
		if err != nil {
			return err
		}
		if taxpayer == nil {
			return nil
		}
		snap.Taxpayer = taxpayer

		notes, err := s.noteRepo.ListByTaxpayer(ctx, tx, taxpayerID)
		if err != nil {
			return err
		}
		payments, err := s.paymentRepo.ListByTaxpayer(ctx, tx, taxpayerID)
		if err != nil {
			return err
		}

		snap.Notes = make([]notedomain.TaxationNote, 0, len(notes))
		for _, n := range notes {
			snap.Notes = append(snap.Notes, *n)
		}
		snap.Payments = make([]paymentdomain.Payment, 0, len(payments))
		for _, p := range payments {
			snap.Payments = append(snap.Payments, *p)
		}
		return nil
	}, pkgdb.SnapshotTxOptions(s.db))
	return snap, err
}
