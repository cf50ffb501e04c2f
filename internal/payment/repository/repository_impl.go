package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/payment/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"gorm.io/gorm"
)

const paymentColumns = `id, target_kind, target_id, taxpayer_id, amount, channel, reference, status,
	paid_at, recorded_by, confirmed_at, confirmed_by, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.findOne(ctx, db, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.findOne(ctx, db, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`+pkgdb.ForUpdate(db), id)
}

func (r *repo) MarkConfirmed(ctx context.Context, db *gorm.DB, id snowflake.ID, by *snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, confirmed_at = ?, confirmed_by = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusConfirmed, at, by, id, domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListByTarget(ctx context.Context, db *gorm.DB, kind domain.TargetKind, targetID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments
		 WHERE target_kind = ? AND target_id = ?
		 ORDER BY created_at ASC, id ASC`,
		kind, targetID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments
		 WHERE taxpayer_id = ?
		 ORDER BY created_at ASC, id ASC`,
		taxpayerID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Payment, error) {
	var payment domain.Payment
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&payment).Error; err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}
