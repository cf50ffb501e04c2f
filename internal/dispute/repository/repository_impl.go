package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/dispute/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"gorm.io/gorm"
)

const disputeColumns = `id, note_id, taxpayer_id, motif, status, decision_text, decided_at,
	adjudicator_id, adjudicator_role, filed_at, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, dispute *domain.Dispute) error {
	return db.WithContext(ctx).Create(dispute).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Dispute, error) {
	return r.findOne(ctx, db, `SELECT `+disputeColumns+` FROM disputes WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Dispute, error) {
	return r.findOne(ctx, db, `SELECT `+disputeColumns+` FROM disputes WHERE id = ?`+pkgdb.ForUpdate(db), id)
}

func (r *repo) FindFiledByNote(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*domain.Dispute, error) {
	return r.findOne(ctx, db,
		`SELECT `+disputeColumns+` FROM disputes WHERE note_id = ? AND status = ?`,
		noteID, domain.StatusFiled,
	)
}

func (r *repo) ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*domain.Dispute, error) {
	var disputes []*domain.Dispute
	err := db.WithContext(ctx).Raw(
		`SELECT `+disputeColumns+` FROM disputes
		 WHERE taxpayer_id = ?
		 ORDER BY filed_at DESC, id DESC`,
		taxpayerID,
	).Scan(&disputes).Error
	if err != nil {
		return nil, err
	}
	return disputes, nil
}

func (r *repo) Decide(ctx context.Context, db *gorm.DB, dispute *domain.Dispute) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE disputes
		 SET status = ?, decision_text = ?, decided_at = ?, adjudicator_id = ?, adjudicator_role = ?
		 WHERE id = ? AND status = ?`,
		dispute.Status, dispute.DecisionText, dispute.DecidedAt, dispute.AdjudicatorID, dispute.AdjudicatorRole,
		dispute.ID, domain.StatusFiled,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Dispute, error) {
	var dispute domain.Dispute
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&dispute).Error; err != nil {
		return nil, err
	}
	if dispute.ID == 0 {
		return nil, nil
	}
	return &dispute, nil
}
