package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/rectification/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"gorm.io/gorm"
)

const rectificationColumns = `id, number, report_id, original_note_id, taxpayer_id, fiscal_year, zone_code,
	gap_amount, penalty_amount, total, paid_amount, motif, status, issued_at, due_date, settled_at,
	created_by, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, note *domain.RectificationNote) error {
	return db.WithContext(ctx).Create(note).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RectificationNote, error) {
	return r.findOne(ctx, db, `SELECT `+rectificationColumns+` FROM rectification_notes WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RectificationNote, error) {
	return r.findOne(ctx, db, `SELECT `+rectificationColumns+` FROM rectification_notes WHERE id = ?`+pkgdb.ForUpdate(db), id)
}

func (r *repo) FindByReport(ctx context.Context, db *gorm.DB, reportID snowflake.ID) (*domain.RectificationNote, error) {
	return r.findOne(ctx, db, `SELECT `+rectificationColumns+` FROM rectification_notes WHERE report_id = ?`, reportID)
}

func (r *repo) ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*domain.RectificationNote, error) {
	var notes []*domain.RectificationNote
	err := db.WithContext(ctx).Raw(
		`SELECT `+rectificationColumns+` FROM rectification_notes
		 WHERE taxpayer_id = ?
		 ORDER BY created_at DESC, id DESC`,
		taxpayerID,
	).Scan(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repo) MarkIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, number string, issuedAt, dueDate time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE rectification_notes SET number = ?, status = ?, issued_at = ?, due_date = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		number, domain.StatusIssued, issuedAt, dueDate, issuedAt, id, domain.StatusDraft,
	).Error
}

func (r *repo) UpdatePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paid decimal.Decimal, status domain.Status, at time.Time) error {
	var settledAt *time.Time
	if status == domain.StatusSettled {
		settledAt = &at
	}
	return db.WithContext(ctx).Exec(
		`UPDATE rectification_notes
		 SET paid_amount = ?, status = ?, settled_at = COALESCE(settled_at, ?), updated_at = ?
		 WHERE id = ?`,
		paid, status, settledAt, at, id,
	).Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.RectificationNote, error) {
	var note domain.RectificationNote
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&note).Error; err != nil {
		return nil, err
	}
	if note.ID == 0 {
		return nil, nil
	}
	return &note, nil
}
