package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/note/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"gorm.io/gorm"
)

const noteColumns = `id, number, taxpayer_id, fiscal_year, zone_code, source, source_id, lines,
	total_due, net_amount, paid_amount, status, issued_at, due_date, void_reason, voided_at,
	rectified_at, last_rectification_id, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, series domain.Series, year int, zoneCode string) (int64, error) {
	var next int64
	err := db.WithContext(ctx).Raw(
		`INSERT INTO note_sequences (series, year, zone_code, last_value)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT (series, year, zone_code)
		 DO UPDATE SET last_value = note_sequences.last_value + 1
		 RETURNING last_value`,
		string(series), year, zoneCode,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, note *domain.TaxationNote) error {
	return db.WithContext(ctx).Create(note).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TaxationNote, error) {
	return r.findOne(ctx, db, `SELECT `+noteColumns+` FROM taxation_notes WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TaxationNote, error) {
	return r.findOne(ctx, db, `SELECT `+noteColumns+` FROM taxation_notes WHERE id = ?`+pkgdb.ForUpdate(db), id)
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID, year int) (*domain.TaxationNote, error) {
	return r.findOne(ctx, db,
		`SELECT `+noteColumns+` FROM taxation_notes
		 WHERE taxpayer_id = ? AND fiscal_year = ? AND status <> ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		taxpayerID, year, domain.StatusVoid,
	)
}

func (r *repo) ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*domain.TaxationNote, error) {
	var notes []*domain.TaxationNote
	err := db.WithContext(ctx).Raw(
		`SELECT `+noteColumns+` FROM taxation_notes
		 WHERE taxpayer_id = ?
		 ORDER BY fiscal_year DESC, created_at DESC, id DESC`,
		taxpayerID,
	).Scan(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repo) ListCollectible(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*domain.TaxationNote, error) {
	var notes []*domain.TaxationNote
	err := db.WithContext(ctx).Raw(
		`SELECT `+noteColumns+` FROM taxation_notes
		 WHERE status IN (?, ?, ?) AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		domain.StatusIssued, domain.StatusPartiallyPaid, domain.StatusOverdue, afterID, limit,
	).Scan(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repo) UpdatePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paid decimal.Decimal, status domain.Status, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE taxation_notes SET paid_amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		paid, status, at, id,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE taxation_notes SET status = ?, updated_at = ? WHERE id = ?`,
		status, at, id,
	).Error
}

func (r *repo) Void(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE taxation_notes SET status = ?, void_reason = ?, voided_at = ?, updated_at = ? WHERE id = ?`,
		domain.StatusVoid, reason, at, at, id,
	).Error
}

// MarkRectified stamps the cross-reference only. total_due is never touched.
func (r *repo) MarkRectified(ctx context.Context, db *gorm.DB, id snowflake.ID, rectificationID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE taxation_notes SET rectified_at = ?, last_rectification_id = ?, updated_at = ? WHERE id = ?`,
		at, rectificationID, at, id,
	).Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.TaxationNote, error) {
	var note domain.TaxationNote
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&note).Error; err != nil {
		return nil, err
	}
	if note.ID == 0 {
		return nil, nil
	}
	return &note, nil
}
