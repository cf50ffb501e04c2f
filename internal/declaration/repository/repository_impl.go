package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/declaration/domain"
	"gorm.io/gorm"
)

const declarationColumns = `id, taxpayer_id, fiscal_year, lines, total, status, note_id, submitted_by, submitted_at, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, declaration *domain.Declaration) error {
	return db.WithContext(ctx).Create(declaration).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Declaration, error) {
	return r.findOne(ctx, db, `SELECT `+declarationColumns+` FROM declarations WHERE id = ?`, id)
}

func (r *repo) FindByTaxpayerYear(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID, year int) (*domain.Declaration, error) {
	return r.findOne(ctx, db,
		`SELECT `+declarationColumns+` FROM declarations WHERE taxpayer_id = ? AND fiscal_year = ?`,
		taxpayerID, year,
	)
}

func (r *repo) ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*domain.Declaration, error) {
	var declarations []*domain.Declaration
	err := db.WithContext(ctx).Raw(
		`SELECT `+declarationColumns+` FROM declarations
		 WHERE taxpayer_id = ?
		 ORDER BY fiscal_year DESC, id DESC`,
		taxpayerID,
	).Scan(&declarations).Error
	if err != nil {
		return nil, err
	}
	return declarations, nil
}

func (r *repo) AttachNote(ctx context.Context, db *gorm.DB, id snowflake.ID, noteID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`UPDATE declarations SET note_id = ? WHERE id = ?`, noteID, id).Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Declaration, error) {
	var declaration domain.Declaration
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&declaration).Error; err != nil {
		return nil, err
	}
	if declaration.ID == 0 {
		return nil, nil
	}
	return &declaration, nil
}
