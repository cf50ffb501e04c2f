package repository

import (
	"context"

	"github.com/smallbiznis/redevance/internal/tariff/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Lookup(ctx context.Context, db *gorm.DB, category, subCategory, zoneClass string) (*domain.Tariff, error) {
	var rows []*domain.Tariff
	err := db.WithContext(ctx).Raw(
		`SELECT id, category, sub_category, zone_class, unit_price, created_at
		 FROM tariffs
		 WHERE category = ? AND zone_class = ? AND sub_category IN (?, ?)`,
		category, zoneClass, subCategory, domain.AnySubCategory,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var fallback *domain.Tariff
	for _, row := range rows {
		if row.SubCategory == subCategory {
			return row, nil
		}
		if row.SubCategory == domain.AnySubCategory {
			fallback = row
		}
	}
	return fallback, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, zoneClass string) ([]*domain.Tariff, error) {
	var rows []*domain.Tariff
	stmt := db.WithContext(ctx).Model(&domain.Tariff{})
	if zoneClass != "" {
		stmt = stmt.Where("zone_class = ?", zoneClass)
	}
	if err := stmt.Order("category asc, sub_category asc, zone_class asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
