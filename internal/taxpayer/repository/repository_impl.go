package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/taxpayer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, taxpayer *domain.Taxpayer) error {
	return db.WithContext(ctx).Create(taxpayer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Taxpayer, error) {
	var taxpayer domain.Taxpayer
	err := db.WithContext(ctx).Raw(
		`SELECT id, kind, legal_name, email, zone_code, zone_class, classification,
		        profile_complete, status, deactivated_at, created_at, updated_at
		 FROM taxpayers
		 WHERE id = ?`,
		id,
	).Scan(&taxpayer).Error
	if err != nil {
		return nil, err
	}
	if taxpayer.ID == 0 {
		return nil, nil
	}
	return &taxpayer, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, taxpayer *domain.Taxpayer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE taxpayers
		 SET legal_name = ?, email = ?, zone_code = ?, zone_class = ?, classification = ?,
		     profile_complete = ?, status = ?, deactivated_at = ?, updated_at = ?
		 WHERE id = ?`,
		taxpayer.LegalName,
		taxpayer.Email,
		taxpayer.ZoneCode,
		taxpayer.ZoneClass,
		taxpayer.Classification,
		taxpayer.ProfileComplete,
		taxpayer.Status,
		taxpayer.DeactivatedAt,
		taxpayer.UpdatedAt,
		taxpayer.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE taxpayers SET status = ?, updated_at = ? WHERE id = ?`,
		status, at, id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Taxpayer, error) {
	var items []*domain.Taxpayer
	stmt := db.WithContext(ctx).Model(&domain.Taxpayer{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if zone := strings.TrimSpace(filter.ZoneCode); zone != "" {
		stmt = stmt.Where("zone_code = ?", zone)
	}
	if filter.AfterID != 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	stmt = stmt.Order("id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
