package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	// NextSequence atomically increments and returns the counter for (series, year, zone).
	NextSequence(ctx context.Context, db *gorm.DB, series Series, year int, zoneCode string) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, note *TaxationNote) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TaxationNote, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TaxationNote, error)
	FindActive(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID, year int) (*TaxationNote, error)
	ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*TaxationNote, error)
	ListCollectible(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*TaxationNote, error)
	UpdatePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paid decimal.Decimal, status Status, at time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, at time.Time) error
	Void(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error
	MarkRectified(ctx context.Context, db *gorm.DB, id snowflake.ID, rectificationID snowflake.ID, at time.Time) error
}
