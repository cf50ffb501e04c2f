package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, note *RectificationNote) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RectificationNote, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RectificationNote, error)
	FindByReport(ctx context.Context, db *gorm.DB, reportID snowflake.ID) (*RectificationNote, error)
	ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*RectificationNote, error)
	MarkIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, number string, issuedAt, dueDate time.Time) error
	UpdatePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paid decimal.Decimal, status Status, at time.Time) error
}
