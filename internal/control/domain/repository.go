package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, control *Control) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Control, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Control, error)
	// Complete moves a planned control to completed and reports whether this call did it.
	Complete(ctx context.Context, db *gorm.DB, control *Control) (bool, error)
	ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*Control, error)
	ListByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID, status Status) ([]*Control, error)

	InsertReport(ctx context.Context, db *gorm.DB, report *Report) error
	FindReport(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Report, error)
	FindReportByControl(ctx context.Context, db *gorm.DB, controlID snowflake.ID) (*Report, error)
}
