package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, declaration *Declaration) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Declaration, error)
	FindByTaxpayerYear(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID, year int) (*Declaration, error)
	ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*Declaration, error)
	AttachNote(ctx context.Context, db *gorm.DB, id snowflake.ID, noteID snowflake.ID) error
}
