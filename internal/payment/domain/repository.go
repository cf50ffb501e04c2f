package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	// MarkConfirmed flips a pending payment and reports whether this call did it.
	MarkConfirmed(ctx context.Context, db *gorm.DB, id snowflake.ID, by *snowflake.ID, at time.Time) (bool, error)
	ListByTarget(ctx context.Context, db *gorm.DB, kind TargetKind, targetID snowflake.ID) ([]*Payment, error)
	ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*Payment, error)
}
