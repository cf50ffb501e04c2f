package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, dispute *Dispute) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Dispute, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Dispute, error)
	FindFiledByNote(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*Dispute, error)
	ListByTaxpayer(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) ([]*Dispute, error)
	// Decide records the decision on a filed dispute and reports whether this call did it.
	Decide(ctx context.Context, db *gorm.DB, dispute *Dispute) (bool, error)
}
