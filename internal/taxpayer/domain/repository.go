package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status   Status
	ZoneCode string
	AfterID  snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, taxpayer *Taxpayer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Taxpayer, error)
	Update(ctx context.Context, db *gorm.DB, taxpayer *Taxpayer) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, at time.Time) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Taxpayer, error)
}
