package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByNote(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*Escalation, error)
	FindByNoteForUpdate(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*Escalation, error)
	Upsert(ctx context.Context, db *gorm.DB, escalation *Escalation) error
}
