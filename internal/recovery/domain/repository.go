package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, dossier *Dossier) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Dossier, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Dossier, error)
	FindActiveByTaxpayerForUpdate(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) (*Dossier, error)
	List(ctx context.Context, db *gorm.DB, status Status, limit, offset int) ([]*Dossier, error)
	// AddNote links a note once. It reports false when the note was already in the dossier.
	AddNote(ctx context.Context, db *gorm.DB, link *DossierNote) (bool, error)
	IncreaseAmount(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal) error
	ListNotes(ctx context.Context, db *gorm.DB, dossierID snowflake.ID) ([]*DossierNote, error)
	// FindReferredForNote returns the referred dossier holding the note, if any.
	FindReferredForNote(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*Dossier, error)
	// Close moves a referred dossier to closed and reports whether this call did it.
	Close(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, at time.Time) (bool, error)
}
