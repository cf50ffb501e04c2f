package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/redevance/internal/recovery/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"gorm.io/gorm"
)

const dossierColumns = `id, reference, taxpayer_id, kind, status, amount_due, internal_notes,
	referred_at, closed_at, outcome, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, dossier *domain.Dossier) error {
	return db.WithContext(ctx).Create(dossier).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Dossier, error) {
	return r.findOne(ctx, db, `SELECT `+dossierColumns+` FROM recovery_dossiers WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Dossier, error) {
	return r.findOne(ctx, db, `SELECT `+dossierColumns+` FROM recovery_dossiers WHERE id = ?`+pkgdb.ForUpdate(db), id)
}

func (r *repo) FindActiveByTaxpayerForUpdate(ctx context.Context, db *gorm.DB, taxpayerID snowflake.ID) (*domain.Dossier, error) {
	return r.findOne(ctx, db,
		`SELECT `+dossierColumns+` FROM recovery_dossiers WHERE taxpayer_id = ? AND status = ?`+pkgdb.ForUpdate(db),
		taxpayerID, domain.StatusReferred,
	)
}

func (r *repo) List(ctx context.Context, db *gorm.DB, status domain.Status, limit, offset int) ([]*domain.Dossier, error) {
	query := `SELECT ` + dossierColumns + ` FROM recovery_dossiers`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY referred_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var dossiers []*domain.Dossier
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&dossiers).Error; err != nil {
		return nil, err
	}
	return dossiers, nil
}

func (r *repo) AddNote(ctx context.Context, db *gorm.DB, link *domain.DossierNote) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO dossier_notes (dossier_id, note_id, amount_due, added_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (dossier_id, note_id) DO NOTHING`,
		link.DossierID, link.NoteID, link.AmountDue, link.AddedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) IncreaseAmount(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recovery_dossiers SET amount_due = amount_due + ? WHERE id = ?`,
		amount, id,
	).Error
}

func (r *repo) ListNotes(ctx context.Context, db *gorm.DB, dossierID snowflake.ID) ([]*domain.DossierNote, error) {
	var links []*domain.DossierNote
	err := db.WithContext(ctx).Raw(
		`SELECT dossier_id, note_id, amount_due, added_at FROM dossier_notes
		 WHERE dossier_id = ?
		 ORDER BY added_at ASC, note_id ASC`,
		dossierID,
	).Scan(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repo) FindReferredForNote(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*domain.Dossier, error) {
	return r.findOne(ctx, db,
		`SELECT d.id, d.reference, d.taxpayer_id, d.kind, d.status, d.amount_due, d.internal_notes,
			d.referred_at, d.closed_at, d.outcome, d.created_at
		 FROM recovery_dossiers d
		 JOIN dossier_notes dn ON dn.dossier_id = d.id
		 WHERE dn.note_id = ? AND d.status = ?
		 LIMIT 1`,
		noteID, domain.StatusReferred,
	)
}

func (r *repo) Close(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE recovery_dossiers SET status = ?, outcome = ?, closed_at = ? WHERE id = ? AND status = ?`,
		domain.StatusClosed, outcome, at, id, domain.StatusReferred,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Dossier, error) {
	var dossier domain.Dossier
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&dossier).Error; err != nil {
		return nil, err
	}
	if dossier.ID == 0 {
		return nil, nil
	}
	return &dossier, nil
}
