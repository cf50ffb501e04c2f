package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/escalation/domain"
	pkgdb "github.com/smallbiznis/redevance/pkg/db"
	"gorm.io/gorm"
)

const escalationColumns = `note_id, taxpayer_id, stage, stage_reached_at, last_attempted_at, dossier_id, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByNote(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*domain.Escalation, error) {
	return r.findOne(ctx, db, `SELECT `+escalationColumns+` FROM note_escalations WHERE note_id = ?`, noteID)
}

func (r *repo) FindByNoteForUpdate(ctx context.Context, db *gorm.DB, noteID snowflake.ID) (*domain.Escalation, error) {
	return r.findOne(ctx, db, `SELECT `+escalationColumns+` FROM note_escalations WHERE note_id = ?`+pkgdb.ForUpdate(db), noteID)
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, escalation *domain.Escalation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO note_escalations (note_id, taxpayer_id, stage, stage_reached_at, last_attempted_at, dossier_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (note_id) DO UPDATE SET
		   stage = excluded.stage,
		   stage_reached_at = excluded.stage_reached_at,
		   last_attempted_at = excluded.last_attempted_at,
		   dossier_id = excluded.dossier_id,
		   updated_at = excluded.updated_at`,
		escalation.NoteID, escalation.TaxpayerID, escalation.Stage, escalation.StageReachedAt,
		escalation.LastAttemptedAt, escalation.DossierID, escalation.UpdatedAt,
	).Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Escalation, error) {
	var escalation domain.Escalation
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&escalation).Error; err != nil {
		return nil, err
	}
	if escalation.NoteID == 0 {
		return nil, nil
	}
	return &escalation, nil
}
