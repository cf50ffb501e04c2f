package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/notification/domain"
	"gorm.io/gorm"
)

const notificationColumns = `id, subject_type, subject_id, template_kind, taxpayer_id, recipient, variables,
	status, attempts, last_error, artifact_key, sent_at, claimed_until, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIgnore(ctx context.Context, db *gorm.DB, n *domain.Notification) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, subject_type, subject_id, template_kind, taxpayer_id, recipient, variables,
		                            status, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (subject_type, subject_id, template_kind) DO NOTHING`,
		n.ID, n.SubjectType, n.SubjectID, n.TemplateKind, n.TaxpayerID, n.Recipient, n.Variables,
		n.Status, n.CreatedAt, n.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Notification, error) {
	return r.findOne(ctx, db, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
}

func (r *repo) FindBySubject(ctx context.Context, db *gorm.DB, subjectType domain.SubjectType, subjectID snowflake.ID, kind domain.TemplateKind) (*domain.Notification, error) {
	return r.findOne(ctx, db,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE subject_type = ? AND subject_id = ? AND template_kind = ?`,
		subjectType, subjectID, kind,
	)
}

func (r *repo) ListBySubject(ctx context.Context, db *gorm.DB, subjectType domain.SubjectType, subjectID snowflake.ID) ([]*domain.Notification, error) {
	var items []*domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE subject_type = ? AND subject_id = ?
		 ORDER BY created_at ASC, id ASC`,
		subjectType, subjectID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Notification, error) {
	var items []*domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE status = ? AND (claimed_until IS NULL OR claimed_until < ?)
		 ORDER BY updated_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending, now, limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now, until time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE notifications SET claimed_until = ?
		 WHERE id = ? AND status = ? AND (claimed_until IS NULL OR claimed_until < ?)`,
		until, id, domain.StatusPending, now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) RecordAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, attempt domain.Attempt) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications
		 SET status = ?, attempts = ?, last_error = ?, artifact_key = ?, sent_at = ?, updated_at = ?, claimed_until = NULL
		 WHERE id = ? AND status = ?`,
		attempt.Status, attempt.Attempts, attempt.LastError, attempt.ArtifactKey, attempt.SentAt, attempt.At,
		id, domain.StatusPending,
	).Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&n).Error; err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}
