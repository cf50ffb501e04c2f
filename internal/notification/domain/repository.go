package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIgnore inserts n unless the (subject, template) pair exists, and reports whether it inserted.
	InsertIgnore(ctx context.Context, db *gorm.DB, n *Notification) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
	FindBySubject(ctx context.Context, db *gorm.DB, subjectType SubjectType, subjectID snowflake.ID, kind TemplateKind) (*Notification, error)
	ListBySubject(ctx context.Context, db *gorm.DB, subjectType SubjectType, subjectID snowflake.ID) ([]*Notification, error)
	// ListPending returns pending rows that no sender currently holds a claim on.
	ListPending(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Notification, error)
	// Claim takes the send lease on a pending row until the given time. Only one caller wins.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now, until time.Time) (bool, error)
	// RecordAttempt stores the outcome of a claimed send and releases the claim.
	RecordAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, attempt Attempt) error
}
