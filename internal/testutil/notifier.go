package testutil

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/clock"
	"github.com/smallbiznis/redevance/internal/config"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/redevance/internal/notification/repository"
	notificationservice "github.com/smallbiznis/redevance/internal/notification/service"
	"github.com/smallbiznis/redevance/internal/providers/email"
	"github.com/smallbiznis/redevance/internal/providers/pdf"
	"github.com/smallbiznis/redevance/internal/providers/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewNotifier returns a notification service whose providers discard every message.
func NewNotifier(t *testing.T, db *gorm.DB, node *snowflake.Node, clk clock.Clock) notificationdomain.Service {
	t.Helper()
	return notificationservice.New(notificationservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    notificationrepo.Provide(),
		Email:   &email.NoOpProvider{},
		PDF:     &pdf.NoOpProvider{},
		Archive: storage.NoOpArchive{},
		Policy:  config.NewStaticPolicyHolder(config.DefaultEnforcementPolicy()),
		Authz:   NewAuthz(t),
	})
}

// CountNotifications returns how many attempts exist for the subject.
func CountNotifications(t *testing.T, db *gorm.DB, subjectType notificationdomain.SubjectType, subjectID snowflake.ID) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM notifications WHERE subject_type = ? AND subject_id = ?`, subjectType, subjectID).Scan(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return count
}
