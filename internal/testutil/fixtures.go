package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SeedTaxpayer inserts an active taxpayer with a complete profile.
func SeedTaxpayer(t *testing.T, db *gorm.DB, id snowflake.ID, zoneCode, zoneClass string) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Exec(
		`INSERT INTO taxpayers (id, kind, legal_name, email, zone_code, zone_class, classification,
		                        profile_complete, status, created_at, updated_at)
		 VALUES (?, 'organization', ?, ?, ?, ?, 'hotel', ?, 'active', ?, ?)`,
		id, "Taxpayer "+id.String(), "tp"+id.String()+"@example.cd", zoneCode, zoneClass, true, now, now,
	).Error)
}
