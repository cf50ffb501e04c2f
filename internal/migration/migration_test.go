package migration_test

import (
	"testing"

	"github.com/smallbiznis/redevance/internal/migration"
	"github.com/smallbiznis/redevance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySQLiteSchemaIsIdempotent(t *testing.T) {
	conn := testutil.OpenDB(t)

	require.NoError(t, migration.ApplySQLiteSchema(conn))

	var count int64
	require.NoError(t, conn.Raw(`SELECT COUNT(*) FROM tariffs`).Scan(&count).Error)
	assert.Equal(t, int64(11), count)
}
