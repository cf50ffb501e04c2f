package storage

import (
	"context"
	"testing"

	"github.com/smallbiznis/redevance/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDisabledArchiveIsNoop(t *testing.T) {
	archive, err := NewFromConfig(config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NoOpArchive{}, archive)

	key, err := archive.Put(context.Background(), "letters/a.pdf", []byte("x"), "application/pdf")
	require.NoError(t, err)
	assert.Empty(t, key)
}
