package correlation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "cron-2026-01-05")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "cron-2026-01-05", cid)
	assert.Equal(t, "cron-2026-01-05", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	assert.Len(t, cid, 26)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestContextWithCorrelationIDSanitizes(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "   ")
	assert.Empty(t, ExtractCorrelationID(ctx))

	ctx = ContextWithCorrelationID(context.Background(), strings.Repeat("x", 100))
	assert.Len(t, ExtractCorrelationID(ctx), 64)
}
