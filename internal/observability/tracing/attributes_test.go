package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/v1/notes/:id"),
		attribute.String("email", "t@example.com"),
		attribute.Int("http.status_code", 200),
	)
	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("email"), attr.Key)
	}
}

func TestSafeErrorKeepsFirstLine(t *testing.T) {
	err := SafeError(errors.New("note_not_found\nstack"))
	assert.EqualError(t, err, "note_not_found")
	assert.Nil(t, SafeError(nil))
}
