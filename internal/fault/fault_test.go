package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errDuplicate = Conflict("duplicate_thing")

func TestErrorMatchesCodeAndKind(t *testing.T) {
	err := fmt.Errorf("issue: %w", errDuplicate)

	assert.True(t, errors.Is(err, errDuplicate))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "duplicate_thing", Code(err))
	assert.Equal(t, ErrConflict, KindOf(err))
}

func TestTransientWrapsOnce(t *testing.T) {
	base := errors.New("deadlock detected")
	err := Transient(Transient(base))

	assert.True(t, errors.Is(err, ErrTransient))
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "transient_store_error: deadlock detected", err.Error())
	assert.Nil(t, Transient(nil))
}

func TestCodeOfUnclassifiedError(t *testing.T) {
	assert.Equal(t, "internal_error", Code(errors.New("boom")))
	assert.Nil(t, KindOf(errors.New("boom")))
}
