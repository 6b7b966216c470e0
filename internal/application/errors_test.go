package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gusfragger/webot/internal/persistence"
)

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	assert.Empty(t, nilErr.Error())
	assert.Equal(t, "validation failed", (&ValidationError{}).Error())

	v := &ValidationError{}
	v.add("zone", "unknown")
	v.add("duration_minutes", "too short")
	v.add("zone", "ignored")
	assert.Equal(t, "validation failed: duration_minutes: too short; zone: unknown", v.Error())
}

func TestValidationErrorHasErrorsAndMerge(t *testing.T) {
	t.Parallel()

	assert.False(t, (&ValidationError{}).HasErrors())

	base := fieldError("first", "value")
	base.merge(&ValidationError{FieldErrors: map[string]string{"second": "another", "first": "later"}})
	base.merge(nil)
	assert.True(t, base.HasErrors())
	assert.Equal(t, map[string]string{"first": "value", "second": "another"}, base.FieldErrors)
}

func TestConflictErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &ConflictError{OwnerID: "u1", Conflicts: []Interval{{ID: "b1"}}})
	require.ErrorIs(t, err, ErrSchedulingConflict)

	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "b1", cErr.Conflicts[0].ID)
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapRepoError(nil))
	assert.ErrorIs(t, mapRepoError(persistence.ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, mapRepoError(persistence.ErrStaleWrite), ErrInvalidTransition)
	assert.ErrorIs(t, mapRepoError(persistence.ErrForeignKeyViolation), ErrNotFound)

	other := errors.New("disk full")
	assert.Same(t, other, mapRepoError(other))
}
