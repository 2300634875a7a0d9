package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := Conflict("entity_code", "entity_code %s already exists", "C-1")
	assert.Equal(t, "conflict: entity_code C-1 already exists (field=entity_code)", err.Error())

	cause := Validation("value", "bad value")
	wrapped := Integrity(cause, "batch item %d failed", 1)
	assert.Equal(t, "integrity: batch item 1 failed: validation: bad value (field=value)", wrapped.Error())
	assert.True(t, errors.Is(wrapped, cause))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("disk full")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("read: %w", NotFound("entity", "e-1"))))

	assert.True(t, IsNotFound(NotFound("entity", "e-1")))
	assert.True(t, IsConflict(fmt.Errorf("wrap: %w", Conflict("", "cycle"))))
	assert.False(t, IsKind(nil, KindValidation))
	assert.True(t, IsKind(TenantIsolation("organization is archived"), KindTenantIsolation))
}

func TestError_WithDetail(t *testing.T) {
	err := Conflict("status", "illegal transition").
		WithDetail("allowed", []string{"submitted", "cancelled"}).
		WithDetail("from", "draft")

	e, ok := AsError(fmt.Errorf("transition: %w", err))
	require.True(t, ok)
	assert.Equal(t, []string{"submitted", "cancelled"}, e.Details["allowed"])
	assert.Equal(t, "draft", e.Details["from"])
}

func TestTenantIsolation_NamesField(t *testing.T) {
	err := TenantIsolation("payload organization_id does not match the request scope")
	assert.Equal(t, "organization_id", err.Field)
	assert.NotEqual(t, KindNotFound, err.Kind)
}
