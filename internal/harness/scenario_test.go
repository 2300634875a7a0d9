package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hera-erp/hera/internal/engine"
)

const minimalScenario = `
name: minimal
description: one organization
steps:
  - request:
      operation: create
      store: organization
      organization_id: "00000000-0000-0000-0000-000000000000"
      payload: {id: org-a, organization_name: A, organization_code: A}
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, engine.OpCreate, s.Steps[0].Request.Operation)
	assert.Equal(t, engine.StoreOrganization, s.Steps[0].Request.Store)
	assert.Equal(t, "org-a", s.Steps[0].Request.Payload["id"])
	assert.Nil(t, s.Steps[0].Expect)
}

func TestParseScenario_BatchAndOptions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: batch
description: batch and options decode
steps:
  - request:
      operation: bulk_create
      store: dynamic_data
      organization_id: org-a
      batch:
        atomicity: all_or_none
        items:
          - {entity_id: e, field_name: a, field_type: text, value: x}
      options:
        limit: 5
        filters: {status: active}
    expect:
      status: error
      count: 0
`))
	require.NoError(t, err)

	req := s.Steps[0].Request
	require.NotNil(t, req.Batch)
	assert.Equal(t, engine.AtomicityAllOrNone, req.Batch.Atomicity)
	assert.Len(t, req.Batch.Items, 1)
	assert.Equal(t, 5, req.Options.Limit)
	assert.Equal(t, "active", req.Options.Filters["status"])
	require.NotNil(t, s.Steps[0].Expect.Count)
	assert.Equal(t, 0, *s.Steps[0].Expect.Count)
}

func TestParseScenario_Rejects(t *testing.T) {
	step := `
steps:
  - request: {operation: read, store: entity, organization_id: o}
`
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing name", "description: d" + step, "name is required"},
		{"missing description", "name: n" + step, "description is required"},
		{"no steps", "name: n\ndescription: d\n", "steps list is required"},
		{"unknown field", "name: n\ndescription: d\nstepz: []\n" + step, "field stepz not found"},
		{"missing operation", "name: n\ndescription: d\nsteps:\n  - request: {store: entity}\n", "request.operation is required"},
		{"missing store", "name: n\ndescription: d\nsteps:\n  - request: {operation: read}\n", "request.store is required"},
		{"bad status", "name: n\ndescription: d" + step + "    expect: {status: maybe}\n", "status must be success or error"},
		{"kind on success", "name: n\ndescription: d" + step + "    expect: {status: success, kind: conflict}\n", "kind requires status error"},
		{"bad level", "name: n\ndescription: d\nvalidation_level: 7" + step, "validation_level"},
		{"bad start", "name: n\ndescription: d\nstart: yesterday" + step, "start"},
		{"unknown assertion", "name: n\ndescription: d" + step + "assertions:\n  - type: vibes\n", "unknown assertion type"},
		{"final_state without expect", "name: n\ndescription: d" + step + "assertions:\n  - {type: final_state, table: entities}\n", "expect is required"},
		{"row_count without table", "name: n\ndescription: d" + step + "assertions:\n  - {type: row_count, count: 1}\n", "table is required"},
		{"trace_order without actions", "name: n\ndescription: d" + step + "assertions:\n  - {type: trace_order}\n", "actions list is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}
