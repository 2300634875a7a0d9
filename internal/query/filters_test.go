package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFilters(t *testing.T) {
	p, err := FromFilters(map[string]any{
		"status":       []any{"active"},
		"entity_type":  "customer",
		"search":       "acme",
		"deleted_at":   nil,
		"total_amount": map[string]any{"lt": 50, "gte": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, And{Predicates: []Predicate{
		IsNull{Field: "deleted_at"},
		Eq("entity_type", "customer"),
		Search{Term: "acme"},
		In{Field: "status", Values: []any{"active"}},
		Cmp{Field: "total_amount", Op: OpGte, Value: 10},
		Cmp{Field: "total_amount", Op: OpLt, Value: 50},
	}}, p)
}

func TestFromFiltersEmpty(t *testing.T) {
	p, err := FromFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestFromFiltersErrors(t *testing.T) {
	tests := []map[string]any{
		{"search": 3},
		{"status": map[string]any{"like": "a%"}},
		{"status": map[string]any{"in": "active"}},
		{"ended_at": map[string]any{"is_null": "yes"}},
	}
	for _, f := range tests {
		_, err := FromFilters(f)
		assert.Error(t, err)
	}
}

func TestFromFiltersCompiles(t *testing.T) {
	p, err := FromFilters(map[string]any{
		"is_active": true,
		"ended_at":  map[string]any{"is_null": true},
	})
	require.NoError(t, err)

	sql, params, err := Compile(Select{Table: TableRelationships, OrganizationID: org, Columns: []string{"id"}, Filter: p})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM relationships WHERE organization_id = ? AND ended_at IS NULL AND is_active = ? ORDER BY rowid ASC",
		sql)
	assert.Equal(t, []any{org, int64(1)}, params)
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, []Sort{{Field: "a"}, {Field: "b", Desc: true}}, ParseSort([]string{"a", " ", "-b"}))
}

func TestSelectWhere(t *testing.T) {
	s := Select{Table: TableEntities, OrganizationID: org, Filter: Eq("status", "active")}
	s = s.Where(Eq("entity_type", "customer"))
	sql, _, err := Compile(s)
	require.NoError(t, err)
	assert.Contains(t, sql, "status = ? AND entity_type = ?")
}
