package engine

import (
	"context"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
	"github.com/hera-erp/hera/internal/store"
)

// buildSelect turns the call's filters, sort and paging options into a
// tenant-scoped select. extra predicates are ANDed after the filters.
func buildSelect(c *call, table string, extra ...query.Predicate) (query.Select, error) {
	if c.options.Limit < 0 || c.options.Offset < 0 {
		return query.Select{}, model.Validation("options.limit", "limit and offset must not be negative")
	}
	filter, err := query.FromFilters(c.options.Filters)
	if err != nil {
		return query.Select{}, err
	}
	sel := query.Select{
		Table:          table,
		OrganizationID: c.org,
		Filter:         filter,
		Sort:           query.ParseSort(c.options.Sort),
		Limit:          c.options.Limit,
		Offset:         c.options.Offset,
	}
	return sel.Where(extra...), nil
}

// rowsOutcome packages a query result. When the page is limited the total
// match count is reported as well.
func rowsOutcome[T any](ctx context.Context, st *store.Store, c *call, sel query.Select, rows []T) (outcome, error) {
	out := anyRows(rows)
	meta := &Meta{Count: len(rows), Filters: c.options.Filters}
	if sel.Limit > 0 || sel.Offset > 0 {
		total, err := st.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		meta.Total = &total
	}
	return outcome{rows: out, meta: meta}, nil
}

func mentions(filters map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := filters[k]; ok {
			return true
		}
	}
	return false
}

func anyRows[T any](rows []T) []any {
	out := make([]any, len(rows))
	for i := range rows {
		out[i] = rows[i]
	}
	return out
}
