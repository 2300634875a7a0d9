package query

import (
	"sort"
	"strings"

	"github.com/hera-erp/hera/internal/model"
)

// SearchKey is the filters key that requests free-text search.
const SearchKey = "search"

var filterOps = map[string]Op{
	"eq":  OpEq,
	"ne":  OpNe,
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
}

// FromFilters converts the loosely typed filters map of a request into a
// predicate. Keys are processed in sorted order so the compiled SQL is
// stable. Supported value shapes:
//
//	"status": "active"                   equality
//	"status": ["active", "archived"]     membership
//	"ended_at": null                     IS NULL
//	"total_amount": {"gte": 10, "lt": 50} comparisons (eq ne gt gte lt lte in is_null)
//	"search": "acme"                     free-text search
func FromFilters(filters map[string]any) (Predicate, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, key := range keys {
		v := filters[key]
		if key == SearchKey {
			term, ok := v.(string)
			if !ok {
				return nil, model.Validation("filters.search", "search term must be a string")
			}
			preds = append(preds, Search{Term: term})
			continue
		}
		switch val := v.(type) {
		case nil:
			preds = append(preds, IsNull{Field: key})
		case []any:
			preds = append(preds, In{Field: key, Values: val})
		case []string:
			values := make([]any, len(val))
			for i, s := range val {
				values[i] = s
			}
			preds = append(preds, In{Field: key, Values: values})
		case map[string]any:
			ops, err := fromOps(key, val)
			if err != nil {
				return nil, err
			}
			preds = append(preds, ops...)
		default:
			preds = append(preds, Eq(key, val))
		}
	}
	return And{Predicates: preds}, nil
}

func fromOps(field string, ops map[string]any) ([]Predicate, error) {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	preds := make([]Predicate, 0, len(names))
	for _, name := range names {
		v := ops[name]
		switch name {
		case "in":
			values, ok := v.([]any)
			if !ok {
				return nil, model.Validation("filters."+field, "in expects a list")
			}
			preds = append(preds, In{Field: field, Values: values})
		case "is_null":
			b, ok := v.(bool)
			if !ok {
				return nil, model.Validation("filters."+field, "is_null expects a boolean")
			}
			preds = append(preds, IsNull{Field: field, Not: !b})
		default:
			op, ok := filterOps[name]
			if !ok {
				return nil, model.Validation("filters."+field, "unknown operator %q", name)
			}
			preds = append(preds, Cmp{Field: field, Op: op, Value: v})
		}
	}
	return preds, nil
}

// ParseSort reads sort keys of the form "field" or "-field" (descending).
func ParseSort(keys []string) []Sort {
	out := make([]Sort, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.HasPrefix(k, "-") {
			out = append(out, Sort{Field: k[1:], Desc: true})
			continue
		}
		out = append(out, Sort{Field: k})
	}
	return out
}
