package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hera-erp/hera/internal/model"
)

// MaxLimit caps the page size of a single Select.
const MaxLimit = 1000

// insertionOrder is the final ORDER BY key of every query. rowid grows with
// insertion, so ties under a caller sort fall back to insertion order.
const insertionOrder = "rowid ASC"

type compiler struct {
	table    *Table
	tenant   string
	registry bool
	params   []any
}

// Compile turns s into parameterized SQL.
func Compile(s Select) (string, []any, error) {
	c, where, err := prepare(s)
	if err != nil {
		return "", nil, err
	}

	columns := s.Columns
	if len(columns) == 0 {
		columns = c.table.ColumnNames()
	}
	for _, name := range columns {
		if _, ok := c.table.Column(name); !ok {
			return "", nil, model.Validation("columns", "unknown column %q on %s", name, c.table.Name)
		}
	}

	order, err := c.orderBy(s.Sort)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(columns, ", "), c.table.Name, where, order)

	switch {
	case s.Limit < 0 || s.Limit > MaxLimit:
		return "", nil, model.Validation("limit", "limit must be between 0 and %d", MaxLimit)
	case s.Offset < 0:
		return "", nil, model.Validation("offset", "offset must not be negative")
	}
	if s.Limit > 0 {
		b.WriteString(" LIMIT ?")
		c.params = append(c.params, s.Limit)
	} else if s.Offset > 0 {
		b.WriteString(" LIMIT -1")
	}
	if s.Offset > 0 {
		b.WriteString(" OFFSET ?")
		c.params = append(c.params, s.Offset)
	}
	return b.String(), c.params, nil
}

// CompileCount turns s into a COUNT(*) over the same rows, ignoring sort
// and paging.
func CompileCount(s Select) (string, []any, error) {
	c, where, err := prepare(s)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.table.Name, where), c.params, nil
}

func prepare(s Select) (*compiler, string, error) {
	table, ok := Lookup(s.Table)
	if !ok {
		return nil, "", model.Validation("store", "unknown table %q", s.Table)
	}
	if s.OrganizationID == "" {
		return nil, "", model.Validation("organization_id", "refusing query on %s without a tenant predicate", table.Name)
	}
	if s.Registry && table.Name != TableOrganizations {
		return nil, "", model.Validation("store", "registry reads are limited to %s", TableOrganizations)
	}
	c := &compiler{table: table, tenant: s.OrganizationID, registry: s.Registry}
	where := "1 = 1"
	if !s.Registry {
		c.params = append(c.params, s.OrganizationID)
		where = table.TenantColumn + " = ?"
	}
	if s.Filter != nil {
		sql, err := c.predicate(s.Filter)
		if err != nil {
			return nil, "", err
		}
		switch {
		case sql == "1 = 1":
		case where == "1 = 1":
			where = sql
		default:
			where += " AND " + sql
		}
	}
	return c, where, nil
}

func (c *compiler) predicate(p Predicate) (string, error) {
	switch pred := p.(type) {
	case Cmp:
		return c.cmp(pred)
	case *Cmp:
		return c.cmp(*pred)
	case In:
		return c.in(pred)
	case *In:
		return c.in(*pred)
	case IsNull:
		return c.isNull(pred)
	case *IsNull:
		return c.isNull(*pred)
	case Search:
		return c.search(pred)
	case *Search:
		return c.search(*pred)
	case And:
		return c.and(pred)
	case *And:
		return c.and(*pred)
	case nil:
		return "1 = 1", nil
	default:
		return "", model.Internal(nil, "unsupported predicate type %T", p)
	}
}

func (c *compiler) column(field string) (Column, error) {
	col, ok := c.table.Column(field)
	if !ok {
		return Column{}, model.Validation("filters."+field, "unknown field %q on %s", field, c.table.Name)
	}
	if col.Kind == KindJSON {
		return Column{}, model.Validation("filters."+field, "field %q holds JSON and cannot be filtered", field)
	}
	return col, nil
}

// guardTenant allows the tenant column in a filter only as an equality on
// the caller's own tenant. Registry reads filter organization ids freely.
func (c *compiler) guardTenant(field string, op Op, value any) error {
	if field != c.table.TenantColumn || c.registry {
		return nil
	}
	if op != OpEq {
		return model.Validation("filters."+field, "only equality is allowed on %s", field)
	}
	if v, ok := value.(string); !ok || v != c.tenant {
		return model.TenantIsolation("filter names a different organization")
	}
	return nil
}

func (c *compiler) cmp(p Cmp) (string, error) {
	switch p.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
	default:
		return "", model.Validation("filters."+p.Field, "unknown operator %q", p.Op)
	}
	col, err := c.column(p.Field)
	if err != nil {
		return "", err
	}
	if err := c.guardTenant(p.Field, p.Op, p.Value); err != nil {
		return "", err
	}
	param, err := convert(col, p.Value)
	if err != nil {
		return "", err
	}
	c.params = append(c.params, param)
	if col.Kind == KindDecimal {
		return fmt.Sprintf("CAST(%s AS REAL) %s CAST(? AS REAL)", col.Name, p.Op), nil
	}
	return fmt.Sprintf("%s %s ?", col.Name, p.Op), nil
}

func (c *compiler) in(p In) (string, error) {
	col, err := c.column(p.Field)
	if err != nil {
		return "", err
	}
	if p.Field == c.table.TenantColumn && !c.registry {
		return "", model.Validation("filters."+p.Field, "only equality is allowed on %s", p.Field)
	}
	if len(p.Values) == 0 {
		return "0 = 1", nil
	}
	marks := make([]string, len(p.Values))
	for i, v := range p.Values {
		param, err := convert(col, v)
		if err != nil {
			return "", err
		}
		c.params = append(c.params, param)
		marks[i] = "?"
		if col.Kind == KindDecimal {
			marks[i] = "CAST(? AS REAL)"
		}
	}
	name := col.Name
	if col.Kind == KindDecimal {
		name = "CAST(" + name + " AS REAL)"
	}
	return fmt.Sprintf("%s IN (%s)", name, strings.Join(marks, ", ")), nil
}

func (c *compiler) isNull(p IsNull) (string, error) {
	col, ok := c.table.Column(p.Field)
	if !ok {
		return "", model.Validation("filters."+p.Field, "unknown field %q on %s", p.Field, c.table.Name)
	}
	if p.Not {
		return col.Name + " IS NOT NULL", nil
	}
	return col.Name + " IS NULL", nil
}

func (c *compiler) search(p Search) (string, error) {
	if c.table.SearchColumn == "" {
		return "", model.Validation("filters.search", "%s does not support free-text search", c.table.Name)
	}
	term := model.FoldPattern(p.Term)
	if term == "" {
		return "1 = 1", nil
	}
	c.params = append(c.params, "%"+escapeLike(term)+"%")
	return c.table.SearchColumn + ` LIKE ? ESCAPE '\'`, nil
}

func (c *compiler) and(p And) (string, error) {
	var parts []string
	for _, sub := range p.Predicates {
		sql, err := c.predicate(sub)
		if err != nil {
			return "", err
		}
		if sql != "1 = 1" {
			parts = append(parts, sql)
		}
	}
	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), nil
}

func (c *compiler) orderBy(sorts []Sort) (string, error) {
	parts := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		col, ok := c.table.Column(s.Field)
		if !ok || col.Kind == KindJSON {
			return "", model.Validation("sort", "cannot sort %s by %q", c.table.Name, s.Field)
		}
		expr := col.Name
		switch col.Kind {
		case KindDecimal:
			expr = "CAST(" + expr + " AS REAL)"
		case KindText:
			expr += " COLLATE BINARY"
		}
		if s.Desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		parts = append(parts, expr)
	}
	parts = append(parts, insertionOrder)
	return strings.Join(parts, ", "), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// convert turns a filter literal into the SQL parameter for col.
func convert(col Column, v any) (any, error) {
	field := "filters." + col.Name
	if v == nil {
		return nil, model.Validation(field, "null literal; use is_null")
	}
	switch col.Kind {
	case KindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindDecimal:
		switch n := v.(type) {
		case decimal.Decimal:
			return n.String(), nil
		case string:
			d, err := decimal.NewFromString(n)
			if err == nil {
				return d.String(), nil
			}
		case json.Number:
			d, err := decimal.NewFromString(n.String())
			if err == nil {
				return d.String(), nil
			}
		case float64:
			return decimal.NewFromFloat(n).String(), nil
		case int:
			return decimal.NewFromInt(int64(n)).String(), nil
		case int64:
			return decimal.NewFromInt(n).String(), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case json.Number:
			i, err := n.Int64()
			if err == nil {
				return i, nil
			}
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return model.FormatTime(t), nil
		case string:
			parsed, err := model.ParseDate(t)
			if err == nil {
				return model.FormatTime(parsed), nil
			}
		}
	}
	return nil, model.Validation(field, "%T literal does not fit column %s", v, col.Name)
}
