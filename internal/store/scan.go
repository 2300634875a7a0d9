package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: model.FormatTime(*t), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) (time.Time, error) {
	t, err := model.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// auditCols receives the four audit columns.
type auditCols struct {
	createdBy, createdAt, updatedBy, updatedAt string
}

func (c *auditCols) dest() []any {
	return []any{&c.createdBy, &c.createdAt, &c.updatedBy, &c.updatedAt}
}

func (c *auditCols) audit() (model.Audit, error) {
	created, err := parseTime(c.createdAt)
	if err != nil {
		return model.Audit{}, err
	}
	updated, err := parseTime(c.updatedAt)
	if err != nil {
		return model.Audit{}, err
	}
	return model.Audit{CreatedBy: c.createdBy, CreatedAt: created, UpdatedBy: c.updatedBy, UpdatedAt: updated}, nil
}

// selectColumns returns the column list of a table for hand-written SQL.
func selectColumns(table string) string {
	t, _ := query.Lookup(table)
	return strings.Join(t.ColumnNames(), ", ")
}

// collect runs a query and scans every row with fn. Rows are fully read and
// closed before returning so the single connection is free for the next
// statement.
func collect[T any](ctx context.Context, q querier, op string, scan func(scanner) (T, error), sqlText string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Count runs the COUNT(*) form of sel.
func (s *Store) Count(ctx context.Context, sel query.Select) (int, error) {
	sqlText, args, err := query.CompileCount(sel)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.q.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", sel.Table, err)
	}
	return n, nil
}

// compileFull compiles sel with the table's full column list so the row
// scanners line up.
func compileFull(sel query.Select, table string) (string, []any, error) {
	sel.Table = table
	sel.Columns = nil
	return query.Compile(sel)
}
