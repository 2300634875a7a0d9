package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

// UpsertField writes one dynamic field, replacing any existing value of the
// same (organization, entity, field_name). The typed column is chosen from
// f.Value; the previous column is cleared. On return f carries the stored
// id and creation stamps.
func (s *Store) UpsertField(ctx context.Context, f *model.DynamicField) error {
	if f.Value == nil {
		return model.Validation("value", "field %q has no value", f.FieldName)
	}
	if f.Value.Type() != f.FieldType {
		return model.Validation("field_type", "field %q declared %s but holds %s", f.FieldName, f.FieldType, f.Value.Type())
	}
	c := model.Columns(f.Value)
	var boolCol sql.NullInt64
	if c.Boolean != nil {
		boolCol = sql.NullInt64{Int64: int64(boolInt(*c.Boolean)), Valid: true}
	}

	var createdAt string
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO dynamic_data
		(id, organization_id, entity_id, field_name, field_type,
		 field_value_text, field_value_number, field_value_boolean, field_value_json, field_value_date,
		 smart_code, created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, entity_id, field_name) DO UPDATE SET
			field_type = excluded.field_type,
			field_value_text = excluded.field_value_text,
			field_value_number = excluded.field_value_number,
			field_value_boolean = excluded.field_value_boolean,
			field_value_json = excluded.field_value_json,
			field_value_date = excluded.field_value_date,
			smart_code = excluded.smart_code,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
		RETURNING id, created_by, created_at
	`,
		f.ID,
		f.OrganizationID,
		f.EntityID,
		f.FieldName,
		string(f.FieldType),
		c.Text,
		c.Number,
		boolCol,
		c.JSON,
		c.Date,
		f.SmartCode,
		f.CreatedBy,
		model.FormatTime(f.CreatedAt),
		f.UpdatedBy,
		model.FormatTime(f.UpdatedAt),
	).Scan(&f.ID, &f.CreatedBy, &createdAt)
	if err != nil {
		return translate(err, "upsert field", "field_name")
	}
	f.CreatedAt, err = parseTime(createdAt)
	return err
}

// GetFields returns every dynamic field of an entity ordered by name.
func (s *Store) GetFields(ctx context.Context, org, entityID string) ([]model.DynamicField, error) {
	return collect(ctx, s.q, "get fields", scanField, "SELECT "+selectColumns(query.TableDynamicData)+`
		FROM dynamic_data
		WHERE organization_id = ? AND entity_id = ?
		ORDER BY field_name COLLATE BINARY ASC
	`, org, entityID)
}

// GetField reads one dynamic field row by id.
func (s *Store) GetField(ctx context.Context, org, id string) (*model.DynamicField, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+selectColumns(query.TableDynamicData)+`
		FROM dynamic_data
		WHERE organization_id = ? AND id = ?
	`, org, id)
	f, err := scanField(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "dynamic_data", id, "get field")
	}
	return &f, nil
}

// DeleteField removes one field of an entity.
func (s *Store) DeleteField(ctx context.Context, org, entityID, name string) error {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM dynamic_data WHERE organization_id = ? AND entity_id = ? AND field_name = ?
	`, org, entityID, name)
	if err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	return requireAffected(res, "dynamic_data", name)
}

// DeleteFieldByID removes one field row by id.
func (s *Store) DeleteFieldByID(ctx context.Context, org, id string) error {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM dynamic_data WHERE organization_id = ? AND id = ?
	`, org, id)
	if err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	return requireAffected(res, "dynamic_data", id)
}

// DeleteFields removes every field of an entity and returns how many went.
func (s *Store) DeleteFields(ctx context.Context, org, entityID string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM dynamic_data WHERE organization_id = ? AND entity_id = ?
	`, org, entityID)
	if err != nil {
		return 0, fmt.Errorf("delete fields: %w", err)
	}
	return res.RowsAffected()
}

// QueryFields runs a tenant-scoped select over dynamic_data.
func (s *Store) QueryFields(ctx context.Context, sel query.Select) ([]model.DynamicField, error) {
	sqlText, args, err := compileFull(sel, query.TableDynamicData)
	if err != nil {
		return nil, err
	}
	return collect(ctx, s.q, "query fields", scanField, sqlText, args...)
}

func scanField(sc scanner) (model.DynamicField, error) {
	var (
		f         model.DynamicField
		fieldType string
		c         model.ValueColumns
		text      sql.NullString
		number    sql.NullString
		boolean   sql.NullInt64
		jsonDoc   sql.NullString
		date      sql.NullString
		a         auditCols
	)
	dest := append([]any{&f.ID, &f.OrganizationID, &f.EntityID, &f.FieldName, &fieldType,
		&text, &number, &boolean, &jsonDoc, &date, &f.SmartCode}, a.dest()...)
	if err := sc.Scan(dest...); err != nil {
		return f, err
	}
	if text.Valid {
		c.Text = &text.String
	}
	if number.Valid {
		c.Number = &number.String
	}
	if boolean.Valid {
		b := boolean.Int64 == 1
		c.Boolean = &b
	}
	if jsonDoc.Valid {
		c.JSON = &jsonDoc.String
	}
	if date.Valid {
		c.Date = &date.String
	}
	f.FieldType = model.FieldType(fieldType)
	v, err := model.ValueFromColumns(f.FieldType, c)
	if err != nil {
		return f, fmt.Errorf("field %q: %w", f.FieldName, err)
	}
	f.Value = v
	if f.Audit, err = a.audit(); err != nil {
		return f, err
	}
	return f, nil
}
