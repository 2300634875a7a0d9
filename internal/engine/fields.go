package engine

import (
	"context"
	"strings"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
	"github.com/hera-erp/hera/internal/store"
)

type fieldInput struct {
	ID        string          `json:"id"`
	EntityID  string          `json:"entity_id"`
	FieldName string          `json:"field_name"`
	FieldType model.FieldType `json:"field_type"`
	Value     any             `json:"value"`
	SmartCode string          `json:"smart_code"`
}

// upsertField writes one dynamic field. An existing field of the same name
// on the entity is replaced, keeping its id and creation stamp.
func (e *Engine) upsertField(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in fieldInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	if in.EntityID == "" {
		in.EntityID = c.parentID
	}
	f, err := e.writeField(ctx, st, c, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: f}, nil
}

func (e *Engine) writeField(ctx context.Context, st *store.Store, c *call, in fieldInput) (*model.DynamicField, error) {
	name := strings.TrimSpace(in.FieldName)
	if err := required("entity_id", in.EntityID); err != nil {
		return nil, err
	}
	if err := required("field_name", name); err != nil {
		return nil, err
	}
	v, err := model.ParseValue(in.FieldType, in.Value)
	if err != nil {
		return nil, err
	}
	if err := st.EntitiesExist(ctx, c.org, in.EntityID); err != nil {
		return nil, err
	}
	smartCode := c.smartCode
	if in.SmartCode != "" {
		smartCode = in.SmartCode
	}
	if err := e.govern(ctx, st, c, "smart_code", smartCode, 0); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = e.ids.Generate()
	}
	f := &model.DynamicField{
		ID:             id,
		OrganizationID: c.org,
		EntityID:       in.EntityID,
		FieldName:      name,
		FieldType:      in.FieldType,
		Value:          v,
		SmartCode:      smartCode,
		Audit:          model.Audit{CreatedBy: c.actor, CreatedAt: c.now, UpdatedBy: c.actor, UpdatedAt: c.now},
	}
	if err := st.UpsertField(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// readFields returns one field by id, or the whole field set of the entity
// named by parent_id merged into a plain map.
func (e *Engine) readFields(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	if c.id != "" {
		f, err := st.GetField(ctx, c.org, c.id)
		if err != nil {
			return outcome{}, err
		}
		return outcome{data: f}, nil
	}
	entityID := c.parentID
	if entityID == "" {
		entityID, _ = c.payload["entity_id"].(string)
	}
	if entityID == "" {
		return outcome{}, model.Validation("parent_id", "id or parent_id (entity) is required")
	}
	if err := st.EntitiesExist(ctx, c.org, entityID); err != nil {
		return outcome{}, err
	}
	fields, err := st.GetFields(ctx, c.org, entityID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: fieldMap(fields), meta: &Meta{Count: len(fields)}}, nil
}

func fieldMap(fields []model.DynamicField) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.FieldName] = f.Value.Native()
	}
	return m
}

// updateField replaces the value of an existing field found by id, or by
// entity and field_name. The field type is kept unless a new one is given.
func (e *Engine) updateField(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in fieldInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	existing, err := e.findField(ctx, st, c, in)
	if err != nil {
		return outcome{}, err
	}
	if err := immutableCode(c.payload, existing.SmartCode); err != nil {
		return outcome{}, err
	}
	ft := existing.FieldType
	if in.FieldType != "" {
		ft = in.FieldType
	}
	v, err := model.ParseValue(ft, in.Value)
	if err != nil {
		return outcome{}, err
	}
	existing.FieldType = ft
	existing.Value = v
	existing.UpdatedBy = c.actor
	existing.UpdatedAt = c.now
	if err := st.UpsertField(ctx, existing); err != nil {
		return outcome{}, err
	}
	c.fx.touched[touchedKey(existing.SmartCode, c.org)] = true
	return outcome{data: existing}, nil
}

func (e *Engine) findField(ctx context.Context, st *store.Store, c *call, in fieldInput) (*model.DynamicField, error) {
	id := c.id
	if id == "" {
		id = in.ID
	}
	if id != "" {
		return st.GetField(ctx, c.org, id)
	}
	entityID := in.EntityID
	if entityID == "" {
		entityID = c.parentID
	}
	if entityID == "" || in.FieldName == "" {
		return nil, model.Validation("id", "id, or entity_id with field_name, is required for %s", c.op)
	}
	fields, err := st.QueryFields(ctx, query.Select{
		OrganizationID: c.org,
		Filter: query.And{Predicates: []query.Predicate{
			query.Eq("entity_id", entityID),
			query.Eq("field_name", in.FieldName),
		}},
	})
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, model.NotFound("dynamic_data", entityID+"/"+in.FieldName)
	}
	return &fields[0], nil
}

func (e *Engine) deleteField(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in fieldInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	f, err := e.findField(ctx, st, c, in)
	if err != nil {
		return outcome{}, err
	}
	if err := st.DeleteFieldByID(ctx, c.org, f.ID); err != nil {
		return outcome{}, err
	}
	c.fx.touched[touchedKey(f.SmartCode, c.org)] = true
	return outcome{data: f}, nil
}

func (e *Engine) queryFields(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var extra []query.Predicate
	if c.parentID != "" {
		extra = append(extra, query.Eq("entity_id", c.parentID))
	}
	sel, err := buildSelect(c, query.TableDynamicData, extra...)
	if err != nil {
		return outcome{}, err
	}
	rows, err := st.QueryFields(ctx, sel)
	if err != nil {
		return outcome{}, err
	}
	return rowsOutcome(ctx, st, c, sel, rows)
}
