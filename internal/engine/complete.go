package engine

import (
	"context"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/store"
)

type completeInput struct {
	entityInput
	DynamicFields []fieldInput         `json:"dynamic_fields"`
	Relationships []relationshipInput `json:"relationships"`
}

// createCompleteEntity writes an entity, its dynamic fields and its
// relationships in the caller's transaction; any failure undoes all of
// it. A relationship that names neither end defaults its from side to the
// new entity, one that names only from_entity_id points at it.
func (e *Engine) createCompleteEntity(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in completeInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	rule := e.catalog.EntityType(in.EntityType)
	given := make(map[string]bool, len(in.DynamicFields))
	for _, f := range in.DynamicFields {
		given[f.FieldName] = true
	}
	for _, name := range rule.RequiredFields {
		if !given[name] {
			return outcome{}, model.Validation("dynamic_fields."+name, "%s requires dynamic field %q", in.EntityType, name)
		}
	}

	ent, err := e.insertEntity(ctx, st, c, in.entityInput)
	if err != nil {
		return outcome{}, err
	}
	for i, f := range in.DynamicFields {
		if f.EntityID != "" && f.EntityID != ent.ID {
			return outcome{}, prefixField(model.Validation("entity_id", "dynamic fields attach to the new entity"), "dynamic_fields", i)
		}
		f.EntityID = ent.ID
		if _, err := e.writeField(ctx, st, c, f); err != nil {
			return outcome{}, prefixField(err, "dynamic_fields", i)
		}
	}
	for i, r := range in.Relationships {
		switch {
		case r.FromEntityID == "":
			r.FromEntityID = ent.ID
		case r.ToEntityID == "":
			r.ToEntityID = ent.ID
		}
		if r.FromEntityID != ent.ID && r.ToEntityID != ent.ID {
			return outcome{}, prefixField(model.Validation("from_entity_id", "relationship must touch the new entity"), "relationships", i)
		}
		if _, err := e.insertRelationship(ctx, st, c, r); err != nil {
			return outcome{}, prefixField(err, "relationships", i)
		}
	}

	complete, err := e.completeEntity(ctx, st, c.org, ent.ID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: complete}, nil
}

// completeEntity reassembles an entity with its fields and its active
// relationships in both directions.
func (e *Engine) completeEntity(ctx context.Context, st *store.Store, org, id string) (*model.CompleteEntity, error) {
	ent, err := st.GetEntity(ctx, org, id)
	if err != nil {
		return nil, err
	}
	fields, err := st.GetFields(ctx, org, id)
	if err != nil {
		return nil, err
	}
	out, in, err := st.ActiveRelationships(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Relationship{}
	}
	if in == nil {
		in = []model.Relationship{}
	}
	return &model.CompleteEntity{
		Entity:       *ent,
		Fields:       fieldMap(fields),
		Outgoing:     out,
		Incoming:     in,
		FieldRecords: fields,
	}, nil
}
