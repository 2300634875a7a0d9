package engine

import (
	"context"
	"strings"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
	"github.com/hera-erp/hera/internal/store"
)

// SystemProviderType is the entity type of provider registrations checked
// by integration-level governance.
const SystemProviderType = "system_provider"

type entityInput struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityCode *string         `json:"entity_code"`
	EntityName *string         `json:"entity_name"`
	SmartCode  string          `json:"smart_code"`
	Status     *string         `json:"status"`
	Metadata   *model.Metadata `json:"metadata"`
}

func (e *Engine) createEntity(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in entityInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	ent, err := e.insertEntity(ctx, st, c, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: ent}, nil
}

// insertEntity validates and writes one entity. Shared by create and
// create_complete.
func (e *Engine) insertEntity(ctx context.Context, st *store.Store, c *call, in entityInput) (*model.Entity, error) {
	in.EntityType = strings.TrimSpace(in.EntityType)
	name := model.NormalizeText(pick(in.EntityName, ""))
	code := model.NormalizeText(pick(in.EntityCode, ""))
	if err := required("entity_type", in.EntityType); err != nil {
		return nil, err
	}
	if err := required("entity_name", name); err != nil {
		return nil, err
	}
	status := pick(in.Status, model.StatusActive)
	if status != model.StatusActive && status != model.StatusArchived {
		return nil, model.Validation("status", "entity status must be active or archived, got %q", status)
	}

	rule := e.catalog.EntityType(in.EntityType)
	if rule.CodePrefix != "" && !strings.HasPrefix(code, rule.CodePrefix) {
		return nil, model.Validation("entity_code", "%s codes must start with %q", in.EntityType, rule.CodePrefix)
	}
	if in.EntityType == SystemProviderType {
		if !e.isSystem(c.org) {
			return nil, model.TenantIsolation("only the system organization may register providers")
		}
		if code == "" {
			return nil, model.Validation("entity_code", "providers are registered by entity_code")
		}
	}

	smartCode := c.smartCode
	if in.SmartCode != "" {
		smartCode = in.SmartCode
	}
	if err := e.govern(ctx, st, c, "smart_code", smartCode, rule.SmartCodeLevel); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = e.ids.Generate()
	}
	ent := &model.Entity{
		ID:             id,
		OrganizationID: c.org,
		EntityType:     in.EntityType,
		EntityCode:     code,
		EntityName:     name,
		SmartCode:      smartCode,
		Status:         status,
		Metadata:       pick(in.Metadata, nil),
		Audit:          model.Audit{CreatedBy: c.actor, CreatedAt: c.now, UpdatedBy: c.actor, UpdatedAt: c.now},
	}
	if err := st.InsertEntity(ctx, ent); err != nil {
		return nil, err
	}
	if ent.EntityType == SystemProviderType {
		c.fx.purge = true
	}
	return ent, nil
}

func (e *Engine) readEntity(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "entity")
	if err != nil {
		return outcome{}, err
	}
	if c.options.IncludeRelated {
		complete, err := e.completeEntity(ctx, st, c.org, id)
		if err != nil {
			return outcome{}, err
		}
		return outcome{data: complete}, nil
	}
	ent, err := st.GetEntity(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: ent}, nil
}

func (e *Engine) updateEntity(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in entityInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	id, err := idFrom(c, "entity")
	if err != nil {
		return outcome{}, err
	}
	ent, err := st.GetEntity(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	if err := immutableCode(c.payload, ent.SmartCode); err != nil {
		return outcome{}, err
	}
	if in.EntityType != "" && in.EntityType != ent.EntityType {
		return outcome{}, model.Validation("entity_type", "entity_type cannot change")
	}
	if in.EntityName != nil {
		name := model.NormalizeText(*in.EntityName)
		if err := required("entity_name", name); err != nil {
			return outcome{}, err
		}
		ent.EntityName = name
	}
	if in.EntityCode != nil {
		code := model.NormalizeText(*in.EntityCode)
		rule := e.catalog.EntityType(ent.EntityType)
		if rule.CodePrefix != "" && !strings.HasPrefix(code, rule.CodePrefix) {
			return outcome{}, model.Validation("entity_code", "%s codes must start with %q", ent.EntityType, rule.CodePrefix)
		}
		ent.EntityCode = code
	}
	if in.Status != nil {
		if *in.Status != model.StatusActive && *in.Status != model.StatusArchived {
			return outcome{}, model.Validation("status", "entity status must be active or archived; use delete to remove")
		}
		ent.Status = *in.Status
	}
	ent.Metadata = pick(in.Metadata, ent.Metadata)
	ent.UpdatedBy = c.actor
	ent.UpdatedAt = c.now
	if err := st.UpdateEntity(ctx, ent); err != nil {
		return outcome{}, err
	}
	if ent.EntityType == SystemProviderType {
		c.fx.purge = true
	}
	return outcome{data: ent}, nil
}

func (e *Engine) archiveEntity(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "entity")
	if err != nil {
		return outcome{}, err
	}
	ent, err := st.GetEntity(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	if ent.Status == model.StatusArchived {
		return outcome{data: ent}, nil
	}
	ent.Status = model.StatusArchived
	ent.UpdatedBy = c.actor
	ent.UpdatedAt = c.now
	if err := st.UpdateEntity(ctx, ent); err != nil {
		return outcome{}, err
	}
	if ent.EntityType == SystemProviderType {
		c.fx.purge = true
	}
	return outcome{data: ent}, nil
}

// deleteEntity tombstones an entity and removes its dynamic fields.
//
// With cascade "forbid" (the default) an entity still referenced by an
// active relationship or a live transaction or line is a conflict. With
// cascade "archive" its relationships are closed and archived first;
// transaction references still block the delete.
func (e *Engine) deleteEntity(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "entity")
	if err != nil {
		return outcome{}, err
	}
	cascade := c.options.Cascade
	if cascade == "" {
		cascade = CascadeForbid
	}
	if cascade != CascadeForbid && cascade != CascadeArchive {
		return outcome{}, model.Validation("options.cascade", "cascade must be %q or %q", CascadeForbid, CascadeArchive)
	}
	ent, err := st.GetEntity(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	refs, err := st.EntityReferences(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	blocked := refs.Transactions > 0 || refs.Lines > 0
	if cascade == CascadeForbid {
		blocked = refs.Any()
	}
	if blocked {
		return outcome{}, model.Conflict("id", "entity %s is still referenced", id).
			WithDetail("active_relationships", refs.ActiveRelationships).
			WithDetail("transactions", refs.Transactions).
			WithDetail("lines", refs.Lines).
			WithDetail("cascade", cascade)
	}
	if cascade == CascadeArchive {
		if _, err := st.CloseRelationshipsOf(ctx, c.org, id, c.actor, c.now); err != nil {
			return outcome{}, err
		}
	}
	if _, err := st.DeleteFields(ctx, c.org, id); err != nil {
		return outcome{}, err
	}
	if err := st.TombstoneEntity(ctx, c.org, id, c.actor, c.now); err != nil {
		return outcome{}, err
	}
	if ent.EntityType == SystemProviderType {
		c.fx.purge = true
	}
	c.fx.touched[touchedKey(ent.SmartCode, c.org)] = true
	ent.Status = model.StatusDeleted
	ent.DeletedAt = &c.now
	ent.UpdatedBy = c.actor
	ent.UpdatedAt = c.now
	return outcome{data: ent}, nil
}

// queryEntities excludes tombstones unless the filters ask about status or
// deleted_at explicitly.
func (e *Engine) queryEntities(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var extra []query.Predicate
	if !mentions(c.options.Filters, "status", "deleted_at") {
		extra = append(extra, query.IsNull{Field: "deleted_at"})
	}
	sel, err := buildSelect(c, query.TableEntities, extra...)
	if err != nil {
		return outcome{}, err
	}
	rows, err := st.QueryEntities(ctx, sel)
	if err != nil {
		return outcome{}, err
	}
	return rowsOutcome(ctx, st, c, sel, rows)
}
