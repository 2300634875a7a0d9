package engine

import (
	"context"
	"strings"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
	"github.com/hera-erp/hera/internal/store"
)

type organizationInput struct {
	ID       string          `json:"id"`
	Name     *string         `json:"organization_name"`
	Code     string          `json:"organization_code"`
	Type     *string         `json:"organization_type"`
	Settings *model.Metadata `json:"settings"`
}

func (e *Engine) createOrganization(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in organizationInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	name := model.NormalizeText(pick(in.Name, ""))
	code := strings.ToUpper(model.NormalizeText(in.Code))
	if err := required("organization_name", name); err != nil {
		return outcome{}, err
	}
	if err := required("organization_code", code); err != nil {
		return outcome{}, err
	}
	id := in.ID
	if id == "" {
		id = e.ids.Generate()
	}
	org := &model.Organization{
		ID:        id,
		Name:      name,
		Code:      code,
		Type:      pick(in.Type, "business"),
		Status:    model.StatusActive,
		Settings:  pick(in.Settings, nil),
		CreatedAt: c.now,
		UpdatedAt: c.now,
	}
	if err := st.CreateOrganization(ctx, org); err != nil {
		return outcome{}, err
	}
	return outcome{data: org}, nil
}

// targetOrganization resolves which organization a by-id call addresses.
// Tenants only see themselves; the system tenant sees every organization.
// A foreign id is reported as not found so its existence never leaks.
func (e *Engine) targetOrganization(ctx context.Context, st *store.Store, c *call) (*model.Organization, error) {
	id := c.id
	if id == "" {
		id = c.org
	}
	if id != c.org && !e.isSystem(c.org) {
		return nil, model.NotFound("organization", id)
	}
	return st.GetOrganization(ctx, id)
}

func (e *Engine) readOrganization(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	org, err := e.targetOrganization(ctx, st, c)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: org}, nil
}

func (e *Engine) updateOrganization(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in organizationInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	org, err := e.targetOrganization(ctx, st, c)
	if err != nil {
		return outcome{}, err
	}
	if in.Code != "" && strings.ToUpper(in.Code) != org.Code {
		return outcome{}, model.Validation("organization_code", "organization codes cannot change")
	}
	if org.Status != model.StatusActive {
		return outcome{}, model.Conflict("status", "organization is %s", org.Status)
	}
	if in.Name != nil {
		name := model.NormalizeText(*in.Name)
		if err := required("organization_name", name); err != nil {
			return outcome{}, err
		}
		org.Name = name
	}
	org.Type = pick(in.Type, org.Type)
	org.Settings = pick(in.Settings, org.Settings)
	org.UpdatedAt = c.now
	if err := st.UpdateOrganization(ctx, org); err != nil {
		return outcome{}, err
	}
	return outcome{data: org}, nil
}

func (e *Engine) archiveOrganization(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	org, err := e.targetOrganization(ctx, st, c)
	if err != nil {
		return outcome{}, err
	}
	if e.isSystem(org.ID) {
		return outcome{}, model.Validation("id", "the system organization cannot be archived")
	}
	if org.Status == model.StatusArchived {
		return outcome{data: org}, nil
	}
	if err := st.ArchiveOrganization(ctx, org.ID, c.now); err != nil {
		return outcome{}, err
	}
	org, err = st.GetOrganization(ctx, org.ID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: org}, nil
}

func (e *Engine) deleteOrganization(context.Context, *store.Store, *call) (outcome, error) {
	return outcome{}, model.Validation("operation", "organizations are archived, never deleted")
}

// queryOrganizations lists the caller's own organization, or every
// organization when the caller is the system tenant.
func (e *Engine) queryOrganizations(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	sel, err := buildSelect(c, query.TableOrganizations)
	if err != nil {
		return outcome{}, err
	}
	sel.Registry = e.isSystem(c.org)
	rows, err := st.QueryOrganizations(ctx, sel)
	if err != nil {
		return outcome{}, err
	}
	return rowsOutcome(ctx, st, c, sel, rows)
}
