package engine

import (
	"context"

	"github.com/hera-erp/hera/internal/model"
)

// resolveTenant enforces tenant isolation before any store logic runs.
//
//   - an empty organization id is a validation error
//   - an unknown organization is not found
//   - an archived organization is a tenant isolation failure, except for
//     reading its own organization record
//   - only the system tenant may create organizations
func (e *Engine) resolveTenant(ctx context.Context, req *Request) error {
	if req.OrganizationID == "" {
		return model.Validation("organization_id", "organization_id is required")
	}
	org, err := e.store.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return err
	}
	if org.Status != model.StatusActive {
		if req.Store == StoreOrganization && req.Operation == OpRead {
			return nil
		}
		return model.TenantIsolation("organization is %s", org.Status)
	}
	if req.Store == StoreOrganization && req.Operation == OpCreate && !e.isSystem(req.OrganizationID) {
		return model.TenantIsolation("only the system organization may create organizations")
	}
	return nil
}

// checkPayloadTenant rejects a payload that names another organization.
func checkPayloadTenant(org string, payload map[string]any) error {
	v, ok := payload["organization_id"]
	if !ok || v == nil {
		return nil
	}
	if s, _ := v.(string); s != org {
		return model.TenantIsolation("payload organization_id does not match the request scope")
	}
	return nil
}

func (e *Engine) isSystem(org string) bool {
	return org == e.store.SystemOrganizationID()
}

