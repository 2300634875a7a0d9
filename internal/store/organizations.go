package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

// CreateOrganization inserts a tenant. Codes are globally unique.
func (s *Store) CreateOrganization(ctx context.Context, org *model.Organization) error {
	settings, err := model.EncodeMetadata(org.Settings)
	if err != nil {
		return fmt.Errorf("create organization: encode settings: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO organizations
		(id, organization_name, organization_code, organization_type, status, settings, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		org.ID,
		org.Name,
		org.Code,
		org.Type,
		org.Status,
		settings,
		model.FormatTime(org.CreatedAt),
		model.FormatTime(org.UpdatedAt),
		nullTime(org.ArchivedAt),
	)
	return translate(err, "create organization", "organization_code")
}

// GetOrganization reads a tenant by id, archived or not.
func (s *Store) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+selectColumns(query.TableOrganizations)+" FROM organizations WHERE id = ?", id)
	org, err := scanOrganization(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "organization", id, "get organization")
	}
	return &org, nil
}

// UpdateOrganization rewrites the mutable fields of a tenant.
func (s *Store) UpdateOrganization(ctx context.Context, org *model.Organization) error {
	settings, err := model.EncodeMetadata(org.Settings)
	if err != nil {
		return fmt.Errorf("update organization: encode settings: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE organizations
		SET organization_name = ?, organization_type = ?, settings = ?, updated_at = ?
		WHERE id = ?
	`, org.Name, org.Type, settings, model.FormatTime(org.UpdatedAt), org.ID)
	if err != nil {
		return translate(err, "update organization", "organization")
	}
	return requireAffected(res, "organization", org.ID)
}

// ArchiveOrganization deactivates a tenant. Organizations are never deleted.
func (s *Store) ArchiveOrganization(ctx context.Context, id string, at time.Time) error {
	ts := model.FormatTime(at)
	res, err := s.q.ExecContext(ctx, `
		UPDATE organizations
		SET status = 'archived', archived_at = ?, updated_at = ?
		WHERE id = ? AND status = 'active'
	`, ts, ts, id)
	if err != nil {
		return fmt.Errorf("archive organization: %w", err)
	}
	return requireAffected(res, "organization", id)
}

// QueryOrganizations runs a tenant-scoped select over organizations. The
// tenant predicate on this table is the organization's own id.
func (s *Store) QueryOrganizations(ctx context.Context, sel query.Select) ([]model.Organization, error) {
	sqlText, args, err := compileFull(sel, query.TableOrganizations)
	if err != nil {
		return nil, err
	}
	return collect(ctx, s.q, "query organizations", scanOrganization, sqlText, args...)
}

func scanOrganization(sc scanner) (model.Organization, error) {
	var (
		org                  model.Organization
		settings             string
		createdAt, updatedAt string
		archivedAt           sql.NullString
	)
	err := sc.Scan(&org.ID, &org.Name, &org.Code, &org.Type, &org.Status, &settings,
		&createdAt, &updatedAt, &archivedAt)
	if err != nil {
		return org, err
	}
	if org.Settings, err = model.DecodeMetadata(settings); err != nil {
		return org, fmt.Errorf("decode settings: %w", err)
	}
	if org.CreatedAt, err = parseTime(createdAt); err != nil {
		return org, err
	}
	if org.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return org, err
	}
	if org.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return org, err
	}
	return org, nil
}
