package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

// InsertRelationship writes a new edge. A second active edge in an
// exclusive slot, or a duplicate active edge, is rejected by the unique
// indexes and surfaces as a conflict.
func (s *Store) InsertRelationship(ctx context.Context, r *model.Relationship) error {
	data, err := model.EncodeMetadata(r.RelationshipData)
	if err != nil {
		return fmt.Errorf("insert relationship: encode data: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO relationships
		(id, organization_id, from_entity_id, to_entity_id, relationship_type, smart_code, relationship_data,
		 status, is_active, is_exclusive, started_at, ended_at, created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.OrganizationID,
		r.FromEntityID,
		r.ToEntityID,
		r.RelationshipType,
		r.SmartCode,
		data,
		r.Status,
		boolInt(r.IsActive),
		boolInt(r.IsExclusive),
		model.FormatTime(r.StartedAt),
		nullTime(r.EndedAt),
		r.CreatedBy,
		model.FormatTime(r.CreatedAt),
		r.UpdatedBy,
		model.FormatTime(r.UpdatedAt),
	)
	return translate(err, "insert relationship", "relationship_type")
}

// GetRelationship reads one edge of org.
func (s *Store) GetRelationship(ctx context.Context, org, id string) (*model.Relationship, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+selectColumns(query.TableRelationships)+`
		FROM relationships
		WHERE organization_id = ? AND id = ?
	`, org, id)
	r, err := scanRelationship(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "relationship", id, "get relationship")
	}
	return &r, nil
}

// UpdateRelationshipData rewrites the payload of an edge.
func (s *Store) UpdateRelationshipData(ctx context.Context, r *model.Relationship) error {
	data, err := model.EncodeMetadata(r.RelationshipData)
	if err != nil {
		return fmt.Errorf("update relationship: encode data: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE relationships
		SET relationship_data = ?, updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?
	`, data, r.UpdatedBy, model.FormatTime(r.UpdatedAt), r.OrganizationID, r.ID)
	if err != nil {
		return fmt.Errorf("update relationship: %w", err)
	}
	return requireAffected(res, "relationship", r.ID)
}

// CloseRelationship deactivates an active edge and stamps ended_at. With
// archive the edge is also archived.
func (s *Store) CloseRelationship(ctx context.Context, org, id, by string, at time.Time, archive bool) error {
	ts := model.FormatTime(at)
	status := model.StatusActive
	if archive {
		status = model.StatusArchived
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE relationships
		SET is_active = 0, ended_at = COALESCE(ended_at, ?), status = ?, updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?
	`, ts, status, by, ts, org, id)
	if err != nil {
		return fmt.Errorf("close relationship: %w", err)
	}
	return requireAffected(res, "relationship", id)
}

// CloseRelationshipsOf archives every active edge touching an entity and
// returns how many were closed.
func (s *Store) CloseRelationshipsOf(ctx context.Context, org, entityID, by string, at time.Time) (int64, error) {
	ts := model.FormatTime(at)
	res, err := s.q.ExecContext(ctx, `
		UPDATE relationships
		SET is_active = 0, ended_at = ?, status = 'archived', updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND is_active = 1 AND (from_entity_id = ? OR to_entity_id = ?)
	`, ts, by, ts, org, entityID, entityID)
	if err != nil {
		return 0, fmt.Errorf("close relationships: %w", err)
	}
	return res.RowsAffected()
}

// ActiveInSlot returns the active edge of relType leaving from, or nil.
func (s *Store) ActiveInSlot(ctx context.Context, org, from, relType string) (*model.Relationship, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+selectColumns(query.TableRelationships)+`
		FROM relationships
		WHERE organization_id = ? AND from_entity_id = ? AND relationship_type = ? AND is_active = 1
		ORDER BY rowid ASC
		LIMIT 1
	`, org, from, relType)
	r, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active relationship: %w", err)
	}
	return &r, nil
}

// ActiveRelationships returns the active edges leaving and entering an entity.
func (s *Store) ActiveRelationships(ctx context.Context, org, entityID string) (out, in []model.Relationship, err error) {
	cols := selectColumns(query.TableRelationships)
	out, err = collect(ctx, s.q, "outgoing relationships", scanRelationship, "SELECT "+cols+`
		FROM relationships
		WHERE organization_id = ? AND from_entity_id = ? AND is_active = 1
		ORDER BY rowid ASC
	`, org, entityID)
	if err != nil {
		return nil, nil, err
	}
	in, err = collect(ctx, s.q, "incoming relationships", scanRelationship, "SELECT "+cols+`
		FROM relationships
		WHERE organization_id = ? AND to_entity_id = ? AND is_active = 1
		ORDER BY rowid ASC
	`, org, entityID)
	if err != nil {
		return nil, nil, err
	}
	return out, in, nil
}

// QueryRelationships runs a tenant-scoped select over relationships.
func (s *Store) QueryRelationships(ctx context.Context, sel query.Select) ([]model.Relationship, error) {
	sqlText, args, err := compileFull(sel, query.TableRelationships)
	if err != nil {
		return nil, err
	}
	return collect(ctx, s.q, "query relationships", scanRelationship, sqlText, args...)
}

func scanRelationship(sc scanner) (model.Relationship, error) {
	var (
		r         model.Relationship
		data      string
		active    int
		exclusive int
		startedAt string
		endedAt   sql.NullString
		a         auditCols
	)
	dest := append([]any{&r.ID, &r.OrganizationID, &r.FromEntityID, &r.ToEntityID, &r.RelationshipType,
		&r.SmartCode, &data, &r.Status, &active, &exclusive, &startedAt, &endedAt}, a.dest()...)
	if err := sc.Scan(dest...); err != nil {
		return r, err
	}
	r.IsActive = active == 1
	r.IsExclusive = exclusive == 1
	var err error
	if r.RelationshipData, err = model.DecodeMetadata(data); err != nil {
		return r, fmt.Errorf("decode relationship data: %w", err)
	}
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return r, err
	}
	if r.EndedAt, err = parseNullTime(endedAt); err != nil {
		return r, err
	}
	if r.Audit, err = a.audit(); err != nil {
		return r, err
	}
	return r, nil
}
