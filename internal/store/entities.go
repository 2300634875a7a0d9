package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

// InsertEntity writes a new entity. (organization_id, entity_type,
// entity_code) is unique among live entities; a clash is a conflict.
func (s *Store) InsertEntity(ctx context.Context, e *model.Entity) error {
	meta, err := model.EncodeMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("insert entity: encode metadata: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO entities
		(id, organization_id, entity_type, entity_code, entity_name, smart_code, status, metadata, search_key,
		 created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.OrganizationID,
		e.EntityType,
		nullString(e.EntityCode),
		e.EntityName,
		e.SmartCode,
		e.Status,
		meta,
		model.SearchKey(e.EntityName, e.EntityCode),
		e.CreatedBy,
		model.FormatTime(e.CreatedAt),
		e.UpdatedBy,
		model.FormatTime(e.UpdatedAt),
	)
	return translate(err, "insert entity", "entity_code")
}

// GetEntity reads a live (not tombstoned) entity of org.
func (s *Store) GetEntity(ctx context.Context, org, id string) (*model.Entity, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+selectColumns(query.TableEntities)+`
		FROM entities
		WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
	`, org, id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "entity", id, "get entity")
	}
	return &e, nil
}

// FindEntityByCode reads a live entity by its business key.
func (s *Store) FindEntityByCode(ctx context.Context, org, entityType, code string) (*model.Entity, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+selectColumns(query.TableEntities)+`
		FROM entities
		WHERE organization_id = ? AND entity_type = ? AND entity_code = ? AND deleted_at IS NULL
	`, org, entityType, code)
	e, err := scanEntity(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "entity", code, "find entity")
	}
	return &e, nil
}

// UpdateEntity rewrites the mutable columns of a live entity. The smart
// code is not among them.
func (s *Store) UpdateEntity(ctx context.Context, e *model.Entity) error {
	meta, err := model.EncodeMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("update entity: encode metadata: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE entities
		SET entity_code = ?, entity_name = ?, status = ?, metadata = ?, search_key = ?, updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
	`,
		nullString(e.EntityCode),
		e.EntityName,
		e.Status,
		meta,
		model.SearchKey(e.EntityName, e.EntityCode),
		e.UpdatedBy,
		model.FormatTime(e.UpdatedAt),
		e.OrganizationID,
		e.ID,
	)
	if err != nil {
		return translate(err, "update entity", "entity_code")
	}
	return requireAffected(res, "entity", e.ID)
}

// TombstoneEntity marks an entity deleted. The row stays so historic
// references remain resolvable, and its code is released.
func (s *Store) TombstoneEntity(ctx context.Context, org, id, by string, at time.Time) error {
	ts := model.FormatTime(at)
	res, err := s.q.ExecContext(ctx, `
		UPDATE entities
		SET status = 'deleted', deleted_at = ?, updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
	`, ts, by, ts, org, id)
	if err != nil {
		return fmt.Errorf("tombstone entity: %w", err)
	}
	return requireAffected(res, "entity", id)
}

// EntityRefs counts what still points at an entity.
type EntityRefs struct {
	ActiveRelationships int
	Transactions        int
	Lines               int
}

// Any reports whether anything references the entity.
func (r EntityRefs) Any() bool {
	return r.ActiveRelationships > 0 || r.Transactions > 0 || r.Lines > 0
}

// EntityReferences counts active relationships touching the entity and
// live transactions or lines naming it.
func (s *Store) EntityReferences(ctx context.Context, org, id string) (EntityRefs, error) {
	var refs EntityRefs
	err := s.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM relationships
			 WHERE organization_id = ?1 AND is_active = 1 AND (from_entity_id = ?2 OR to_entity_id = ?2)),
			(SELECT COUNT(*) FROM transactions
			 WHERE organization_id = ?1 AND deleted_at IS NULL AND (source_entity_id = ?2 OR target_entity_id = ?2)),
			(SELECT COUNT(*) FROM transaction_lines l
			 JOIN transactions t ON t.id = l.transaction_id
			 WHERE l.organization_id = ?1 AND l.entity_id = ?2 AND t.deleted_at IS NULL)
	`, org, id).Scan(&refs.ActiveRelationships, &refs.Transactions, &refs.Lines)
	if err != nil {
		return refs, fmt.Errorf("entity references: %w", err)
	}
	return refs, nil
}

// EntitiesExist reports whether every id names a live entity of org.
func (s *Store) EntitiesExist(ctx context.Context, org string, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		var one int
		err := s.q.QueryRowContext(ctx, `
			SELECT 1 FROM entities WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
		`, org, id).Scan(&one)
		if err != nil {
			return notFoundIfNoRows(err, "entity", id, "check entity")
		}
	}
	return nil
}

// QueryEntities runs a tenant-scoped select over entities.
func (s *Store) QueryEntities(ctx context.Context, sel query.Select) ([]model.Entity, error) {
	sqlText, args, err := compileFull(sel, query.TableEntities)
	if err != nil {
		return nil, err
	}
	return collect(ctx, s.q, "query entities", scanEntity, sqlText, args...)
}

func scanEntity(sc scanner) (model.Entity, error) {
	var (
		e         model.Entity
		code      sql.NullString
		meta      string
		deletedAt sql.NullString
		a         auditCols
	)
	dest := append([]any{&e.ID, &e.OrganizationID, &e.EntityType, &code, &e.EntityName, &e.SmartCode,
		&e.Status, &meta, &deletedAt}, a.dest()...)
	if err := sc.Scan(dest...); err != nil {
		return e, err
	}
	e.EntityCode = code.String
	var err error
	if e.Metadata, err = model.DecodeMetadata(meta); err != nil {
		return e, fmt.Errorf("decode metadata: %w", err)
	}
	if e.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return e, err
	}
	if e.Audit, err = a.audit(); err != nil {
		return e, err
	}
	return e, nil
}
