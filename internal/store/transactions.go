package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

// InsertTransaction writes a transaction header. Lines are written
// separately with InsertLine inside the same InTx unit.
func (s *Store) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	meta, err := model.EncodeMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("insert transaction: encode metadata: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, organization_id, transaction_type, transaction_code, transaction_date, source_entity_id, target_entity_id,
		 total_amount, auto_total, currency, status, smart_code, metadata, archived,
		 created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.OrganizationID,
		t.TransactionType,
		t.TransactionCode,
		model.FormatTime(t.TransactionDate),
		nullString(t.SourceEntityID),
		nullString(t.TargetEntityID),
		t.TotalAmount.String(),
		boolInt(t.AutoTotal),
		t.Currency,
		t.Status,
		t.SmartCode,
		meta,
		boolInt(t.Archived),
		t.CreatedBy,
		model.FormatTime(t.CreatedAt),
		t.UpdatedBy,
		model.FormatTime(t.UpdatedAt),
	)
	return translate(err, "insert transaction", "transaction_code")
}

// GetTransaction reads a live transaction header of org without its lines.
func (s *Store) GetTransaction(ctx context.Context, org, id string) (*model.Transaction, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+selectColumns(query.TableTransactions)+`
		FROM transactions
		WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
	`, org, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "transaction", id, "get transaction")
	}
	return &t, nil
}

// UpdateTransaction rewrites every mutable header column: code, date,
// references, totals, currency, status, metadata and the archive flag.
func (s *Store) UpdateTransaction(ctx context.Context, t *model.Transaction) error {
	meta, err := model.EncodeMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("update transaction: encode metadata: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET transaction_code = ?, transaction_date = ?, source_entity_id = ?, target_entity_id = ?,
		    total_amount = ?, auto_total = ?, currency = ?, status = ?, metadata = ?, archived = ?,
		    updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
	`,
		t.TransactionCode,
		model.FormatTime(t.TransactionDate),
		nullString(t.SourceEntityID),
		nullString(t.TargetEntityID),
		t.TotalAmount.String(),
		boolInt(t.AutoTotal),
		t.Currency,
		t.Status,
		meta,
		boolInt(t.Archived),
		t.UpdatedBy,
		model.FormatTime(t.UpdatedAt),
		t.OrganizationID,
		t.ID,
	)
	if err != nil {
		return translate(err, "update transaction", "transaction_code")
	}
	return requireAffected(res, "transaction", t.ID)
}

// TombstoneTransaction marks a transaction deleted and removes its lines.
func (s *Store) TombstoneTransaction(ctx context.Context, org, id, by string, at time.Time) error {
	if _, err := s.q.ExecContext(ctx, `
		DELETE FROM transaction_lines WHERE organization_id = ? AND transaction_id = ?
	`, org, id); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	ts := model.FormatTime(at)
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET deleted_at = ?, updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
	`, ts, by, ts, org, id)
	if err != nil {
		return fmt.Errorf("tombstone transaction: %w", err)
	}
	return requireAffected(res, "transaction", id)
}

// QueryTransactions runs a tenant-scoped select over transaction headers.
func (s *Store) QueryTransactions(ctx context.Context, sel query.Select) ([]model.Transaction, error) {
	sqlText, args, err := compileFull(sel, query.TableTransactions)
	if err != nil {
		return nil, err
	}
	return collect(ctx, s.q, "query transactions", scanTransaction, sqlText, args...)
}

func scanTransaction(sc scanner) (model.Transaction, error) {
	var (
		t                  model.Transaction
		date, total        string
		source, target     sql.NullString
		autoTotal, archive int
		meta               string
		deletedAt          sql.NullString
		a                  auditCols
	)
	dest := append([]any{&t.ID, &t.OrganizationID, &t.TransactionType, &t.TransactionCode, &date,
		&source, &target, &total, &autoTotal, &t.Currency, &t.Status, &t.SmartCode, &meta, &archive,
		&deletedAt}, a.dest()...)
	if err := sc.Scan(dest...); err != nil {
		return t, err
	}
	t.SourceEntityID = source.String
	t.TargetEntityID = target.String
	t.AutoTotal = autoTotal == 1
	t.Archived = archive == 1
	var err error
	if t.TransactionDate, err = parseTime(date); err != nil {
		return t, err
	}
	if t.TotalAmount, err = parseDecimal(total); err != nil {
		return t, err
	}
	if t.Metadata, err = model.DecodeMetadata(meta); err != nil {
		return t, fmt.Errorf("decode metadata: %w", err)
	}
	if t.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return t, err
	}
	if t.Audit, err = a.audit(); err != nil {
		return t, err
	}
	return t, nil
}
