package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
)

// InsertLine writes one transaction line. line_number is unique within its
// transaction.
func (s *Store) InsertLine(ctx context.Context, l *model.TransactionLine) error {
	meta, err := model.EncodeMetadata(l.Metadata)
	if err != nil {
		return fmt.Errorf("insert line: encode metadata: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO transaction_lines
		(id, organization_id, transaction_id, line_number, line_type, entity_id, description,
		 quantity, unit_amount, line_amount, amount_override, smart_code, metadata,
		 created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID,
		l.OrganizationID,
		l.TransactionID,
		l.LineNumber,
		l.LineType,
		nullString(l.EntityID),
		l.Description,
		l.Quantity.String(),
		l.UnitAmount.String(),
		l.LineAmount.String(),
		boolInt(l.AmountOverride),
		l.SmartCode,
		meta,
		l.CreatedBy,
		model.FormatTime(l.CreatedAt),
		l.UpdatedBy,
		model.FormatTime(l.UpdatedAt),
	)
	return translate(err, "insert line", "line_number")
}

// UpdateLine rewrites the mutable columns of a line.
func (s *Store) UpdateLine(ctx context.Context, l *model.TransactionLine) error {
	meta, err := model.EncodeMetadata(l.Metadata)
	if err != nil {
		return fmt.Errorf("update line: encode metadata: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE transaction_lines
		SET line_number = ?, line_type = ?, entity_id = ?, description = ?, quantity = ?, unit_amount = ?,
		    line_amount = ?, amount_override = ?, metadata = ?, updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?
	`,
		l.LineNumber,
		l.LineType,
		nullString(l.EntityID),
		l.Description,
		l.Quantity.String(),
		l.UnitAmount.String(),
		l.LineAmount.String(),
		boolInt(l.AmountOverride),
		meta,
		l.UpdatedBy,
		model.FormatTime(l.UpdatedAt),
		l.OrganizationID,
		l.ID,
	)
	if err != nil {
		return translate(err, "update line", "line_number")
	}
	return requireAffected(res, "transaction_line", l.ID)
}

// DeleteLine removes one line.
func (s *Store) DeleteLine(ctx context.Context, org, id string) error {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM transaction_lines WHERE organization_id = ? AND id = ?
	`, org, id)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	return requireAffected(res, "transaction_line", id)
}

// GetLine reads one line of org.
func (s *Store) GetLine(ctx context.Context, org, id string) (*model.TransactionLine, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+selectColumns(query.TableTransactionLines)+`
		FROM transaction_lines
		WHERE organization_id = ? AND id = ?
	`, org, id)
	l, err := scanLine(row)
	if err != nil {
		return nil, notFoundIfNoRows(err, "transaction_line", id, "get line")
	}
	return &l, nil
}

// GetLines returns the lines of a transaction ordered by line number.
func (s *Store) GetLines(ctx context.Context, org, transactionID string) ([]model.TransactionLine, error) {
	return collect(ctx, s.q, "get lines", scanLine, "SELECT "+selectColumns(query.TableTransactionLines)+`
		FROM transaction_lines
		WHERE organization_id = ? AND transaction_id = ?
		ORDER BY line_number ASC
	`, org, transactionID)
}

// NextLineNumber returns one past the highest line number of a transaction.
func (s *Store) NextLineNumber(ctx context.Context, org, transactionID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(line_number), 0) + 1
		FROM transaction_lines
		WHERE organization_id = ? AND transaction_id = ?
	`, org, transactionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next line number: %w", err)
	}
	return n, nil
}

// QueryLines runs a tenant-scoped select over transaction lines.
func (s *Store) QueryLines(ctx context.Context, sel query.Select) ([]model.TransactionLine, error) {
	sqlText, args, err := compileFull(sel, query.TableTransactionLines)
	if err != nil {
		return nil, err
	}
	return collect(ctx, s.q, "query lines", scanLine, sqlText, args...)
}

func scanLine(sc scanner) (model.TransactionLine, error) {
	var (
		l                 model.TransactionLine
		entityID          sql.NullString
		qty, unit, amount string
		override          int
		meta              string
		a                 auditCols
	)
	dest := append([]any{&l.ID, &l.OrganizationID, &l.TransactionID, &l.LineNumber, &l.LineType, &entityID,
		&l.Description, &qty, &unit, &amount, &override, &l.SmartCode, &meta}, a.dest()...)
	if err := sc.Scan(dest...); err != nil {
		return l, err
	}
	l.EntityID = entityID.String
	l.AmountOverride = override == 1
	var err error
	if l.Quantity, err = parseDecimal(qty); err != nil {
		return l, err
	}
	if l.UnitAmount, err = parseDecimal(unit); err != nil {
		return l, err
	}
	if l.LineAmount, err = parseDecimal(amount); err != nil {
		return l, err
	}
	if l.Metadata, err = model.DecodeMetadata(meta); err != nil {
		return l, fmt.Errorf("decode metadata: %w", err)
	}
	if l.Audit, err = a.audit(); err != nil {
		return l, err
	}
	return l, nil
}
