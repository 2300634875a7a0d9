package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hera-erp/hera/internal/lifecycle"
	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
	"github.com/hera-erp/hera/internal/store"
)

type lineInput struct {
	ID             string           `json:"id"`
	TransactionID  string           `json:"transaction_id"`
	LineNumber     *int             `json:"line_number"`
	LineType       *string          `json:"line_type"`
	EntityID       *string          `json:"entity_id"`
	Description    *string          `json:"description"`
	Quantity       *decimal.Decimal `json:"quantity"`
	UnitAmount     *decimal.Decimal `json:"unit_amount"`
	LineAmount     *decimal.Decimal `json:"line_amount"`
	AmountOverride *bool            `json:"amount_override"`
	SmartCode      string           `json:"smart_code"`
	Metadata       *model.Metadata  `json:"metadata"`
}

var one = decimal.NewFromInt(1)

// buildLine validates one new line of tx. Quantity defaults to one and
// line_amount to quantity × unit_amount; an explicit line_amount that
// differs needs amount_override. The smart code defaults to the header's.
// governed tracks codes already validated within the same request.
func (e *Engine) buildLine(ctx context.Context, st *store.Store, c *call, tx *model.Transaction, in lineInput, governed map[string]bool) (*model.TransactionLine, error) {
	if in.LineNumber == nil || *in.LineNumber < 1 {
		return nil, model.Validation("line_number", "line_number must be a positive integer")
	}
	if in.TransactionID != "" && in.TransactionID != tx.ID {
		return nil, model.Validation("transaction_id", "line belongs to transaction %s, not %s", in.TransactionID, tx.ID)
	}
	line := &model.TransactionLine{
		OrganizationID: c.org,
		TransactionID:  tx.ID,
		LineNumber:     *in.LineNumber,
		LineType:       pick(in.LineType, ""),
		EntityID:       pick(in.EntityID, ""),
		Description:    pick(in.Description, ""),
		Quantity:       pick(in.Quantity, one),
		UnitAmount:     pick(in.UnitAmount, decimal.Zero),
		AmountOverride: pick(in.AmountOverride, false),
		SmartCode:      in.SmartCode,
		Metadata:       pick(in.Metadata, nil),
		Audit:          model.Audit{CreatedBy: c.actor, CreatedAt: c.now, UpdatedBy: c.actor, UpdatedAt: c.now},
	}
	line.ID = in.ID
	if line.ID == "" {
		line.ID = e.ids.Generate()
	}
	if line.SmartCode == "" {
		line.SmartCode = tx.SmartCode
	}
	if err := settleAmount(line, in.LineAmount); err != nil {
		return nil, err
	}
	if err := st.EntitiesExist(ctx, c.org, line.EntityID); err != nil {
		return nil, err
	}
	if !governed[line.SmartCode] {
		if err := e.govern(ctx, st, c, "smart_code", line.SmartCode, 0); err != nil {
			return nil, err
		}
		governed[line.SmartCode] = true
	}
	return line, nil
}

// settleAmount derives line_amount from quantity and unit_amount, or
// checks an explicit amount against them.
func settleAmount(line *model.TransactionLine, explicit *decimal.Decimal) error {
	computed := line.Quantity.Mul(line.UnitAmount)
	switch {
	case explicit == nil && line.AmountOverride:
		return model.Validation("line_amount", "amount_override requires line_amount")
	case explicit == nil:
		line.LineAmount = computed
	case line.AmountOverride || explicit.Equal(computed):
		line.LineAmount = *explicit
	default:
		return model.Integrity(nil, "line_amount %s differs from quantity × unit_amount = %s", explicit, computed).
			WithDetail("line_amount", explicit.String()).
			WithDetail("computed", computed.String())
	}
	return nil
}

// editableParent loads the header of a line operation and refuses changes
// once the lifecycle has frozen it.
func (e *Engine) editableParent(ctx context.Context, st *store.Store, c *call, txID string) (*model.Transaction, error) {
	tx, err := loadTransaction(ctx, st, c.org, txID)
	if err != nil {
		return nil, err
	}
	if !e.machine.Editable(lifecycle.State(tx.Status)) {
		return nil, model.Conflict("status", "lines of a transaction in status %s cannot change", tx.Status).
			WithDetail("status", tx.Status).
			WithDetail("transaction_id", tx.ID)
	}
	return tx, nil
}

// resettle recomputes the header after a line change: an auto total
// follows the lines, a manual one must still reconcile.
func (e *Engine) resettle(ctx context.Context, st *store.Store, c *call, tx *model.Transaction) error {
	lines, err := st.GetLines(ctx, c.org, tx.ID)
	if err != nil {
		return err
	}
	tx.Lines = lines
	rule := e.catalog.TransactionType(tx.TransactionType)
	if tx.AutoTotal {
		tx.TotalAmount = lineTotal(lines, rule)
	} else if rule.ReconcileTotal && len(lines) > 0 {
		if sum := lineTotal(lines, rule); !sum.Equal(tx.TotalAmount) {
			return model.Integrity(nil, "total_amount %s does not reconcile with line total %s", tx.TotalAmount, sum).
				WithDetail("total_amount", tx.TotalAmount.String()).
				WithDetail("line_total", sum.String())
		}
	}
	tx.UpdatedBy = c.actor
	tx.UpdatedAt = c.now
	return st.UpdateTransaction(ctx, tx)
}

func lineParent(c *call, in lineInput) (string, error) {
	switch {
	case in.TransactionID != "":
		return in.TransactionID, nil
	case c.parentID != "":
		return c.parentID, nil
	}
	return "", model.Validation("transaction_id", "transaction_id (or parent_id) is required")
}

func (e *Engine) createLine(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in lineInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	txID, err := lineParent(c, in)
	if err != nil {
		return outcome{}, err
	}
	tx, err := e.editableParent(ctx, st, c, txID)
	if err != nil {
		return outcome{}, err
	}
	if in.LineNumber == nil {
		n, err := st.NextLineNumber(ctx, c.org, tx.ID)
		if err != nil {
			return outcome{}, err
		}
		in.LineNumber = &n
	}
	if in.SmartCode == "" {
		in.SmartCode = c.smartCode
	}
	line, err := e.buildLine(ctx, st, c, tx, in, map[string]bool{})
	if err != nil {
		return outcome{}, err
	}
	if err := st.InsertLine(ctx, line); err != nil {
		return outcome{}, err
	}
	if err := e.resettle(ctx, st, c, tx); err != nil {
		return outcome{}, err
	}
	return outcome{data: line}, nil
}

// readLine returns one line by id, or every line of the parent
// transaction in line_number order.
func (e *Engine) readLine(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id := c.id
	if id == "" {
		id, _ = c.payload["id"].(string)
	}
	if id != "" {
		line, err := st.GetLine(ctx, c.org, id)
		if err != nil {
			return outcome{}, err
		}
		return outcome{data: line}, nil
	}
	txID, _ := c.payload["transaction_id"].(string)
	txID, err := lineParent(c, lineInput{TransactionID: txID})
	if err != nil {
		return outcome{}, err
	}
	if _, err := st.GetTransaction(ctx, c.org, txID); err != nil {
		return outcome{}, err
	}
	lines, err := st.GetLines(ctx, c.org, txID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{rows: anyRows(lines), meta: &Meta{Count: len(lines)}}, nil
}

func (e *Engine) updateLine(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in lineInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	id, err := idFrom(c, "transaction line")
	if err != nil {
		return outcome{}, err
	}
	line, err := st.GetLine(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	if err := immutableCode(c.payload, line.SmartCode); err != nil {
		return outcome{}, err
	}
	if in.TransactionID != "" && in.TransactionID != line.TransactionID {
		return outcome{}, model.Validation("transaction_id", "lines cannot move between transactions")
	}
	tx, err := e.editableParent(ctx, st, c, line.TransactionID)
	if err != nil {
		return outcome{}, err
	}

	if in.LineNumber != nil {
		if *in.LineNumber < 1 {
			return outcome{}, model.Validation("line_number", "line_number must be a positive integer")
		}
		line.LineNumber = *in.LineNumber
	}
	line.LineType = pick(in.LineType, line.LineType)
	line.EntityID = pick(in.EntityID, line.EntityID)
	line.Description = pick(in.Description, line.Description)
	line.Quantity = pick(in.Quantity, line.Quantity)
	line.UnitAmount = pick(in.UnitAmount, line.UnitAmount)
	line.AmountOverride = pick(in.AmountOverride, line.AmountOverride)
	line.Metadata = pick(in.Metadata, line.Metadata)
	if err := st.EntitiesExist(ctx, c.org, line.EntityID); err != nil {
		return outcome{}, err
	}

	explicit := in.LineAmount
	if explicit == nil && line.AmountOverride {
		explicit = &line.LineAmount
	}
	if err := settleAmount(line, explicit); err != nil {
		return outcome{}, err
	}

	line.UpdatedBy = c.actor
	line.UpdatedAt = c.now
	if err := st.UpdateLine(ctx, line); err != nil {
		return outcome{}, err
	}
	if err := e.resettle(ctx, st, c, tx); err != nil {
		return outcome{}, err
	}
	return outcome{data: line}, nil
}

func (e *Engine) deleteLine(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "transaction line")
	if err != nil {
		return outcome{}, err
	}
	line, err := st.GetLine(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	tx, err := e.editableParent(ctx, st, c, line.TransactionID)
	if err != nil {
		return outcome{}, err
	}
	if err := st.DeleteLine(ctx, c.org, id); err != nil {
		return outcome{}, err
	}
	if err := e.resettle(ctx, st, c, tx); err != nil {
		return outcome{}, err
	}
	c.fx.touched[touchedKey(line.SmartCode, c.org)] = true
	return outcome{data: line}, nil
}

func (e *Engine) queryLines(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var extra []query.Predicate
	if c.parentID != "" {
		extra = append(extra, query.Eq("transaction_id", c.parentID))
	}
	sel, err := buildSelect(c, query.TableTransactionLines, extra...)
	if err != nil {
		return outcome{}, err
	}
	if len(sel.Sort) == 0 {
		sel.Sort = []query.Sort{{Field: "transaction_id"}, {Field: "line_number"}}
	}
	rows, err := st.QueryLines(ctx, sel)
	if err != nil {
		return outcome{}, err
	}
	return rowsOutcome(ctx, st, c, sel, rows)
}
