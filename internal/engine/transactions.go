package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hera-erp/hera/internal/catalog"
	"github.com/hera-erp/hera/internal/lifecycle"
	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
	"github.com/hera-erp/hera/internal/store"
)

type transactionInput struct {
	ID              string           `json:"id"`
	TransactionType string           `json:"transaction_type"`
	TransactionCode *string          `json:"transaction_code"`
	TransactionDate *string          `json:"transaction_date"`
	SourceEntityID  *string          `json:"source_entity_id"`
	TargetEntityID  *string          `json:"target_entity_id"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	AutoTotal       *bool            `json:"auto_total"`
	Currency        *string          `json:"currency"`
	Status          *string          `json:"status"`
	SmartCode       string           `json:"smart_code"`
	Metadata        *model.Metadata  `json:"metadata"`
	Archived        *bool            `json:"archived"`
	Lines           []lineInput      `json:"lines"`
}

// createTransaction validates the header and its lines and writes them as
// one unit. Without an explicit total_amount the total is computed from
// the lines and kept in step with later line changes.
func (e *Engine) createTransaction(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in transactionInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	code := model.NormalizeText(pick(in.TransactionCode, ""))
	if err := required("transaction_type", in.TransactionType); err != nil {
		return outcome{}, err
	}
	if err := required("transaction_code", code); err != nil {
		return outcome{}, err
	}
	initial := string(e.machine.Initial())
	if in.Status != nil && *in.Status != initial {
		return outcome{}, model.Validation("status", "transactions start in %s; use transition to change status", initial)
	}
	date, err := parseDate("transaction_date", pick(in.TransactionDate, ""), c.now)
	if err != nil {
		return outcome{}, err
	}

	rule := e.catalog.TransactionType(in.TransactionType)
	smartCode := c.smartCode
	if in.SmartCode != "" {
		smartCode = in.SmartCode
	}
	if err := e.govern(ctx, st, c, "smart_code", smartCode, rule.SmartCodeLevel); err != nil {
		return outcome{}, err
	}

	source, target := pick(in.SourceEntityID, ""), pick(in.TargetEntityID, "")
	if err := st.EntitiesExist(ctx, c.org, source, target); err != nil {
		return outcome{}, err
	}

	id := in.ID
	if id == "" {
		id = e.ids.Generate()
	}
	tx := &model.Transaction{
		ID:              id,
		OrganizationID:  c.org,
		TransactionType: in.TransactionType,
		TransactionCode: code,
		TransactionDate: date,
		SourceEntityID:  source,
		TargetEntityID:  target,
		AutoTotal:       in.TotalAmount == nil,
		Currency:        pick(in.Currency, ""),
		Status:          initial,
		SmartCode:       smartCode,
		Metadata:        pick(in.Metadata, nil),
		Archived:        pick(in.Archived, false),
		Audit:           model.Audit{CreatedBy: c.actor, CreatedAt: c.now, UpdatedBy: c.actor, UpdatedAt: c.now},
	}

	next := 1
	governed := map[string]bool{}
	for i, li := range in.Lines {
		if li.LineNumber == nil {
			n := next
			li.LineNumber = &n
		}
		if *li.LineNumber >= next {
			next = *li.LineNumber + 1
		}
		line, err := e.buildLine(ctx, st, c, tx, li, governed)
		if err != nil {
			return outcome{}, prefixField(err, "lines", i)
		}
		tx.Lines = append(tx.Lines, *line)
	}

	sum := lineTotal(tx.Lines, rule)
	if tx.AutoTotal {
		tx.TotalAmount = sum
	} else {
		tx.TotalAmount = *in.TotalAmount
	}
	if err := checkAmounts(tx, rule, len(tx.Lines) > 0); err != nil {
		return outcome{}, err
	}

	if err := st.InsertTransaction(ctx, tx); err != nil {
		return outcome{}, err
	}
	for i := range tx.Lines {
		if err := st.InsertLine(ctx, &tx.Lines[i]); err != nil {
			return outcome{}, prefixField(err, "lines", i)
		}
	}
	return outcome{data: tx}, nil
}

// checkAmounts enforces the catalog rules of the transaction type once the
// lines are known: manual totals must reconcile and balanced types must
// balance.
func checkAmounts(tx *model.Transaction, rule catalog.TransactionTypeRule, haveLines bool) error {
	if !haveLines {
		return nil
	}
	if rule.Balanced {
		if err := lifecycle.CheckBalanced(tx.Lines); err != nil {
			return err
		}
	}
	if rule.ReconcileTotal && !tx.AutoTotal {
		sum := lineTotal(tx.Lines, rule)
		if !sum.Equal(tx.TotalAmount) {
			return model.Integrity(nil, "total_amount %s does not reconcile with line total %s", tx.TotalAmount, sum).
				WithDetail("total_amount", tx.TotalAmount.String()).
				WithDetail("line_total", sum.String())
		}
	}
	return nil
}

// lineTotal is the value of the lines: the debit side for balanced types,
// the sum of every line otherwise.
func lineTotal(lines []model.TransactionLine, rule catalog.TransactionTypeRule) decimal.Decimal {
	if rule.Balanced {
		debits, _ := lifecycle.Totals(lines)
		return debits
	}
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineAmount)
	}
	return sum
}

// loadTransaction reads a live transaction with its lines.
func loadTransaction(ctx context.Context, st *store.Store, org, id string) (*model.Transaction, error) {
	tx, err := st.GetTransaction(ctx, org, id)
	if err != nil {
		return nil, err
	}
	lines, err := st.GetLines(ctx, org, id)
	if err != nil {
		return nil, err
	}
	tx.Lines = lines
	return tx, nil
}

func (e *Engine) readTransaction(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "transaction")
	if err != nil {
		return outcome{}, err
	}
	tx, err := loadTransaction(ctx, st, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: tx}, nil
}

// updateTransaction changes header fields. Status moves only through
// transition; the archive flag may change in any status, everything else
// only while the lifecycle marks the status editable.
func (e *Engine) updateTransaction(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in transactionInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	id, err := idFrom(c, "transaction")
	if err != nil {
		return outcome{}, err
	}
	tx, err := loadTransaction(ctx, st, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	if err := immutableCode(c.payload, tx.SmartCode); err != nil {
		return outcome{}, err
	}
	if in.Status != nil && *in.Status != tx.Status {
		return outcome{}, model.Validation("status", "status changes go through the transition operation")
	}
	if in.TransactionType != "" && in.TransactionType != tx.TransactionType {
		return outcome{}, model.Validation("transaction_type", "transaction_type cannot change")
	}
	if len(in.Lines) > 0 {
		return outcome{}, model.Validation("lines", "lines are changed through the transaction_line store")
	}

	headerChange := in.TransactionCode != nil || in.TransactionDate != nil || in.SourceEntityID != nil ||
		in.TargetEntityID != nil || in.TotalAmount != nil || in.AutoTotal != nil || in.Currency != nil ||
		in.Metadata != nil
	if headerChange && !e.machine.Editable(lifecycle.State(tx.Status)) {
		return outcome{}, model.Conflict("status", "transaction in status %s cannot be edited", tx.Status).
			WithDetail("status", tx.Status)
	}

	if in.TransactionCode != nil {
		code := model.NormalizeText(*in.TransactionCode)
		if err := required("transaction_code", code); err != nil {
			return outcome{}, err
		}
		tx.TransactionCode = code
	}
	if in.TransactionDate != nil {
		if tx.TransactionDate, err = parseDate("transaction_date", *in.TransactionDate, tx.TransactionDate); err != nil {
			return outcome{}, err
		}
	}
	tx.SourceEntityID = pick(in.SourceEntityID, tx.SourceEntityID)
	tx.TargetEntityID = pick(in.TargetEntityID, tx.TargetEntityID)
	if err := st.EntitiesExist(ctx, c.org, tx.SourceEntityID, tx.TargetEntityID); err != nil {
		return outcome{}, err
	}
	tx.Currency = pick(in.Currency, tx.Currency)
	tx.Metadata = pick(in.Metadata, tx.Metadata)
	tx.Archived = pick(in.Archived, tx.Archived)

	rule := e.catalog.TransactionType(tx.TransactionType)
	switch {
	case in.TotalAmount != nil:
		tx.AutoTotal = false
		tx.TotalAmount = *in.TotalAmount
	case in.AutoTotal != nil:
		tx.AutoTotal = *in.AutoTotal
	}
	if tx.AutoTotal {
		tx.TotalAmount = lineTotal(tx.Lines, rule)
	}
	if err := checkAmounts(tx, rule, len(tx.Lines) > 0); err != nil {
		return outcome{}, err
	}

	tx.UpdatedBy = c.actor
	tx.UpdatedAt = c.now
	if err := st.UpdateTransaction(ctx, tx); err != nil {
		return outcome{}, err
	}
	return outcome{data: tx}, nil
}

type transitionInput struct {
	Status string `json:"status"`
}

// transitionTransaction moves a transaction along one lifecycle edge. An
// illegal move is a conflict listing the allowed next states.
func (e *Engine) transitionTransaction(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in transitionInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	if err := required("status", in.Status); err != nil {
		return outcome{}, err
	}
	id, err := idFrom(c, "transaction")
	if err != nil {
		return outcome{}, err
	}
	tx, err := loadTransaction(ctx, st, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	rule := e.catalog.TransactionType(tx.TransactionType)
	subj := lifecycle.Subject{Transaction: tx, Balanced: rule.Balanced}
	if err := e.machine.Transition(lifecycle.State(tx.Status), lifecycle.State(in.Status), subj); err != nil {
		return outcome{}, err
	}
	tx.Status = in.Status
	tx.UpdatedBy = c.actor
	tx.UpdatedAt = c.now
	if err := st.UpdateTransaction(ctx, tx); err != nil {
		return outcome{}, err
	}
	return outcome{data: tx}, nil
}

// archiveTransaction sets the reversible archive flag.
func (e *Engine) archiveTransaction(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "transaction")
	if err != nil {
		return outcome{}, err
	}
	tx, err := loadTransaction(ctx, st, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	if tx.Archived {
		return outcome{data: tx}, nil
	}
	tx.Archived = true
	tx.UpdatedBy = c.actor
	tx.UpdatedAt = c.now
	if err := st.UpdateTransaction(ctx, tx); err != nil {
		return outcome{}, err
	}
	return outcome{data: tx}, nil
}

// deleteTransaction tombstones a transaction in a deletable status and
// removes its lines.
func (e *Engine) deleteTransaction(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "transaction")
	if err != nil {
		return outcome{}, err
	}
	tx, err := loadTransaction(ctx, st, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	if !e.machine.Deletable(lifecycle.State(tx.Status)) {
		return outcome{}, model.Conflict("status", "transaction in status %s cannot be deleted; cancel it first", tx.Status).
			WithDetail("status", tx.Status)
	}
	if err := st.TombstoneTransaction(ctx, c.org, id, c.actor, c.now); err != nil {
		return outcome{}, err
	}
	c.fx.touched[touchedKey(tx.SmartCode, c.org)] = true
	for _, l := range tx.Lines {
		c.fx.touched[touchedKey(l.SmartCode, c.org)] = true
	}
	tx.DeletedAt = &c.now
	tx.Lines = nil
	return outcome{data: tx}, nil
}

func (e *Engine) queryTransactions(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var extra []query.Predicate
	if !mentions(c.options.Filters, "deleted_at") {
		extra = append(extra, query.IsNull{Field: "deleted_at"})
	}
	sel, err := buildSelect(c, query.TableTransactions, extra...)
	if err != nil {
		return outcome{}, err
	}
	rows, err := st.QueryTransactions(ctx, sel)
	if err != nil {
		return outcome{}, err
	}
	if c.options.IncludeRelated {
		for i := range rows {
			if rows[i].Lines, err = st.GetLines(ctx, c.org, rows[i].ID); err != nil {
				return outcome{}, err
			}
		}
	}
	return rowsOutcome(ctx, st, c, sel, rows)
}
