package engine

import (
	"context"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/store"
)

// DefaultMaxBatchItems caps the items of one bulk call.
const DefaultMaxBatchItems = 1000

// BatchQuota counts the items of one bulk call against a limit.
//
// The limit is checked before the first item runs, so an oversized batch
// never opens a transaction.
type BatchQuota struct {
	maxItems int
	current  int
}

// NewBatchQuota creates a quota allowing maxItems items. Zero or a
// negative limit means DefaultMaxBatchItems.
func NewBatchQuota(maxItems int) *BatchQuota {
	if maxItems <= 0 {
		maxItems = DefaultMaxBatchItems
	}
	return &BatchQuota{maxItems: maxItems}
}

// Reserve claims n items. It fails without changing the count when the
// limit would be exceeded.
func (q *BatchQuota) Reserve(n int) error {
	if q.current+n > q.maxItems {
		return model.Validation("batch.items", "batch of %d items exceeds the limit of %d", q.current+n, q.maxItems).
			WithDetail("limit", q.maxItems).
			WithDetail("items", q.current+n)
	}
	q.current += n
	return nil
}

// Current returns the number of reserved items.
func (q *BatchQuota) Current() int {
	return q.current
}

// MaxItems returns the limit.
func (q *BatchQuota) MaxItems() int {
	return q.maxItems
}

// bulk runs every item of a batch through the create or update handler of
// the store inside one transaction. The first failing item rolls the
// whole batch back and is reported by index.
func (e *Engine) bulk(ctx context.Context, req *Request, handlers map[Operation]handler, fx *effects) (outcome, error) {
	op := OpCreate
	if req.Operation == OpBulkUpdate {
		op = OpUpdate
	}
	h, ok := handlers[op]
	if !ok {
		return outcome{}, unsupported(req.Store, req.Operation)
	}
	if req.Batch == nil || len(req.Batch.Items) == 0 {
		return outcome{}, model.Validation("batch.items", "%s requires at least one item", req.Operation)
	}
	switch req.Batch.Atomicity {
	case "", AtomicityAllOrNone:
	default:
		return outcome{}, model.Validation("batch.atomicity", "unsupported atomicity %q; only %s is supported", req.Batch.Atomicity, AtomicityAllOrNone)
	}
	if err := NewBatchQuota(e.maxBatch).Reserve(len(req.Batch.Items)); err != nil {
		return outcome{}, err
	}

	for i, item := range req.Batch.Items {
		if err := checkPayloadTenant(req.OrganizationID, item); err != nil {
			return outcome{}, prefixField(err, "items", i)
		}
	}

	rows := make([]any, 0, len(req.Batch.Items))
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		for i, item := range req.Batch.Items {
			id, _ := item["id"].(string)
			c := e.newCall(req, op, id, req.SmartCode, item, fx)
			out, err := h(e, ctx, tx, c)
			if err != nil {
				return NewItemError(i, err)
			}
			rows = append(rows, out.data)
		}
		return nil
	})
	if err != nil {
		// Nothing committed; drop what the items collected.
		fx.touched = map[string]bool{}
		fx.purge = false
		return outcome{}, err
	}
	return outcome{rows: rows, meta: &Meta{Count: len(rows)}}, nil
}
