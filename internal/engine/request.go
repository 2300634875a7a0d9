package engine

import (
	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/smartcode"
)

// StoreName selects one of the six record stores.
type StoreName string

const (
	StoreOrganization    StoreName = "organization"
	StoreEntity          StoreName = "entity"
	StoreDynamicData     StoreName = "dynamic_data"
	StoreRelationship    StoreName = "relationship"
	StoreTransaction     StoreName = "transaction"
	StoreTransactionLine StoreName = "transaction_line"
)

// Operation names an engine operation.
type Operation string

const (
	OpCreate         Operation = "create"
	OpRead           Operation = "read"
	OpUpdate         Operation = "update"
	OpArchive        Operation = "archive"
	OpDelete         Operation = "delete"
	OpBulkCreate     Operation = "bulk_create"
	OpBulkUpdate     Operation = "bulk_update"
	OpQuery          Operation = "query"
	OpTransition     Operation = "transition"
	OpCreateComplete Operation = "create_complete"
	OpHierarchy      Operation = "hierarchy"
)

// AtomicityAllOrNone is the only supported bulk mode.
const AtomicityAllOrNone = "all_or_none"

// Cascade policies for entity hard delete.
const (
	CascadeForbid  = "forbid"
	CascadeArchive = "archive"
)

// Request is the single call shape accepted by the engine.
type Request struct {
	Operation      Operation      `json:"operation" yaml:"operation"`
	Store          StoreName      `json:"store" yaml:"store"`
	OrganizationID string         `json:"organization_id" yaml:"organization_id"`
	SmartCode      string         `json:"smart_code,omitempty" yaml:"smart_code,omitempty"`
	ID             string         `json:"id,omitempty" yaml:"id,omitempty"`
	ParentID       string         `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	Batch          *Batch         `json:"batch,omitempty" yaml:"batch,omitempty"`
	Options        Options        `json:"options,omitempty" yaml:"options,omitempty"`
	// Actor is stamped into created_by/updated_by.
	Actor string `json:"actor,omitempty" yaml:"actor,omitempty"`
}

// Batch carries the items of a bulk operation.
type Batch struct {
	Items     []map[string]any `json:"items" yaml:"items"`
	Atomicity string           `json:"atomicity,omitempty" yaml:"atomicity,omitempty"`
}

// Options tune reads and writes.
type Options struct {
	Limit           int            `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset          int            `json:"offset,omitempty" yaml:"offset,omitempty"`
	IncludeRelated  bool           `json:"include_related,omitempty" yaml:"include_related,omitempty"`
	Filters         map[string]any `json:"filters,omitempty" yaml:"filters,omitempty"`
	Sort            []string       `json:"sort,omitempty" yaml:"sort,omitempty"`
	ValidationLevel int            `json:"validation_level,omitempty" yaml:"validation_level,omitempty"`
	Cascade         string         `json:"cascade,omitempty" yaml:"cascade,omitempty"`
}

// Status is the outcome of a call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the uniform envelope returned for every call.
type Result struct {
	Status   Status            `json:"status"`
	Data     any               `json:"data,omitempty"`
	Rows     []any             `json:"rows,omitempty"`
	Meta     *Meta             `json:"meta,omitempty"`
	Error    *ErrorBody        `json:"error,omitempty"`
	Warnings []smartcode.Issue `json:"warnings,omitempty"`
}

// Meta describes a row set.
type Meta struct {
	Count   int            `json:"count"`
	Total   *int           `json:"total,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
}

// ErrorBody is the serialized form of a *model.Error.
type ErrorBody struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	Field   string          `json:"field,omitempty"`
	Details map[string]any  `json:"details,omitempty"`
}

// OK reports whether the call succeeded.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

// Err returns the typed error carried by a failed result, or nil.
func (r *Result) Err() error {
	if r.Error == nil {
		return nil
	}
	return &model.Error{Kind: r.Error.Kind, Message: r.Error.Message, Field: r.Error.Field, Details: r.Error.Details}
}
