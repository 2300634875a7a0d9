package engine

import (
	"fmt"

	"github.com/hera-erp/hera/internal/model"
)

// errorBody converts err into the envelope form. Errors outside the
// taxonomy become internal errors; their text is kept in the message.
func errorBody(err error) *ErrorBody {
	e, ok := model.AsError(err)
	if !ok {
		return &ErrorBody{Kind: model.KindInternal, Message: err.Error()}
	}
	body := &ErrorBody{Kind: e.Kind, Message: e.Message, Field: e.Field, Details: e.Details}
	if e.Err != nil {
		if inner, ok := model.AsError(e.Err); ok {
			if body.Details == nil {
				body.Details = map[string]any{}
			}
			body.Details["cause"] = errorBody(inner)
		}
	}
	return body
}

// NewItemError reports the failure of one item of an all-or-none batch.
// The whole batch has been rolled back when it is returned.
func NewItemError(index int, cause error) *model.Error {
	field := fmt.Sprintf("items[%d]", index)
	if e, ok := model.AsError(cause); ok && e.Field != "" {
		field += "." + e.Field
	}
	e := model.Integrity(cause, "batch rolled back: item %d failed: %s", index, messageOf(cause))
	e.Field = field
	return e.WithDetail("index", index).WithDetail("kind", string(model.KindOf(cause)))
}

// IsItemError reports whether err is a rolled-back batch failure.
func IsItemError(err error) bool {
	e, ok := model.AsError(err)
	return ok && e.Kind == model.KindIntegrity && e.Details != nil && e.Details["index"] != nil
}

func messageOf(err error) string {
	if e, ok := model.AsError(err); ok {
		return e.Message
	}
	return err.Error()
}

func unsupported(store StoreName, op Operation) *model.Error {
	return model.Validation("operation", "operation %q is not supported on store %q", op, store)
}

// prefixField qualifies the field of a nested item's error, e.g.
// "lines[2].line_amount".
func prefixField(err error, list string, index int) error {
	e, ok := model.AsError(err)
	if !ok {
		return err
	}
	field := fmt.Sprintf("%s[%d]", list, index)
	if e.Field != "" {
		field += "." + e.Field
	}
	e.Field = field
	return err
}
