package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hera-erp/hera/internal/model"
)

// decode copies a loosely typed payload into a typed input struct. Unknown
// keys are rejected so typos never pass silently; organization_id is
// checked by the tenant guard and skipped here.
func decode(payload map[string]any, out any) error {
	clean := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "organization_id" {
			continue
		}
		clean[k] = v
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return model.Validation("payload", "payload is not serializable: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return model.Validation(payloadField(err), "invalid payload: %v", err)
	}
	return nil
}

// payloadField extracts the offending key from a decoder error when it
// names one.
func payloadField(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return te.Field
	}
	msg := err.Error()
	if i := strings.Index(msg, `unknown field "`); i >= 0 {
		rest := msg[i+len(`unknown field "`):]
		if j := strings.IndexByte(rest, '"'); j >= 0 {
			return rest[:j]
		}
	}
	return "payload"
}

// parseDate reads an optional date; empty means fallback.
func parseDate(field, s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, model.Validation(field, "invalid date %q: %v", s, err)
	}
	return t, nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return model.Validation(field, "%s is required", field)
	}
	return nil
}

// idFrom resolves the target id of a by-id operation.
func idFrom(c *call, what string) (string, error) {
	id := c.id
	if id == "" {
		id, _ = c.payload["id"].(string)
	}
	if id == "" {
		return "", model.Validation("id", "%s id is required for %s", what, c.op)
	}
	return id, nil
}

func pick[T any](p *T, current T) T {
	if p != nil {
		return *p
	}
	return current
}

