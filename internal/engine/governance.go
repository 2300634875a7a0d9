package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/smartcode"
	"github.com/hera-erp/hera/internal/store"
)

// govern validates code for the call's tenant at the highest of the
// engine default, the catalog rule and the requested level. Usage and
// provider lookups run on st, the unit's transaction. Warnings are
// collected on the call; a failing report becomes its typed error.
func (e *Engine) govern(ctx context.Context, st *store.Store, c *call, field, code string, ruleLevel int) error {
	if code == "" {
		return model.Validation(field, "smart_code is required")
	}
	level := e.defaultLevel
	if l := smartcode.Level(ruleLevel); l > level {
		level = l
	}
	if c.options.ValidationLevel != 0 {
		requested := smartcode.Level(c.options.ValidationLevel)
		if !requested.Valid() {
			return model.Validation("options.validation_level", "validation level %d out of range 1-4", c.options.ValidationLevel)
		}
		if requested > level {
			level = requested
		}
	}

	key := touchedKey(code, c.org)
	scope := smartcode.Scope{Usage: st, Providers: st, Fresh: c.fx.touched[key]}
	report, err := e.governor.ValidateIn(ctx, scope, code, c.org, level)
	if err != nil {
		return err
	}
	if err := report.Err(); err != nil {
		if me, ok := model.AsError(err); ok && field != "smart_code" {
			me.Field = field
		}
		return err
	}
	if len(report.Warnings) > 0 {
		e.logger.Warn("smart code accepted with warnings",
			zap.String("smart_code", code),
			zap.String("organization_id", c.org),
			zap.Int("warnings", len(report.Warnings)),
		)
		c.fx.warnings = append(c.fx.warnings, report.Warnings...)
	}
	c.fx.touched[key] = true
	return nil
}

func touchedKey(code, org string) string {
	return code + "\x00" + org
}

func splitTouched(key string) (code, org string) {
	code, org, _ = strings.Cut(key, "\x00")
	return code, org
}

// immutableCode rejects an attempt to change a persisted smart code.
func immutableCode(payload map[string]any, current string) error {
	v, ok := payload["smart_code"]
	if !ok || v == nil {
		return nil
	}
	if s, _ := v.(string); s != current {
		return model.Validation("smart_code", "smart codes are immutable; issue a new version on a new record").
			WithDetail("current", current)
	}
	return nil
}
