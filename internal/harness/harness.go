package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/app"
	"github.com/hera-erp/hera/internal/config"
	"github.com/hera-erp/hera/internal/engine"
	"github.com/hera-erp/hera/internal/testutil"
)

// clockStep separates consecutive clock readings of a run.
const clockStep = time.Second

// Harness runs one scenario against a private engine.
type Harness struct {
	app    *app.App
	logger *zap.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger routes engine logs of the run to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a stepping clock
// and scripted ids, so two runs of the same scenario produce identical
// traces.
//
// A failed expectation or assertion marks the result as failed; the error
// return is reserved for failures to run at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	start, err := scenario.startTime()
	if err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Database.Path = ":memory:"
	if scenario.ValidationLevel > 0 {
		cfg.Governance.DefaultLevel = scenario.ValidationLevel
	}

	a, err := app.Open(cfg,
		app.WithLogger(o.logger),
		app.WithClock(testutil.NewSteppingClock(start, clockStep)),
		app.WithIDGenerator(testutil.NewScriptedIDs("id", scenario.IDs...)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory engine: %w", err)
	}
	defer a.Close()

	h := &Harness{app: a, logger: o.logger}
	ctx := context.Background()

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	actx := &AssertionContext{Store: a.Store, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one request and checks its expectation.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	req := step.Request
	res := h.app.Engine.Execute(ctx, req)

	ev := TraceEvent{
		Step:           step.Name,
		Action:         ActionName(req.Store, req.Operation),
		OrganizationID: req.OrganizationID,
		SmartCode:      req.SmartCode,
		Status:         string(res.Status),
	}
	if res.Meta != nil {
		count := res.Meta.Count
		ev.Count = &count
	}
	if res.Data != nil {
		ev.Data = normalize(res.Data)
		if m, ok := ev.Data.(map[string]any); ok {
			ev.RecordID, _ = m["id"].(string)
		}
	} else if res.Rows != nil {
		ev.Data = normalize(res.Rows)
	}
	if res.Error != nil {
		ev.Kind = string(res.Error.Kind)
		ev.Field = res.Error.Field
		if d, ok := normalize(res.Error.Details).(map[string]any); ok {
			ev.Details = d
		}
	}
	for _, w := range res.Warnings {
		ev.Warnings = append(ev.Warnings, w.Code)
	}
	result.AddEvent(ev)

	label := fmt.Sprintf("steps[%d]", index)
	if step.Name != "" {
		label += " (" + step.Name + ")"
	}
	for _, msg := range checkExpect(step.Expect, ev, res) {
		result.AddError(label + ": " + msg)
	}
}

// checkExpect compares a step's outcome with its expectation.
func checkExpect(exp *Expect, ev TraceEvent, res *engine.Result) []string {
	if exp == nil {
		if !res.OK() {
			return []string{fmt.Sprintf("expected success, got %s: %s (field=%s)", res.Error.Kind, res.Error.Message, res.Error.Field)}
		}
		return nil
	}

	var errs []string
	if ev.Status != exp.Status {
		msg := fmt.Sprintf("expected status %s, got %s", exp.Status, ev.Status)
		if res.Error != nil {
			msg += fmt.Sprintf(" (%s: %s)", res.Error.Kind, res.Error.Message)
		}
		return []string{msg}
	}
	if exp.Kind != "" && ev.Kind != exp.Kind {
		errs = append(errs, fmt.Sprintf("expected kind %s, got %s", exp.Kind, ev.Kind))
	}
	if exp.Field != "" && ev.Field != exp.Field {
		errs = append(errs, fmt.Sprintf("expected field %q, got %q", exp.Field, ev.Field))
	}
	if len(exp.Details) > 0 && !matchSubset(ev.Details, exp.Details) {
		errs = append(errs, fmt.Sprintf("details %v do not contain %v", ev.Details, exp.Details))
	}
	if len(exp.Data) > 0 {
		data, _ := ev.Data.(map[string]any)
		if !matchSubset(data, exp.Data) {
			errs = append(errs, fmt.Sprintf("data %v does not contain %v", data, exp.Data))
		}
	}
	if exp.Count != nil {
		switch {
		case ev.Count == nil:
			errs = append(errs, fmt.Sprintf("expected count %d, result carries no count", *exp.Count))
		case *ev.Count != *exp.Count:
			errs = append(errs, fmt.Sprintf("expected count %d, got %d", *exp.Count, *ev.Count))
		}
	}
	for _, code := range exp.Warnings {
		if !containsString(ev.Warnings, code) {
			errs = append(errs, fmt.Sprintf("expected warning %s, got %v", code, ev.Warnings))
		}
	}
	return errs
}

// ActionName is the trace name of a call, e.g. "entity.create".
func ActionName(st engine.StoreName, op engine.Operation) string {
	return string(st) + "." + string(op)
}

// normalize converts v to its plain JSON form (maps, slices, strings,
// float64, bool) so YAML expectations compare structurally.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Summary renders a one-line description of a result.
func Summary(name string, r *Result) string {
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	statuses := make(map[string]int)
	for _, ev := range r.Trace {
		statuses[ev.Status]++
	}
	keys := make([]string, 0, len(statuses))
	for k := range statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, statuses[k]))
	}
	return fmt.Sprintf("%s %s (%d steps: %s)", status, name, len(r.Trace), strings.Join(parts, " "))
}
