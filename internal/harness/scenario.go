package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hera-erp/hera/internal/engine"
)

// Scenario is a scripted sequence of engine calls with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IDs pins the ids handed out for records created without one.
	IDs []string `yaml:"ids,omitempty"`

	// Start is the first clock reading (RFC 3339). Default: 2024-01-01T00:00:00Z.
	Start string `yaml:"start,omitempty"`

	// ValidationLevel is the engine's default governance level (1-4).
	ValidationLevel int `yaml:"validation_level,omitempty"`

	// Steps run in order against a fresh in-memory database.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine call.
type Step struct {
	Name    string         `yaml:"name,omitempty"`
	Request engine.Request `yaml:"request"`
	// Expect is optional. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected envelope of a step.
type Expect struct {
	// Status is "success" or "error".
	Status string `yaml:"status"`
	// Kind and Field match the error body.
	Kind  string `yaml:"kind,omitempty"`
	Field string `yaml:"field,omitempty"`
	// Details is a subset match on the error details.
	Details map[string]any `yaml:"details,omitempty"`
	// Data is a subset match on the single-record payload.
	Data map[string]any `yaml:"data,omitempty"`
	// Count matches meta.count of row results.
	Count *int `yaml:"count,omitempty"`
	// Warnings lists issue codes that must be present.
	Warnings []string `yaml:"warnings,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state, row_count.
	Type string `yaml:"type"`

	// Action is "store.operation" (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`
	// Status and Kind narrow trace_contains and trace_count.
	Status string `yaml:"status,omitempty"`
	Kind   string `yaml:"kind,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Table and Where select rows (final_state, row_count).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset match on the single selected row (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of events or rows.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// startTime resolves the first clock reading.
func (s *Scenario) startTime() (time.Time, error) {
	if s.Start == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s.Start)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.ValidationLevel < 0 || s.ValidationLevel > 4 {
		return fmt.Errorf("validation_level must be between 1 and 4")
	}
	if _, err := s.startTime(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	for i, step := range s.Steps {
		if step.Request.Operation == "" {
			return fmt.Errorf("steps[%d]: request.operation is required", i)
		}
		if step.Request.Store == "" {
			return fmt.Errorf("steps[%d]: request.store is required", i)
		}
		if step.Expect != nil {
			switch step.Expect.Status {
			case string(engine.StatusSuccess), string(engine.StatusError):
			default:
				return fmt.Errorf("steps[%d].expect: status must be success or error", i)
			}
			if step.Expect.Status == string(engine.StatusSuccess) && step.Expect.Kind != "" {
				return fmt.Errorf("steps[%d].expect: kind requires status error", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
