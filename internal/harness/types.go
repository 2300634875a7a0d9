package harness

// TraceEvent records one engine call of a scenario run.
//
// Only the stable summary is serialized into golden files. The full
// response data and error details stay in memory for expectations.
type TraceEvent struct {
	Seq            int      `json:"seq"`
	Step           string   `json:"step,omitempty"`
	Action         string   `json:"action"`
	OrganizationID string   `json:"organization_id,omitempty"`
	SmartCode      string   `json:"smart_code,omitempty"`
	Status         string   `json:"status"`
	RecordID       string   `json:"record_id,omitempty"`
	Count          *int     `json:"count,omitempty"`
	Kind           string   `json:"kind,omitempty"`
	Field          string   `json:"field,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`

	Data    any            `json:"-"`
	Details map[string]any `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends ev to the trace, numbering it.
func (r *Result) AddEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
