// Package lifecycle defines the transaction status state machine: its
// states, the allowed edges between them and the guards that must hold
// before an edge is taken.
package lifecycle

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hera-erp/hera/internal/model"
)

// State is a transaction status.
type State string

const (
	Draft      State = "draft"
	Submitted  State = "submitted"
	Approved   State = "approved"
	Rejected   State = "rejected"
	Processing State = "processing"
	Completed  State = "completed"
	Cancelled  State = "cancelled"
)

// Subject is what guards inspect.
type Subject struct {
	Transaction *model.Transaction
	// Balanced is set when the transaction type requires debits to equal credits.
	Balanced bool
}

// Guard rejects an edge by returning an error.
type Guard func(Subject) error

// Edge is one allowed transition.
type Edge struct {
	From   State
	To     State
	Guards []Guard
}

// Machine is an explicit transition table.
type Machine struct {
	initial   State
	states    []State
	edges     map[State][]Edge
	editable  map[State]bool
	deletable map[State]bool
}

// New builds a machine from its initial state and edges. States appear in
// the order they are first mentioned.
func New(initial State, edges ...Edge) *Machine {
	m := &Machine{
		initial:   initial,
		edges:     make(map[State][]Edge),
		editable:  map[State]bool{initial: true},
		deletable: map[State]bool{initial: true},
	}
	seen := map[State]bool{}
	add := func(s State) {
		if !seen[s] {
			seen[s] = true
			m.states = append(m.states, s)
		}
	}
	add(initial)
	for _, e := range edges {
		add(e.From)
		add(e.To)
		m.edges[e.From] = append(m.edges[e.From], e)
	}
	return m
}

// WithEditable marks states whose header fields may change.
func (m *Machine) WithEditable(states ...State) *Machine {
	for _, s := range states {
		m.editable[s] = true
	}
	return m
}

// WithDeletable marks states from which a hard delete is allowed.
func (m *Machine) WithDeletable(states ...State) *Machine {
	for _, s := range states {
		m.deletable[s] = true
	}
	return m
}

// Default is the stock transaction lifecycle:
//
//	draft      -> submitted | cancelled
//	submitted  -> approved | rejected | cancelled
//	approved   -> processing | cancelled
//	rejected   -> draft
//	processing -> completed | cancelled
//
// completed and cancelled are terminal. Submitting requires at least one
// line and, for balanced types, equal debit and credit totals.
func Default() *Machine {
	return New(Draft,
		Edge{From: Draft, To: Submitted, Guards: []Guard{RequireLines, RequireBalance}},
		Edge{From: Draft, To: Cancelled},
		Edge{From: Submitted, To: Approved},
		Edge{From: Submitted, To: Rejected},
		Edge{From: Submitted, To: Cancelled},
		Edge{From: Approved, To: Processing},
		Edge{From: Approved, To: Cancelled},
		Edge{From: Rejected, To: Draft},
		Edge{From: Processing, To: Completed},
		Edge{From: Processing, To: Cancelled},
	).WithEditable(Rejected).WithDeletable(Cancelled)
}

// Initial returns the state new transactions start in.
func (m *Machine) Initial() State {
	return m.initial
}

// States returns every known state.
func (m *Machine) States() []State {
	return append([]State(nil), m.states...)
}

// Known reports whether s is a state of the machine.
func (m *Machine) Known(s State) bool {
	for _, st := range m.states {
		if st == s {
			return true
		}
	}
	return false
}

// Allowed returns the states reachable from s in one step.
func (m *Machine) Allowed(s State) []State {
	out := make([]State, 0, len(m.edges[s]))
	for _, e := range m.edges[s] {
		out = append(out, e.To)
	}
	return out
}

// Terminal reports whether s has no outgoing edges.
func (m *Machine) Terminal(s State) bool {
	return m.Known(s) && len(m.edges[s]) == 0
}

// Editable reports whether header fields may change in s.
func (m *Machine) Editable(s State) bool {
	return m.editable[s]
}

// Deletable reports whether a transaction in s may be hard deleted.
func (m *Machine) Deletable(s State) bool {
	return m.deletable[s]
}

// Transition checks the edge from -> to and runs its guards. An edge that
// is not in the table fails with a conflict listing the allowed states.
func (m *Machine) Transition(from, to State, subj Subject) error {
	if !m.Known(to) {
		return model.Validation("status", "unknown status %q", to).
			WithDetail("states", names(m.states))
	}
	for _, e := range m.edges[from] {
		if e.To != to {
			continue
		}
		for _, g := range e.Guards {
			if err := g(subj); err != nil {
				return err
			}
		}
		return nil
	}
	allowed := names(m.Allowed(from))
	msg := "none, " + string(from) + " is terminal"
	if len(allowed) > 0 {
		msg = strings.Join(allowed, ", ")
	}
	return model.Conflict("status", "illegal transition %s -> %s; allowed next states: %s", from, to, msg).
		WithDetail("from", string(from)).
		WithDetail("to", string(to)).
		WithDetail("allowed", allowed)
}

func names(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// RequireLines rejects transactions without lines.
func RequireLines(s Subject) error {
	if s.Transaction == nil || len(s.Transaction.Lines) == 0 {
		return model.Conflict("lines", "transaction has no lines")
	}
	return nil
}

// RequireBalance rejects unbalanced transactions of balanced types.
func RequireBalance(s Subject) error {
	if !s.Balanced || s.Transaction == nil {
		return nil
	}
	return CheckBalanced(s.Transaction.Lines)
}

// Totals sums line amounts by side. Lines without a line type count toward
// neither side.
func Totals(lines []model.TransactionLine) (debits, credits decimal.Decimal) {
	for _, l := range lines {
		switch l.LineType {
		case model.LineDebit:
			debits = debits.Add(l.LineAmount)
		case model.LineCredit:
			credits = credits.Add(l.LineAmount)
		}
	}
	return debits, credits
}

// CheckBalanced fails with an integrity error when debits differ from credits.
func CheckBalanced(lines []model.TransactionLine) error {
	debits, credits := Totals(lines)
	if !debits.Equal(credits) {
		return model.Integrity(nil, "debits %s do not equal credits %s", debits.String(), credits.String()).
			WithDetail("debits", debits.String()).
			WithDetail("credits", credits.String())
	}
	return nil
}
