package lifecycle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hera-erp/hera/internal/model"
)

func line(kind string, amount int64) model.TransactionLine {
	return model.TransactionLine{LineType: kind, LineAmount: decimal.NewFromInt(amount)}
}

func withLines(lines ...model.TransactionLine) Subject {
	return Subject{Transaction: &model.Transaction{Lines: lines}}
}

func TestDefaultTable(t *testing.T) {
	m := Default()
	tests := []struct {
		from    State
		allowed []State
	}{
		{Draft, []State{Submitted, Cancelled}},
		{Submitted, []State{Approved, Rejected, Cancelled}},
		{Approved, []State{Processing, Cancelled}},
		{Rejected, []State{Draft}},
		{Processing, []State{Completed, Cancelled}},
		{Completed, []State{}},
		{Cancelled, []State{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			assert.Equal(t, tt.allowed, m.Allowed(tt.from))
			assert.Equal(t, len(tt.allowed) == 0, m.Terminal(tt.from))
		})
	}
	assert.Equal(t, Draft, m.Initial())
	assert.Len(t, m.States(), 7)
}

func TestIllegalTransitionListsAllowed(t *testing.T) {
	err := Default().Transition(Draft, Completed, withLines(line("", 1)))
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))

	e, ok := model.AsError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"submitted", "cancelled"}, e.Details["allowed"])
	assert.Contains(t, e.Message, "submitted, cancelled")
}

func TestTerminalTransition(t *testing.T) {
	err := Default().Transition(Completed, Draft, Subject{})
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))
	assert.Contains(t, err.Error(), "completed is terminal")
}

func TestUnknownTargetState(t *testing.T) {
	err := Default().Transition(Draft, "posted", Subject{})
	assert.True(t, model.IsKind(err, model.KindValidation))
}

func TestSubmitGuards(t *testing.T) {
	m := Default()

	t.Run("requires lines", func(t *testing.T) {
		err := m.Transition(Draft, Submitted, withLines())
		require.Error(t, err)
		assert.True(t, model.IsConflict(err))
	})

	t.Run("balanced type must balance", func(t *testing.T) {
		subj := withLines(line(model.LineDebit, 100), line(model.LineCredit, 60))
		subj.Balanced = true
		err := m.Transition(Draft, Submitted, subj)
		require.Error(t, err)
		assert.True(t, model.IsKind(err, model.KindIntegrity))
	})

	t.Run("unbalanced allowed for open types", func(t *testing.T) {
		subj := withLines(line(model.LineDebit, 100), line(model.LineCredit, 60))
		assert.NoError(t, m.Transition(Draft, Submitted, subj))
	})

	t.Run("balanced passes", func(t *testing.T) {
		subj := withLines(line(model.LineDebit, 100), line(model.LineCredit, 40), line(model.LineCredit, 60))
		subj.Balanced = true
		assert.NoError(t, m.Transition(Draft, Submitted, subj))
	})

	t.Run("guards only run on their edge", func(t *testing.T) {
		assert.NoError(t, m.Transition(Draft, Cancelled, withLines()))
	})
}

func TestEditableAndDeletable(t *testing.T) {
	m := Default()
	assert.True(t, m.Editable(Draft))
	assert.True(t, m.Editable(Rejected))
	assert.False(t, m.Editable(Submitted))
	assert.False(t, m.Editable(Completed))

	assert.True(t, m.Deletable(Draft))
	assert.True(t, m.Deletable(Cancelled))
	assert.False(t, m.Deletable(Approved))
}

func TestTotals(t *testing.T) {
	d, c := Totals([]model.TransactionLine{
		line(model.LineDebit, 5),
		line(model.LineDebit, 7),
		line(model.LineCredit, 12),
		line("", 99),
	})
	assert.True(t, d.Equal(decimal.NewFromInt(12)))
	assert.True(t, c.Equal(decimal.NewFromInt(12)))
}

func TestCustomMachine(t *testing.T) {
	m := New("open", Edge{From: "open", To: "closed"})
	assert.NoError(t, m.Transition("open", "closed", Subject{}))
	assert.True(t, m.Terminal("closed"))
	assert.True(t, m.Deletable("open"))
	assert.False(t, m.Deletable("closed"))
}
