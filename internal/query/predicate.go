package query

// Predicate is a filter condition. The interface is sealed; the compiler
// switches over the concrete types below exhaustively.
type Predicate interface {
	predicateNode()
}

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Cmp compares a column with a literal.
type Cmp struct {
	Field string
	Op    Op
	Value any
}

func (Cmp) predicateNode() {}

// Eq is shorthand for an equality Cmp.
func Eq(field string, value any) Cmp {
	return Cmp{Field: field, Op: OpEq, Value: value}
}

// In matches a column against a list of literals. An empty list matches
// nothing.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// IsNull matches rows where the column is NULL (or, with Not, is set).
type IsNull struct {
	Field string
	Not   bool
}

func (IsNull) predicateNode() {}

// Search matches the folded free-text search key of tables that have one.
type Search struct {
	Term string
}

func (Search) predicateNode() {}

// And is a conjunction; an empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Sort orders results by one column.
type Sort struct {
	Field string
	Desc  bool
}

// Select is a tenant-scoped read of one table.
//
// Registry replaces the tenant predicate of an organizations read so every
// organization matches. Only the system tenant may set it; OrganizationID
// must still name the caller.
type Select struct {
	Table          string
	OrganizationID string
	Registry       bool
	Columns        []string // nil selects the table's columns in declaration order
	Filter         Predicate
	Sort           []Sort
	Limit          int
	Offset         int
}

// Where appends predicates to the filter of s and returns it.
func (s Select) Where(preds ...Predicate) Select {
	if len(preds) == 0 {
		return s
	}
	all := make([]Predicate, 0, len(preds)+1)
	if s.Filter != nil {
		all = append(all, s.Filter)
	}
	all = append(all, preds...)
	s.Filter = And{Predicates: all}
	return s
}
