package query

// Kind is the storage class of a column, which decides how literals are
// converted and compared. Decimals are stored as text and compared
// numerically, booleans as 0/1, times as model.TimeLayout text. JSON
// columns cannot be filtered.
type Kind int

const (
	KindText Kind = iota
	KindDecimal
	KindBool
	KindInt
	KindTime
	KindJSON
)

// Column is one whitelisted column.
type Column struct {
	Name string
	Kind Kind
}

// Table describes a record table to the compiler.
type Table struct {
	Name         string
	TenantColumn string
	SearchColumn string
	Columns      []Column
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames lists the table's columns in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Table names.
const (
	TableOrganizations    = "organizations"
	TableEntities         = "entities"
	TableDynamicData      = "dynamic_data"
	TableRelationships    = "relationships"
	TableTransactions     = "transactions"
	TableTransactionLines = "transaction_lines"
)

var audit = []Column{
	{"created_by", KindText},
	{"created_at", KindTime},
	{"updated_by", KindText},
	{"updated_at", KindTime},
}

func cols(base []Column, extra ...[]Column) []Column {
	out := append([]Column(nil), base...)
	for _, e := range extra {
		out = append(out, e...)
	}
	return out
}

var tables = map[string]*Table{
	TableOrganizations: {
		Name:         TableOrganizations,
		TenantColumn: "id",
		Columns: []Column{
			{"id", KindText},
			{"organization_name", KindText},
			{"organization_code", KindText},
			{"organization_type", KindText},
			{"status", KindText},
			{"settings", KindJSON},
			{"created_at", KindTime},
			{"updated_at", KindTime},
			{"archived_at", KindTime},
		},
	},
	TableEntities: {
		Name:         TableEntities,
		TenantColumn: "organization_id",
		SearchColumn: "search_key",
		Columns: cols([]Column{
			{"id", KindText},
			{"organization_id", KindText},
			{"entity_type", KindText},
			{"entity_code", KindText},
			{"entity_name", KindText},
			{"smart_code", KindText},
			{"status", KindText},
			{"metadata", KindJSON},
			{"deleted_at", KindTime},
		}, audit),
	},
	TableDynamicData: {
		Name:         TableDynamicData,
		TenantColumn: "organization_id",
		Columns: cols([]Column{
			{"id", KindText},
			{"organization_id", KindText},
			{"entity_id", KindText},
			{"field_name", KindText},
			{"field_type", KindText},
			{"field_value_text", KindText},
			{"field_value_number", KindDecimal},
			{"field_value_boolean", KindBool},
			{"field_value_json", KindJSON},
			{"field_value_date", KindTime},
			{"smart_code", KindText},
		}, audit),
	},
	TableRelationships: {
		Name:         TableRelationships,
		TenantColumn: "organization_id",
		Columns: cols([]Column{
			{"id", KindText},
			{"organization_id", KindText},
			{"from_entity_id", KindText},
			{"to_entity_id", KindText},
			{"relationship_type", KindText},
			{"smart_code", KindText},
			{"relationship_data", KindJSON},
			{"status", KindText},
			{"is_active", KindBool},
			{"is_exclusive", KindBool},
			{"started_at", KindTime},
			{"ended_at", KindTime},
		}, audit),
	},
	TableTransactions: {
		Name:         TableTransactions,
		TenantColumn: "organization_id",
		Columns: cols([]Column{
			{"id", KindText},
			{"organization_id", KindText},
			{"transaction_type", KindText},
			{"transaction_code", KindText},
			{"transaction_date", KindTime},
			{"source_entity_id", KindText},
			{"target_entity_id", KindText},
			{"total_amount", KindDecimal},
			{"auto_total", KindBool},
			{"currency", KindText},
			{"status", KindText},
			{"smart_code", KindText},
			{"metadata", KindJSON},
			{"archived", KindBool},
			{"deleted_at", KindTime},
		}, audit),
	},
	TableTransactionLines: {
		Name:         TableTransactionLines,
		TenantColumn: "organization_id",
		Columns: cols([]Column{
			{"id", KindText},
			{"organization_id", KindText},
			{"transaction_id", KindText},
			{"line_number", KindInt},
			{"line_type", KindText},
			{"entity_id", KindText},
			{"description", KindText},
			{"quantity", KindDecimal},
			{"unit_amount", KindDecimal},
			{"line_amount", KindDecimal},
			{"amount_override", KindBool},
			{"smart_code", KindText},
			{"metadata", KindJSON},
		}, audit),
	},
}

// Lookup returns the table description for name.
func Lookup(name string) (*Table, bool) {
	t, ok := tables[name]
	return t, ok
}
