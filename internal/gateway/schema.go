package gateway

// Table names.
const (
	TableUsers      = "users"
	TableCategories = "categories"
	TableExpenses   = "expenses"
	TableAudits     = "audits"
)

// IDColumn is the backend-assigned primary key present in every table.
const IDColumn = "id"

// Kind is the value type of a column. Both backends hand records out with
// the same Go type per kind: int64, float64, string, bool and time.Time.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindText
	KindBool
	KindTime
)

type (
	Column struct {
		Name string
		Kind Kind
		// Nullable text columns read back as "" when unset.
		Nullable bool
	}

	// ForeignKey references the id column of RefTable. Deleting the
	// referenced row removes the referencing rows when Cascade is set.
	ForeignKey struct {
		Column   string
		RefTable string
		Cascade  bool
	}

	Table struct {
		Name        string
		Columns     []Column
		Unique      []string
		ForeignKeys []ForeignKey
	}
)

// Schema lists the tables in creation order.
var Schema = []Table{
	{
		Name: TableUsers,
		Columns: []Column{
			{Name: IDColumn, Kind: KindInt},
			{Name: "email", Kind: KindText},
			{Name: "password_hash", Kind: KindText},
			{Name: "monthly_income", Kind: KindFloat},
			{Name: "created_at", Kind: KindTime},
		},
		Unique: []string{"email"},
	},
	{
		Name: TableCategories,
		Columns: []Column{
			{Name: IDColumn, Kind: KindInt},
			{Name: "name", Kind: KindText},
			{Name: "name_key", Kind: KindText},
			{Name: "icon", Kind: KindText, Nullable: true},
			{Name: "color", Kind: KindText, Nullable: true},
			{Name: "is_active", Kind: KindBool},
			{Name: "created_at", Kind: KindTime},
		},
		Unique: []string{"name_key"},
	},
	{
		Name: TableExpenses,
		Columns: []Column{
			{Name: IDColumn, Kind: KindInt},
			{Name: "user_id", Kind: KindInt},
			{Name: "description", Kind: KindText},
			{Name: "category", Kind: KindText},
			{Name: "amount", Kind: KindFloat},
			{Name: "has_installments", Kind: KindBool},
			{Name: "installments", Kind: KindInt},
			{Name: "paid_installments", Kind: KindInt},
			{Name: "first_payment_date", Kind: KindTime},
			{Name: "created_at", Kind: KindTime},
		},
		ForeignKeys: []ForeignKey{{Column: "user_id", RefTable: TableUsers, Cascade: true}},
	},
	{
		Name: TableAudits,
		Columns: []Column{
			{Name: IDColumn, Kind: KindInt},
			{Name: "user_id", Kind: KindInt},
			{Name: "entity_type", Kind: KindText},
			{Name: "entity_id", Kind: KindInt},
			{Name: "action", Kind: KindText},
			{Name: "old_value", Kind: KindText, Nullable: true},
			{Name: "new_value", Kind: KindText, Nullable: true},
			{Name: "description", Kind: KindText},
			{Name: "created_at", Kind: KindTime},
		},
		ForeignKeys: []ForeignKey{{Column: "user_id", RefTable: TableUsers, Cascade: true}},
	},
}

// LookupTable returns the schema of the named table.
func LookupTable(name string) (Table, bool) {
	for _, t := range Schema {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Column returns the named column of t.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Reference is a foreign key held by another table.
type Reference struct {
	Table Table
	Key   ForeignKey
}

// Referencing returns the foreign keys of other tables that point at t.
func (t Table) Referencing() []Reference {
	var out []Reference
	for _, other := range Schema {
		for _, fk := range other.ForeignKeys {
			if fk.RefTable == t.Name {
				out = append(out, Reference{Table: other, Key: fk})
			}
		}
	}
	return out
}
