package gateway

import (
	"context"
)

// Gateway is the table-level persistence surface shared by both backends.
// Records handed in and out carry canonical Go values per column kind (see
// Kind); a backend never leaks its own error text and reports constraint
// violations with the core sentinels.
type Gateway interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Init creates the tables or collections. Calling it again is a no-op.
	Init(ctx context.Context) error
	Close() error
	// Reset drops and recreates every table.
	Reset(ctx context.Context) error

	// Insert stores rec and returns the assigned id, max(id)+1 or 1.
	Insert(ctx context.Context, table string, rec Record) (int64, error)
	QueryAll(ctx context.Context, table string, q Query) ([]Record, error)
	// QueryOne returns the first row of q, or nil when nothing matches.
	QueryOne(ctx context.Context, table string, q Query) (Record, error)
	// Update applies patch to the row with id. Unknown ids are ignored.
	Update(ctx context.Context, table string, id int64, patch Record) error
	// Delete removes the row with id, cascading through foreign keys.
	// Unknown ids are ignored.
	Delete(ctx context.Context, table string, id int64) error
	// DeleteWhere removes every matching row atomically and returns how
	// many were removed.
	DeleteWhere(ctx context.Context, table string, where []Cond) (int64, error)
}

// Resolve returns the schema of table or an error naming it.
func Resolve(table string) (Table, error) {
	t, ok := LookupTable(table)
	if !ok {
		return Table{}, &UnknownTableError{Table: table}
	}
	return t, nil
}

type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return "gateway: unknown table " + e.Table
}
