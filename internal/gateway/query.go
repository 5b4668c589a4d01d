package gateway

import (
	"fmt"
	"sort"
)

// Op is a comparison operator in a Cond.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	// OpLtColumn compares against another column of the same row.
	OpLtColumn
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt, OpLtColumn:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

type (
	// Cond is a single predicate; a Query matches rows satisfying all of them.
	Cond struct {
		Column string
		Op     Op
		Value  any
		// Other names the right-hand column for OpLtColumn.
		Other string
	}

	Order struct {
		Column string
		Desc   bool
	}

	// Query selects rows. A zero Limit means no limit.
	Query struct {
		Where   []Cond
		OrderBy []Order
		Limit   int
	}
)

func Eq(col string, v any) Cond { return Cond{Column: col, Op: OpEq, Value: v} }
func Ne(col string, v any) Cond { return Cond{Column: col, Op: OpNe, Value: v} }
func Lt(col string, v any) Cond { return Cond{Column: col, Op: OpLt, Value: v} }
func Le(col string, v any) Cond { return Cond{Column: col, Op: OpLe, Value: v} }
func Gt(col string, v any) Cond { return Cond{Column: col, Op: OpGt, Value: v} }
func Ge(col string, v any) Cond { return Cond{Column: col, Op: OpGe, Value: v} }

// LtColumn matches rows where col is strictly less than other.
func LtColumn(col, other string) Cond { return Cond{Column: col, Op: OpLtColumn, Other: other} }

// Where starts a Query from conditions.
func Where(conds ...Cond) Query { return Query{Where: conds} }

// ByID selects the row with the given id.
func ByID(id int64) Query { return Where(Eq(IDColumn, id)) }

// Asc and Desc append an ordering term.
func (q Query) Asc(col string) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Column: col})
	return q
}

func (q Query) Desc(col string) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Column: col, Desc: true})
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// NormalizeConds checks the columns against t and coerces condition values
// to the column kind.
func NormalizeConds(t Table, conds []Cond) ([]Cond, error) {
	out := make([]Cond, len(conds))
	for i, c := range conds {
		col, ok := t.Column(c.Column)
		if !ok {
			return nil, fmt.Errorf("table %s has no column %q", t.Name, c.Column)
		}
		if c.Op == OpLtColumn {
			other, ok := t.Column(c.Other)
			if !ok {
				return nil, fmt.Errorf("table %s has no column %q", t.Name, c.Other)
			}
			if other.Kind != col.Kind {
				return nil, fmt.Errorf("columns %s and %s have different kinds", c.Column, c.Other)
			}
			out[i] = c
			continue
		}
		v, err := Coerce(col.Kind, c.Value)
		if err != nil {
			return nil, fmt.Errorf("condition on %s.%s: %w", t.Name, c.Column, err)
		}
		c.Value = v
		out[i] = c
	}
	return out, nil
}

// NormalizeQuery validates q against t and coerces its values.
func NormalizeQuery(t Table, q Query) (Query, error) {
	where, err := NormalizeConds(t, q.Where)
	if err != nil {
		return Query{}, err
	}
	for _, o := range q.OrderBy {
		if _, ok := t.Column(o.Column); !ok {
			return Query{}, fmt.Errorf("table %s has no column %q", t.Name, o.Column)
		}
	}
	if q.Limit < 0 {
		return Query{}, fmt.Errorf("negative limit %d", q.Limit)
	}
	q.Where = where
	return q, nil
}

// Match reports whether rec satisfies every condition. Conditions must be
// normalized against t.
func Match(t Table, rec Record, conds []Cond) bool {
	for _, c := range conds {
		col, _ := t.Column(c.Column)
		rhs := c.Value
		if c.Op == OpLtColumn {
			rhs = rec[c.Other]
		}
		cmp := Compare(col.Kind, rec[c.Column], rhs)
		var ok bool
		switch c.Op {
		case OpEq:
			ok = cmp == 0
		case OpNe:
			ok = cmp != 0
		case OpLt, OpLtColumn:
			ok = cmp < 0
		case OpLe:
			ok = cmp <= 0
		case OpGt:
			ok = cmp > 0
		case OpGe:
			ok = cmp >= 0
		}
		if !ok {
			return false
		}
	}
	return true
}

// Select filters, orders and limits rows in memory with the same semantics
// the SQL backend gets from its engine. Rows keep their input order when
// q has no ordering.
func Select(t Table, rows []Record, q Query) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if Match(t, r, q.Where) {
			out = append(out, r)
		}
	}
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				col, _ := t.Column(o.Column)
				c := Compare(col.Kind, out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
