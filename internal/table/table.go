// Package table is the in-memory columnar engine the graph layer targets.
// The production deployment hands column operations to a host tabular engine;
// this package supplies the same contract locally so alignment and compiled
// expressions are executable and testable: typed columns, fixed-width tables,
// and the Op algebra the expression compiler lowers onto.
package table

import (
	"fmt"

	"github.com/slategraph/slate/internal/domain"
)

// Column is one typed vector of values; a nil value is null.
type Column struct {
	Type   domain.Type
	Values []any
}

// NewColumn builds a column from values.
func NewColumn(t domain.Type, values []any) Column {
	return Column{Type: t, Values: values}
}

// ConstColumn builds a column repeating one value.
func ConstColumn(t domain.Type, value any, rows int) Column {
	values := make([]any, rows)
	for i := range values {
		values[i] = value
	}
	return Column{Type: t, Values: values}
}

// Len returns the row count of the column.
func (c Column) Len() int { return len(c.Values) }

// Table is an ordered set of equally sized named columns.
type Table struct {
	names []string
	cols  map[string]Column
	rows  int
}

// New creates an empty table with a fixed row count.
func New(rows int) *Table {
	return &Table{cols: map[string]Column{}, rows: rows}
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return t.rows }

// ColumnNames returns the column names in insertion order.
func (t *Table) ColumnNames() []string {
	return append([]string(nil), t.names...)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, error) {
	col, ok := t.cols[name]
	if !ok {
		return Column{}, fmt.Errorf("table has no column %q", name)
	}
	return col, nil
}

// AddColumn appends a column. The column length must match the table's row
// count and the name must be new.
func (t *Table) AddColumn(name string, col Column) error {
	if _, ok := t.cols[name]; ok {
		return fmt.Errorf("duplicate column %q", name)
	}
	if col.Len() != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", name, col.Len(), t.rows)
	}
	t.names = append(t.names, name)
	t.cols[name] = col
	return nil
}

// WithColumnMapped returns a copy of the table with one column's values
// rewritten through fn. The receiver is left untouched.
func (t *Table) WithColumnMapped(name string, fn func(any) any) (*Table, error) {
	src, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := New(t.rows)
	for _, n := range t.names {
		col := t.cols[n]
		if n == name {
			mapped := make([]any, len(src.Values))
			for i, v := range src.Values {
				mapped[i] = fn(v)
			}
			col = Column{Type: src.Type, Values: mapped}
		}
		if err := out.AddColumn(n, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Select returns a copy of the table containing the given rows, in order.
func (t *Table) Select(indices []int) (*Table, error) {
	out := New(len(indices))
	for _, n := range t.names {
		col := t.cols[n]
		values := make([]any, len(indices))
		for i, idx := range indices {
			if idx < 0 || idx >= t.rows {
				return nil, fmt.Errorf("row %d out of range [0,%d)", idx, t.rows)
			}
			values[i] = col.Values[idx]
		}
		if err := out.AddColumn(n, Column{Type: col.Type, Values: values}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Concat appends tables row-wise. Every table must carry exactly the columns
// of the first, in any order; the first table's column order wins.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return New(0), nil
	}
	first := tables[0]
	rows := 0
	for _, t := range tables {
		if len(t.names) != len(first.names) {
			return nil, fmt.Errorf("cannot concat tables with %d and %d columns", len(first.names), len(t.names))
		}
		for _, n := range first.names {
			if !t.HasColumn(n) {
				return nil, fmt.Errorf("cannot concat: table missing column %q", n)
			}
		}
		rows += t.rows
	}
	out := New(rows)
	for _, n := range first.names {
		values := make([]any, 0, rows)
		colType := first.cols[n].Type
		for _, t := range tables {
			col := t.cols[n]
			values = append(values, col.Values...)
			widened, err := domain.Join(colType, col.Type)
			if err != nil {
				return nil, fmt.Errorf("concat column %q: %w", n, err)
			}
			colType = widened
		}
		if err := out.AddColumn(n, Column{Type: colType, Values: values}); err != nil {
			return nil, err
		}
	}
	return out, nil
}
