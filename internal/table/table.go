package table

import (
	"fmt"
	"strings"
)

// Table represents an immutable table of named, ordered columns.
// All columns are assumed to have the same length.
type Table struct {
	columns map[string]*Column
	order   []string
}

// New creates a new Table from columns. Column order is preserved.
func New(columns ...*Column) *Table {
	cols := make(map[string]*Column, len(columns))
	order := make([]string, 0, len(columns))
	for _, c := range columns {
		name := c.Name()
		if _, exists := cols[name]; !exists {
			order = append(order, name)
		}
		cols[name] = c
	}
	return &Table{columns: cols, order: order}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.order) == 0 {
		return 0
	}
	if c, ok := t.columns[t.order[0]]; ok {
		return c.Len()
	}
	return 0
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Select returns a new Table with only the named columns, skipping unknowns.
func (t *Table) Select(names ...string) *Table {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		if c, ok := t.columns[name]; ok {
			cols = append(cols, c)
		}
	}
	return New(cols...)
}

// Drop returns a new Table without the named columns.
func (t *Table) Drop(names ...string) *Table {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		dropSet[name] = true
	}
	cols := make([]*Column, 0, len(t.order))
	for _, name := range t.order {
		if !dropSet[name] {
			cols = append(cols, t.columns[name])
		}
	}
	return New(cols...)
}

// WithColumns returns a new Table with the given columns appended.
// A column whose name already exists replaces the existing one in place.
func (t *Table) WithColumns(columns ...*Column) *Table {
	cols := make([]*Column, 0, len(t.order)+len(columns))
	added := make(map[string]*Column, len(columns))
	for _, c := range columns {
		added[c.Name()] = c
	}
	for _, name := range t.order {
		if replacement, ok := added[name]; ok {
			cols = append(cols, replacement)
			delete(added, name)
			continue
		}
		cols = append(cols, t.columns[name])
	}
	for _, c := range columns {
		if _, pending := added[c.Name()]; pending {
			cols = append(cols, c)
			delete(added, c.Name())
		}
	}
	return New(cols...)
}

// Filter returns a new Table keeping only the rows where keep is true.
// The mask must have one entry per row; a short mask drops the excess rows.
func (t *Table) Filter(keep []bool) *Table {
	if len(keep) < t.Len() {
		padded := make([]bool, t.Len())
		copy(padded, keep)
		keep = padded
	}
	cols := make([]*Column, 0, len(t.order))
	for _, name := range t.order {
		cols = append(cols, t.columns[name].filter(keep[:t.Len()]))
	}
	return New(cols...)
}

// Head returns a new Table with at most n leading rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	keep := make([]bool, t.Len())
	for i := range keep {
		keep[i] = i < n
	}
	return t.Filter(keep)
}

// Release releases all underlying Arrow memory.
func (t *Table) Release() {
	for _, c := range t.columns {
		c.Release()
	}
}

// String returns a string representation of the table.
func (t *Table) String() string {
	if len(t.columns) == 0 {
		return "Table[empty]"
	}
	parts := []string{fmt.Sprintf("Table[%dx%d]", t.Len(), t.Width())}
	for _, name := range t.order {
		parts = append(parts, fmt.Sprintf("  %s: %s", name, t.columns[name].Kind()))
	}
	return strings.Join(parts, "\n")
}
