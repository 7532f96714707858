// Package table provides the null-aware columnar table that every pipeline
// stage consumes and produces. Columns are backed by Apache Arrow arrays and
// all operations are copy-on-write.
package table

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Kind identifies the semantic type of a column.
type Kind int

const (
	String Kind = iota
	Int64
	Float64
	Bool
	Time
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case Time:
		return "time"
	default:
		return "unknown"
	}
}

// timestampType is the Arrow type used for all time columns.
var timestampType = &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}

// Column is a named, typed data column with an Apache Arrow backend.
// A nil entry in the validity mask marks the value as missing.
type Column struct {
	name  string
	array arrow.Array
}

// NewStringColumn creates a string column. valid may be nil (all values set).
func NewStringColumn(name string, values []string, valid []bool) *Column {
	b := array.NewStringBuilder(memory.NewGoAllocator())
	defer b.Release()
	for i, v := range values {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return &Column{name: name, array: b.NewArray()}
}

// NewInt64Column creates an int64 column. valid may be nil (all values set).
func NewInt64Column(name string, values []int64, valid []bool) *Column {
	b := array.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()
	for i, v := range values {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return &Column{name: name, array: b.NewArray()}
}

// NewFloat64Column creates a float64 column. valid may be nil (all values set).
func NewFloat64Column(name string, values []float64, valid []bool) *Column {
	b := array.NewFloat64Builder(memory.NewGoAllocator())
	defer b.Release()
	for i, v := range values {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return &Column{name: name, array: b.NewArray()}
}

// NewBoolColumn creates a boolean column. valid may be nil (all values set).
func NewBoolColumn(name string, values []bool, valid []bool) *Column {
	b := array.NewBooleanBuilder(memory.NewGoAllocator())
	defer b.Release()
	for i, v := range values {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return &Column{name: name, array: b.NewArray()}
}

// NewTimeColumn creates a timestamp column with millisecond precision.
// valid may be nil (all values set). Values are stored in UTC.
func NewTimeColumn(name string, values []time.Time, valid []bool) *Column {
	b := array.NewTimestampBuilder(memory.NewGoAllocator(), timestampType)
	defer b.Release()
	for i, v := range values {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		b.Append(arrow.Timestamp(v.UTC().UnixMilli()))
	}
	return &Column{name: name, array: b.NewArray()}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Len returns the number of rows.
func (c *Column) Len() int { return c.array.Len() }

// Kind returns the semantic type of the column.
func (c *Column) Kind() Kind {
	switch c.array.(type) {
	case *array.String:
		return String
	case *array.Int64:
		return Int64
	case *array.Float64:
		return Float64
	case *array.Boolean:
		return Bool
	case *array.Timestamp:
		return Time
	default:
		return String
	}
}

// DataType returns the underlying Arrow data type.
func (c *Column) DataType() arrow.DataType { return c.array.DataType() }

// IsNull reports whether the value at index is missing.
func (c *Column) IsNull(index int) bool { return c.array.IsNull(index) }

// NullCount returns the number of missing values.
func (c *Column) NullCount() int { return c.array.NullN() }

// Strings extracts values and validity from a string column.
func (c *Column) Strings() ([]string, []bool) {
	arr, ok := c.array.(*array.String)
	if !ok {
		return nil, nil
	}
	values := make([]string, arr.Len())
	valid := make([]bool, arr.Len())
	for i := range arr.Len() {
		if arr.IsNull(i) {
			continue
		}
		values[i] = arr.Value(i)
		valid[i] = true
	}
	return values, valid
}

// Int64s extracts values and validity from an int64 column.
func (c *Column) Int64s() ([]int64, []bool) {
	arr, ok := c.array.(*array.Int64)
	if !ok {
		return nil, nil
	}
	values := make([]int64, arr.Len())
	valid := make([]bool, arr.Len())
	for i := range arr.Len() {
		if arr.IsNull(i) {
			continue
		}
		values[i] = arr.Value(i)
		valid[i] = true
	}
	return values, valid
}

// Float64s extracts values and validity from a float64 column.
func (c *Column) Float64s() ([]float64, []bool) {
	arr, ok := c.array.(*array.Float64)
	if !ok {
		return nil, nil
	}
	values := make([]float64, arr.Len())
	valid := make([]bool, arr.Len())
	for i := range arr.Len() {
		if arr.IsNull(i) {
			continue
		}
		values[i] = arr.Value(i)
		valid[i] = true
	}
	return values, valid
}

// Bools extracts values and validity from a boolean column.
func (c *Column) Bools() ([]bool, []bool) {
	arr, ok := c.array.(*array.Boolean)
	if !ok {
		return nil, nil
	}
	values := make([]bool, arr.Len())
	valid := make([]bool, arr.Len())
	for i := range arr.Len() {
		if arr.IsNull(i) {
			continue
		}
		values[i] = arr.Value(i)
		valid[i] = true
	}
	return values, valid
}

// Times extracts values and validity from a timestamp column.
func (c *Column) Times() ([]time.Time, []bool) {
	arr, ok := c.array.(*array.Timestamp)
	if !ok {
		return nil, nil
	}
	values := make([]time.Time, arr.Len())
	valid := make([]bool, arr.Len())
	for i := range arr.Len() {
		if arr.IsNull(i) {
			continue
		}
		values[i] = time.UnixMilli(int64(arr.Value(i))).UTC()
		valid[i] = true
	}
	return values, valid
}

// Value returns the value at index as an untyped Go value, or nil when missing.
func (c *Column) Value(index int) any {
	if index < 0 || index >= c.array.Len() || c.array.IsNull(index) {
		return nil
	}
	switch arr := c.array.(type) {
	case *array.String:
		return arr.Value(index)
	case *array.Int64:
		return arr.Value(index)
	case *array.Float64:
		return arr.Value(index)
	case *array.Boolean:
		return arr.Value(index)
	case *array.Timestamp:
		return time.UnixMilli(int64(arr.Value(index))).UTC()
	default:
		return nil
	}
}

// filter builds a new column keeping only the rows where keep is true.
func (c *Column) filter(keep []bool) *Column {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	switch arr := c.array.(type) {
	case *array.String:
		values := make([]string, 0, n)
		valid := make([]bool, 0, n)
		for i, k := range keep {
			if !k {
				continue
			}
			values = append(values, arr.Value(i))
			valid = append(valid, !arr.IsNull(i))
		}
		return NewStringColumn(c.name, values, valid)
	case *array.Int64:
		values := make([]int64, 0, n)
		valid := make([]bool, 0, n)
		for i, k := range keep {
			if !k {
				continue
			}
			values = append(values, arr.Value(i))
			valid = append(valid, !arr.IsNull(i))
		}
		return NewInt64Column(c.name, values, valid)
	case *array.Float64:
		values := make([]float64, 0, n)
		valid := make([]bool, 0, n)
		for i, k := range keep {
			if !k {
				continue
			}
			values = append(values, arr.Value(i))
			valid = append(valid, !arr.IsNull(i))
		}
		return NewFloat64Column(c.name, values, valid)
	case *array.Boolean:
		values := make([]bool, 0, n)
		valid := make([]bool, 0, n)
		for i, k := range keep {
			if !k {
				continue
			}
			values = append(values, arr.Value(i))
			valid = append(valid, !arr.IsNull(i))
		}
		return NewBoolColumn(c.name, values, valid)
	case *array.Timestamp:
		values := make([]time.Time, 0, n)
		valid := make([]bool, 0, n)
		for i, k := range keep {
			if !k {
				continue
			}
			values = append(values, time.UnixMilli(int64(arr.Value(i))).UTC())
			valid = append(valid, !arr.IsNull(i))
		}
		return NewTimeColumn(c.name, values, valid)
	default:
		return NewStringColumn(c.name, nil, nil)
	}
}

// Array returns the underlying Arrow array (retains a reference).
func (c *Column) Array() arrow.Array {
	if c.array != nil {
		c.array.Retain()
		return c.array
	}
	return nil
}

// Release releases the underlying Arrow memory.
func (c *Column) Release() {
	if c.array != nil {
		c.array.Release()
	}
}

// String returns a short description of the column.
func (c *Column) String() string {
	return fmt.Sprintf("Column[%s]: %s (len=%d, nulls=%d)", c.Kind(), c.name, c.Len(), c.NullCount())
}
