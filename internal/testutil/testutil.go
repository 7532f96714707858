// Package testutil provides shared helpers for building raw and cleaned test
// tables across the pipeline packages.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/table"
)

// MustTime parses an RFC 3339 timestamp or fails the test.
func MustTime(tb testing.TB, value string) time.Time {
	tb.Helper()
	at, err := time.Parse(time.RFC3339, value)
	require.NoError(tb, err)
	return at
}

// MustDate parses a YYYY-MM-DD date or fails the test.
func MustDate(tb testing.TB, value string) time.Time {
	tb.Helper()
	at, err := time.Parse("2006-01-02", value)
	require.NoError(tb, err)
	return at
}

// RawTable builds an all-string table the way the CSV source would produce
// it: one column per header, empty cells marked invalid.
func RawTable(headers []string, rows [][]string) *table.Table {
	cols := make([]*table.Column, len(headers))
	for i, name := range headers {
		values := make([]string, len(rows))
		valid := make([]bool, len(rows))
		for r, row := range rows {
			if i < len(row) && row[i] != "" {
				values[r] = row[i]
				valid[r] = true
			}
		}
		cols[i] = table.NewStringColumn(name, values, valid)
	}
	return table.New(cols...)
}

// Float64Values returns a column's values, failing the test on a missing
// column.
func Float64Values(tb testing.TB, t *table.Table, name string) []float64 {
	tb.Helper()
	col, ok := t.Column(name)
	require.True(tb, ok, "column %s", name)
	values, _ := col.Float64s()
	return values
}

// Int64Values returns a column's values, failing the test on a missing
// column.
func Int64Values(tb testing.TB, t *table.Table, name string) []int64 {
	tb.Helper()
	col, ok := t.Column(name)
	require.True(tb, ok, "column %s", name)
	values, _ := col.Int64s()
	return values
}

// StringValues returns a column's values, failing the test on a missing
// column.
func StringValues(tb testing.TB, t *table.Table, name string) []string {
	tb.Helper()
	col, ok := t.Column(name)
	require.True(tb, ok, "column %s", name)
	values, _ := col.Strings()
	return values
}
