package clean

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/quarrydata/quarry/internal/table"
)

var testReference = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func rawCustomers(rows [][]string) *table.Table {
	headers := []string{"customer_id", "name", "email", "signup_date", "country"}
	cols := make([]*table.Column, len(headers))
	for i, name := range headers {
		values := make([]string, len(rows))
		valid := make([]bool, len(rows))
		for r, row := range rows {
			if row[i] != "" {
				values[r] = row[i]
				valid[r] = true
			}
		}
		cols[i] = table.NewStringColumn(name, values, valid)
	}
	return table.New(cols...)
}

func rawPurchases(rows [][]string) *table.Table {
	headers := []string{"purchase_id", "customer_id", "purchase_date", "amount", "product"}
	cols := make([]*table.Column, len(headers))
	for i, name := range headers {
		values := make([]string, len(rows))
		valid := make([]bool, len(rows))
		for r, row := range rows {
			if row[i] != "" {
				values[r] = row[i]
				valid[r] = true
			}
		}
		cols[i] = table.NewStringColumn(name, values, valid)
	}
	return table.New(cols...)
}

func TestCleanCustomersHappyPath(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "alice@example.com", "2023-01-15", "France"},
		{"2", "Bob", "bob@example.com", "2023-02-20", "Germany"},
	})
	out, report := Clean(raw, CustomerSchema(), Options{Reference: testReference})

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 2, report.RowsIn)
	assert.Equal(t, 2, report.RowsOut)
	assert.Equal(t, 0, report.Dropped.Duplicates)

	ids, _ := mustCol(t, out, "customer_id").Int64s()
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestCleanDeduplicatesPrimaryKey(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "alice@example.com", "2023-01-15", "France"},
		{"1", "Alice Again", "alice2@example.com", "2023-01-16", "France"},
		{"2", "Bob", "bob@example.com", "2023-02-20", ""},
	})
	out, report := Clean(raw, CustomerSchema(), Options{Reference: testReference})

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 1, report.Dropped.Duplicates)

	// First occurrence wins.
	names, _ := mustCol(t, out, "name").Strings()
	assert.Equal(t, []string{"Alice", "Bob"}, names)
}

func TestCleanDeduplicatesUniqueEmail(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "same@example.com", "2023-01-15", "France"},
		{"2", "Bob", "same@example.com", "2023-02-20", "Germany"},
	})
	out, report := Clean(raw, CustomerSchema(), Options{Reference: testReference})

	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 1, report.Dropped.Duplicates)
}

func TestCleanDropsFutureDates(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "alice@example.com", "2023-01-15", "France"},
		{"2", "Eve", "eve@example.com", "2031-01-01", "France"},
	})
	out, report := Clean(raw, CustomerSchema(), Options{Reference: testReference})

	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 1, report.Dropped.FutureDates)
}

func TestCleanFillsCountry(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "alice@example.com", "2023-01-15", ""},
	})
	out, _ := Clean(raw, CustomerSchema(), Options{Reference: testReference})

	countries, valid := mustCol(t, out, "country").Strings()
	assert.Equal(t, []string{"UNKNOWN"}, countries)
	assert.Equal(t, []bool{true}, valid)
}

func TestCleanDropsInvalidEmail(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "alice@example.com", "2023-01-15", "France"},
		{"2", "Bob", "not-an-email", "2023-02-20", "Germany"},
	})
	out, report := Clean(raw, CustomerSchema(), Options{Reference: testReference})

	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 1, report.Dropped.Invalid)
}

func TestCleanDropsMissingCriticalFields(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "alice@example.com", "2023-01-15", "France"},
		{"", "Ghost", "ghost@example.com", "2023-03-01", "Spain"},
		{"3", "", "noname@example.com", "2023-03-02", "Spain"},
	})
	out, report := Clean(raw, CustomerSchema(), Options{Reference: testReference})

	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 2, report.Dropped.Missing)
}

func TestCleanPurchaseBounds(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		kept   bool
	}{
		{"zero is out", "0", false},
		{"negative is out", "-5", false},
		{"small positive is in", "0.01", true},
		{"upper bound inclusive", "10000", true},
		{"above upper bound", "10000.01", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawPurchases([][]string{
				{"1", "1", "2023-05-01", tt.amount, "Laptop"},
			})
			out, report := Clean(raw, PurchaseSchema(), Options{
				Reference: testReference,
				ValidKeys: map[int64]struct{}{1: {}},
			})
			if tt.kept {
				assert.Equal(t, 1, out.Len())
			} else {
				assert.Equal(t, 0, out.Len())
				assert.Equal(t, 1, report.Dropped.OutOfBounds)
			}
		})
	}
}

func TestCleanReferentialIntegrity(t *testing.T) {
	raw := rawPurchases([][]string{
		{"1", "1", "2023-05-01", "100", "Laptop"},
		{"2", "99", "2023-05-02", "50", "Mouse"},
	})
	out, report := Clean(raw, PurchaseSchema(), Options{
		Reference: testReference,
		ValidKeys: map[int64]struct{}{1: {}},
	})

	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 1, report.Dropped.InvalidRefs)

	ids, _ := mustCol(t, out, "customer_id").Int64s()
	assert.Equal(t, []int64{1}, ids)
}

func TestCleanCoercionFailureBecomesMissing(t *testing.T) {
	raw := rawPurchases([][]string{
		{"1", "1", "2023-05-01", "not-a-number", "Laptop"},
	})
	out, report := Clean(raw, PurchaseSchema(), Options{
		Reference: testReference,
		ValidKeys: map[int64]struct{}{1: {}},
	})

	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 1, report.Dropped.Missing)
}

func TestCleanEmptyInput(t *testing.T) {
	out, report := Clean(nil, CustomerSchema(), Options{Reference: testReference})

	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 0, report.RowsIn)
	assert.Equal(t, []string{"customer_id", "name", "email", "signup_date", "country"}, out.Columns())
	assert.True(t, report.Pass())
}

func TestCleanQualityChecks(t *testing.T) {
	raw := rawCustomers([][]string{
		{"1", "Alice", "alice@example.com", "2023-01-15", "France"},
		{"2", "Bob", "bob@example.com", "2023-02-20", "Germany"},
	})
	_, report := Clean(raw, CustomerSchema(), Options{
		Reference: testReference,
		Rules:     CustomerRules(),
	})

	require.NotEmpty(t, report.Checks)
	assert.True(t, report.Pass())
	for _, check := range report.Checks {
		assert.True(t, check.Pass, "check %s: %s", check.Name, check.Details)
	}
}

func TestExtractKeys(t *testing.T) {
	tbl := table.New(table.NewInt64Column("customer_id", []int64{1, 2, 2}, []bool{true, true, false}))
	keys := ExtractKeys(tbl, "customer_id")
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, keys)

	assert.Empty(t, ExtractKeys(tbl, "missing"))
}

func TestFillStatisticMean(t *testing.T) {
	cd := colData{
		name:   "v",
		kind:   table.Float64,
		floats: []float64{10, 0, 20},
		valid:  []bool{true, false, true},
	}
	fillStatistic(&cd)
	assert.Equal(t, []float64{10, 15, 20}, cd.floats)
	assert.Equal(t, []bool{true, true, true}, cd.valid)
}

func TestMostFrequentDeterministicTie(t *testing.T) {
	cd := colData{
		name:  "c",
		kind:  table.String,
		strs:  []string{"b", "a", "b", "a"},
		valid: []bool{true, true, true, true},
	}
	mode, ok := mostFrequent(&cd)
	require.True(t, ok)
	assert.Equal(t, "a", mode)
}

func TestForwardFill(t *testing.T) {
	cd := colData{
		name:  "c",
		kind:  table.String,
		strs:  []string{"", "x", "", ""},
		valid: []bool{false, true, false, false},
	}
	forwardFill(&cd)
	assert.Equal(t, []string{"", "x", "x", "x"}, cd.strs)
	assert.Equal(t, []bool{false, true, true, true}, cd.valid)
}

func TestCleanBoundsOnIntColumn(t *testing.T) {
	raw := table.New(
		table.NewStringColumn("order_id", []string{"1", "2", "3"}, nil),
		table.NewStringColumn("quantity", []string{"5", "0", "20000"}, nil),
	)
	schema := Schema{
		Name: "orders",
		Columns: map[string]ColumnSpec{
			"order_id": {Kind: table.Int64, Policy: DropRow},
			"quantity": {Kind: table.Int64, Policy: DropRow, Bounds: &Bounds{Min: 0, Max: 10000}},
		},
		Order:      []string{"order_id", "quantity"},
		PrimaryKey: "order_id",
	}

	out, report := Clean(raw, schema, Options{Reference: testReference})

	// Bounds are (Min, Max]: 0 and 20000 are out, 5 stays.
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 2, report.Dropped.OutOfBounds)
	assert.Equal(t, []int64{5}, intValues(t, out, "quantity"))
}

func TestCleanWarnsOnMissingSchemaColumn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	raw := table.New(table.NewStringColumn("order_id", []string{"1"}, nil))
	schema := Schema{
		Name: "orders",
		Columns: map[string]ColumnSpec{
			"order_id": {Kind: table.Int64, Policy: DropRow},
			"amount":   {Kind: table.Float64, Policy: DropRow},
		},
		Order:      []string{"order_id", "amount"},
		PrimaryKey: "order_id",
	}

	out, _ := Clean(raw, schema, Options{Reference: testReference, Logger: zap.New(core).Sugar()})

	assert.Equal(t, 1, out.Len())
	entries := logs.FilterMessage("schema column missing from input, skipped").All()
	require.Len(t, entries, 1)
	assert.Contains(t, fmt.Sprint(entries[0].ContextMap()["error"]), "column 'amount'")
}

func intValues(t *testing.T, tbl *table.Table, name string) []int64 {
	t.Helper()
	values, valid := mustCol(t, tbl, name).Int64s()
	for i, ok := range valid {
		require.True(t, ok, "row %d of %s is null", i, name)
	}
	return values
}

func mustCol(t *testing.T, tbl *table.Table, name string) *table.Column {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	return col
}
