package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/testutil"
	"github.com/quarrydata/quarry/internal/warehouse"
)

func TestDescribeConstant(t *testing.T) {
	d := describe("order_amount", []float64{5, 5})
	require.Equal(t, 1, d.Len())
	assert.Equal(t, []string{"order_amount"}, testutil.StringValues(t, d, "subject"))
	assert.Equal(t, []int64{2}, testutil.Int64Values(t, d, "count"))
	assert.Equal(t, []float64{5}, testutil.Float64Values(t, d, "mean"))
	assert.Equal(t, []float64{5}, testutil.Float64Values(t, d, "median"))
	assert.Equal(t, []float64{0}, testutil.Float64Values(t, d, "std"))
	assert.Equal(t, []float64{5}, testutil.Float64Values(t, d, "min"))
	assert.Equal(t, []float64{5}, testutil.Float64Values(t, d, "max"))
	assert.Equal(t, []float64{5}, testutil.Float64Values(t, d, "p25"))
	assert.Equal(t, []float64{5}, testutil.Float64Values(t, d, "p99"))
	assert.Equal(t, []float64{0}, testutil.Float64Values(t, d, "skewness"))
	assert.Equal(t, []float64{0}, testutil.Float64Values(t, d, "kurtosis"))
	assert.Equal(t, []int64{0}, testutil.Int64Values(t, d, "outlier_count"))
}

func TestDescribeShape(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 1000}
	d := describe("order_amount", values)
	require.Equal(t, 1, d.Len())

	assert.Equal(t, []int64{11}, testutil.Int64Values(t, d, "count"))
	assert.Equal(t, []float64{10}, testutil.Float64Values(t, d, "min"))
	assert.Equal(t, []float64{1000}, testutil.Float64Values(t, d, "max"))

	// Quantiles and deciles must be monotone and agree where they overlap.
	median := testutil.Float64Values(t, d, "median")[0]
	p25 := testutil.Float64Values(t, d, "p25")[0]
	p75 := testutil.Float64Values(t, d, "p75")[0]
	assert.LessOrEqual(t, p25, median)
	assert.LessOrEqual(t, median, p75)
	assert.Equal(t, testutil.Float64Values(t, d, "decile_5"), []float64{median})
	prev := testutil.Float64Values(t, d, "decile_1")[0]
	for _, name := range []string{"decile_2", "decile_3", "decile_4", "decile_5", "decile_6", "decile_7", "decile_8", "decile_9"} {
		cur := testutil.Float64Values(t, d, name)[0]
		assert.GreaterOrEqual(t, cur, prev, name)
		prev = cur
	}

	// The single extreme dominates both shape measures and the Tukey fence.
	assert.Greater(t, testutil.Float64Values(t, d, "skewness")[0], 0.0)
	assert.Equal(t, []int64{1}, testutil.Int64Values(t, d, "outlier_count"))
	assert.InDelta(t, 100.0/11, testutil.Float64Values(t, d, "outlier_pct")[0], 1e-9)
}

func TestDistributionsTables(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	purchases := []warehouse.Purchase{
		{ID: 1, CustomerID: 1, At: at, Amount: 100, Product: "widget"},
		{ID: 2, CustomerID: 1, At: at, Amount: 50, Product: "gadget"},
		{ID: 3, CustomerID: 2, At: at, Amount: 30, Product: "widget"},
	}
	outs := Distributions{}.Tables(buildInput(nil, purchases))

	orders := mustTable(t, outs, "analytics_distribution_summary")
	assert.Equal(t, []int64{3}, testutil.Int64Values(t, orders, "count"))
	assert.Equal(t, []float64{60}, testutil.Float64Values(t, orders, "mean"))

	// Per-customer and per-product totals collapse to one value per entity.
	byCustomer := mustTable(t, outs, "analytics_distribution_customers")
	assert.Equal(t, []int64{2}, testutil.Int64Values(t, byCustomer, "count"))
	assert.Equal(t, []float64{90}, testutil.Float64Values(t, byCustomer, "mean"))
	byProduct := mustTable(t, outs, "analytics_distribution_products")
	assert.Equal(t, []int64{2}, testutil.Int64Values(t, byProduct, "count"))
	assert.Equal(t, []float64{130}, testutil.Float64Values(t, byProduct, "max"))
}

func TestDistributionsEmpty(t *testing.T) {
	outs := Distributions{}.Tables(Input{Reference: testReference})
	for _, name := range []string{
		"analytics_distribution_summary",
		"analytics_distribution_customers",
		"analytics_distribution_products",
	} {
		d := mustTable(t, outs, name)
		require.Equal(t, 1, d.Len())
		assert.Equal(t, []int64{0}, testutil.Int64Values(t, d, "count"))
		assert.Equal(t, []float64{0}, testutil.Float64Values(t, d, "mean"))
		assert.Equal(t, []float64{0}, testutil.Float64Values(t, d, "outlier_pct"))
	}
}
