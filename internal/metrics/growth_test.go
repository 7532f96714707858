package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/testutil"
	"github.com/quarrydata/quarry/internal/warehouse"
)

func TestGrowthPct(t *testing.T) {
	assert.Equal(t, 50.0, growthPct(150, 100))
	assert.Equal(t, -40.0, growthPct(90, 150))
	assert.Equal(t, 0.0, growthPct(100, 0))
}

func TestAnnualizedRate(t *testing.T) {
	assert.InDelta(t, 1.0, annualizedRate(100, 200, 12), 1e-9)
	assert.InDelta(t, 3.0, annualizedRate(100, 200, 6), 1e-9)
	assert.Equal(t, 0.0, annualizedRate(0, 200, 12))
	assert.Equal(t, 0.0, annualizedRate(-5, 200, 12))
	assert.Equal(t, 0.0, annualizedRate(100, 200, 0))
}

func TestSameMonthPriorYear(t *testing.T) {
	assert.Equal(t, "2023-03", sameMonthPriorYear("2024-03"))
	assert.Equal(t, "2022-12", sameMonthPriorYear("2023-12"))
	assert.Equal(t, "", sameMonthPriorYear("garbage"))
}

func monthlyPurchase(id int64, at string, amount float64) warehouse.Purchase {
	t, _ := time.Parse("2006-01-02", at)
	return warehouse.Purchase{ID: id, CustomerID: 1, At: t, Amount: amount, Product: "widget"}
}

func TestGrowthTables(t *testing.T) {
	purchases := []warehouse.Purchase{
		monthlyPurchase(1, "2024-01-15", 100),
		monthlyPurchase(2, "2024-02-15", 150),
		monthlyPurchase(3, "2024-03-15", 90),
	}
	outs := Growth{}.Tables(buildInput(nil, purchases))

	monthly := mustTable(t, outs, "kpi_growth_monthly")
	require.Equal(t, 3, monthly.Len())
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, testutil.StringValues(t, monthly, "month"))
	assert.Equal(t, []float64{100, 150, 90}, testutil.Float64Values(t, monthly, "revenue_total"))

	mom := testutil.Float64Values(t, monthly, "mom_growth_pct")
	assert.Equal(t, 0.0, mom[0])
	assert.InDelta(t, 50.0, mom[1], 1e-9)
	assert.InDelta(t, -40.0, mom[2], 1e-9)

	// No month has a same-month prior year, so every yoy cell is null.
	yoyCol, ok := monthly.Column("yoy_growth_pct")
	require.True(t, ok)
	_, yoyValid := yoyCol.Float64s()
	assert.Equal(t, []bool{false, false, false}, yoyValid)

	summary := mustTable(t, outs, "kpi_growth_summary")
	require.Equal(t, 1, summary.Len())
	assert.Equal(t, []int64{3}, testutil.Int64Values(t, summary, "month_count"))
	assert.InDelta(t, 5.0, testutil.Float64Values(t, summary, "mom_growth_mean_pct")[0], 1e-9)
	// (90/100)^(12/3) - 1 = -34.39%.
	assert.InDelta(t, -34.39, testutil.Float64Values(t, summary, "annualized_growth_pct")[0], 1e-9)
	assert.Equal(t, []string{"2024-02"}, testutil.StringValues(t, summary, "best_month"))
	assert.InDelta(t, 50.0, testutil.Float64Values(t, summary, "best_month_growth_pct")[0], 1e-9)
	assert.Equal(t, []string{"2024-03"}, testutil.StringValues(t, summary, "worst_month"))
	assert.InDelta(t, -40.0, testutil.Float64Values(t, summary, "worst_month_growth_pct")[0], 1e-9)
}

func TestGrowthYearOverYear(t *testing.T) {
	purchases := []warehouse.Purchase{
		monthlyPurchase(1, "2023-02-10", 100),
		monthlyPurchase(2, "2024-02-10", 150),
	}
	outs := Growth{}.Tables(buildInput(nil, purchases))

	monthly := mustTable(t, outs, "kpi_growth_monthly")
	require.Equal(t, 2, monthly.Len())
	yoyCol, ok := monthly.Column("yoy_growth_pct")
	require.True(t, ok)
	yoy, yoyValid := yoyCol.Float64s()
	assert.Equal(t, []bool{false, true}, yoyValid)
	assert.InDelta(t, 50.0, yoy[1], 1e-9)
}

func TestGrowthEmpty(t *testing.T) {
	outs := Growth{}.Tables(Input{Reference: testReference})
	assert.Equal(t, 0, mustTable(t, outs, "kpi_growth_monthly").Len())

	summary := mustTable(t, outs, "kpi_growth_summary")
	require.Equal(t, 1, summary.Len())
	assert.Equal(t, []int64{0}, testutil.Int64Values(t, summary, "month_count"))
	assert.Equal(t, []string{""}, testutil.StringValues(t, summary, "best_month"))
}
