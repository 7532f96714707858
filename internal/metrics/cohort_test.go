package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/testutil"
	"github.com/quarrydata/quarry/internal/warehouse"
)

func TestCohortAge(t *testing.T) {
	assert.Equal(t, 3, cohortAge(2023, 1, 2023, 4))
	assert.Equal(t, 3, cohortAge(2023, 11, 2024, 2))
	assert.Equal(t, 0, cohortAge(2023, 5, 2023, 5))
	assert.Equal(t, -1, cohortAge(2023, 3, 2023, 2))
}

func TestCohortTables(t *testing.T) {
	customers := []warehouse.Customer{
		{ID: 1, SignupAt: testutil.MustDate(t, "2023-01-10"), Country: "JP"},
		{ID: 2, SignupAt: testutil.MustDate(t, "2023-01-20"), Country: "US"},
		{ID: 3, SignupAt: testutil.MustDate(t, "2023-03-05"), Country: "JP"},
	}
	purchases := []warehouse.Purchase{
		{ID: 1, CustomerID: 1, At: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), Amount: 100, Product: "widget"},
		{ID: 2, CustomerID: 2, At: time.Date(2023, 1, 25, 0, 0, 0, 0, time.UTC), Amount: 30, Product: "widget"},
		{ID: 3, CustomerID: 1, At: time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC), Amount: 50, Product: "gadget"},
		{ID: 4, CustomerID: 3, At: time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), Amount: 40, Product: "widget"},
		// Purchase before the signup month: kept with a negative age.
		{ID: 5, CustomerID: 3, At: time.Date(2023, 2, 20, 0, 0, 0, 0, time.UTC), Amount: 999, Product: "widget"},
		// No matching customer: no signup date, excluded.
		{ID: 6, CustomerID: 99, At: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), Amount: 888, Product: "widget"},
	}
	outs := Cohorts{}.Tables(buildInput(customers, purchases))

	revenue := mustTable(t, outs, "analytics_cohort_revenue")
	require.Equal(t, 4, revenue.Len())
	assert.Equal(t, []string{"2023-01", "2023-01", "2023-03", "2023-03"}, testutil.StringValues(t, revenue, "cohort_month"))
	assert.Equal(t, []int64{0, 3, -1, 0}, testutil.Int64Values(t, revenue, "cohort_age_months"))
	assert.Equal(t, []float64{130, 50, 999, 40}, testutil.Float64Values(t, revenue, "revenue_total"))
	assert.Equal(t, []int64{2, 1, 1, 1}, testutil.Int64Values(t, revenue, "order_count"))
	assert.Equal(t, []int64{2, 1, 1, 1}, testutil.Int64Values(t, revenue, "active_customers"))

	retention := mustTable(t, outs, "analytics_cohort_retention")
	require.Equal(t, 4, retention.Len())
	pct := testutil.Float64Values(t, retention, "retention_pct")
	assert.InDelta(t, 100, pct[0], 1e-9)
	assert.InDelta(t, 50, pct[1], 1e-9)
	assert.InDelta(t, 100, pct[2], 1e-9)
	assert.InDelta(t, 100, pct[3], 1e-9)

	totals := mustTable(t, outs, "analytics_cohort_totals")
	require.Equal(t, 2, totals.Len())
	assert.Equal(t, []string{"2023-01", "2023-03"}, testutil.StringValues(t, totals, "cohort_month"))
	assert.Equal(t, []int64{2, 1}, testutil.Int64Values(t, totals, "cohort_size"))
	assert.Equal(t, []float64{180, 1039}, testutil.Float64Values(t, totals, "revenue_total"))
	assert.Equal(t, []int64{3, 2}, testutil.Int64Values(t, totals, "order_count"))
	assert.Equal(t, []float64{90, 1039}, testutil.Float64Values(t, totals, "revenue_per_customer"))
	assert.Equal(t, []int64{3, 0}, testutil.Int64Values(t, totals, "active_months_span"))
}

func TestCohortEmpty(t *testing.T) {
	outs := Cohorts{}.Tables(Input{Reference: testReference})
	for _, name := range []string{"analytics_cohort_revenue", "analytics_cohort_totals", "analytics_cohort_retention"} {
		assert.Equal(t, 0, mustTable(t, outs, name).Len())
	}
}
