package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/testutil"
	"github.com/quarrydata/quarry/internal/warehouse"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{0, StatusActive},
		{30, StatusActive},
		{31, StatusAtRisk},
		{90, StatusAtRisk},
		{91, StatusInactive},
		{180, StatusInactive},
		{181, StatusChurned},
		{500, StatusChurned},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.days), "days %d", tt.days)
	}
}

func TestRetentionTables(t *testing.T) {
	purchases := []warehouse.Purchase{
		{ID: 1, CustomerID: 1, At: time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), Amount: 100, Product: "widget"},
		{ID: 2, CustomerID: 1, At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Amount: 50, Product: "widget"},
		{ID: 3, CustomerID: 2, At: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Amount: 30, Product: "gadget"},
		{ID: 4, CustomerID: 3, At: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Amount: 20, Product: "gadget"},
	}
	outs := Retention{}.Tables(buildInput(nil, purchases))

	detail := mustTable(t, outs, "kpi_retention_detail")
	require.Equal(t, 3, detail.Len())
	assert.Equal(t, []int64{1, 2, 3}, testutil.Int64Values(t, detail, "customer_id"))
	assert.Equal(t, []int64{10, 122, 547}, testutil.Int64Values(t, detail, "inactive_days"))
	assert.Equal(t, []int64{2, 1, 1}, testutil.Int64Values(t, detail, "order_count"))
	assert.Equal(t, []string{StatusActive, StatusInactive, StatusChurned}, testutil.StringValues(t, detail, "status"))

	recurringCol, ok := detail.Column("is_recurring")
	require.True(t, ok)
	recurring, _ := recurringCol.Bools()
	assert.Equal(t, []bool{true, false, false}, recurring)

	summary := mustTable(t, outs, "kpi_retention_summary")
	require.Equal(t, 3, summary.Len())
	assert.Equal(t, []string{StatusActive, StatusChurned, StatusInactive}, testutil.StringValues(t, summary, "status"))
	assert.Equal(t, []int64{1, 1, 1}, testutil.Int64Values(t, summary, "customer_count"))

	global := mustTable(t, outs, "kpi_retention_global")
	require.Equal(t, 1, global.Len())
	assert.Equal(t, []int64{3}, testutil.Int64Values(t, global, "total_customers"))
	assert.Equal(t, []int64{1}, testutil.Int64Values(t, global, "active_customers"))
	assert.Equal(t, []int64{1}, testutil.Int64Values(t, global, "recurring_customers"))
	assert.Equal(t, []int64{1}, testutil.Int64Values(t, global, "churned_customers"))
	third := 100.0 / 3
	assert.InDelta(t, third, testutil.Float64Values(t, global, "retention_rate_30d")[0], 1e-9)
	assert.InDelta(t, third, testutil.Float64Values(t, global, "recurrence_rate")[0], 1e-9)
	assert.InDelta(t, third, testutil.Float64Values(t, global, "churn_rate")[0], 1e-9)
	assert.InDelta(t, third, testutil.Float64Values(t, global, "retention_30d")[0], 1e-9)
	assert.InDelta(t, third, testutil.Float64Values(t, global, "retention_90d")[0], 1e-9)
	assert.InDelta(t, 2*third, testutil.Float64Values(t, global, "retention_180d")[0], 1e-9)
	assert.InDelta(t, 2*third, testutil.Float64Values(t, global, "retention_365d")[0], 1e-9)
}

func TestRetentionEmpty(t *testing.T) {
	outs := Retention{}.Tables(Input{Reference: testReference})
	assert.Equal(t, 0, mustTable(t, outs, "kpi_retention_detail").Len())
	assert.Equal(t, 0, mustTable(t, outs, "kpi_retention_summary").Len())

	global := mustTable(t, outs, "kpi_retention_global")
	require.Equal(t, 1, global.Len())
	assert.Equal(t, []int64{0}, testutil.Int64Values(t, global, "total_customers"))
	assert.Equal(t, []float64{0}, testutil.Float64Values(t, global, "churn_rate"))
}
