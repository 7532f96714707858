package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/table"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceTier(t *testing.T) {
	tests := []struct {
		mean float64
		want string
	}{
		{50, TierBudget},
		{100, TierBudget},
		{100.01, TierStandard},
		{250, TierStandard},
		{251, TierPremium},
		{500, TierPremium},
		{500.5, TierLuxury},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriceTier(tt.mean), "mean %v", tt.mean)
	}
}

func TestDecodeCustomersSkipsBrokenRows(t *testing.T) {
	tbl := table.New(
		table.NewInt64Column("customer_id", []int64{1, 0, 3}, []bool{true, false, true}),
		table.NewStringColumn("name", []string{"Alice", "Ghost", "Carol"}, nil),
		table.NewStringColumn("email", []string{"a@x.com", "g@x.com", "c@x.com"}, nil),
		table.NewTimeColumn("signup_date",
			[]time.Time{date(2023, 1, 15), date(2023, 2, 1), {}},
			[]bool{true, true, false}),
		table.NewStringColumn("country", []string{"France", "Spain", "Italy"}, []bool{true, true, false}),
	)
	customers := DecodeCustomers(tbl)

	require.Len(t, customers, 1)
	assert.Equal(t, int64(1), customers[0].ID)
	assert.Equal(t, "France", customers[0].Country)
}

func TestDecodeCustomersCountryFallback(t *testing.T) {
	tbl := table.New(
		table.NewInt64Column("customer_id", []int64{1}, nil),
		table.NewStringColumn("name", []string{"Alice"}, nil),
		table.NewStringColumn("email", []string{"a@x.com"}, nil),
		table.NewTimeColumn("signup_date", []time.Time{date(2023, 1, 15)}, nil),
		table.NewStringColumn("country", []string{""}, []bool{false}),
	)
	customers := DecodeCustomers(tbl)
	require.Len(t, customers, 1)
	assert.Equal(t, "UNKNOWN", customers[0].Country)
}

func TestBuildFactsJoinAndDerivedFields(t *testing.T) {
	customers := []Customer{
		{ID: 1, Name: "Alice", Country: "France", SignupAt: date(2023, 1, 1)},
	}
	purchases := []Purchase{
		// Saturday 14:30.
		{ID: 10, CustomerID: 1, At: time.Date(2023, 4, 15, 14, 30, 0, 0, time.UTC), Amount: 100, Product: "Laptop"},
		// Unknown customer.
		{ID: 11, CustomerID: 99, At: date(2023, 4, 17), Amount: 50, Product: "Mouse"},
	}
	facts := BuildFacts(purchases, customers)
	require.Len(t, facts, 2)

	joined := facts[0]
	assert.True(t, joined.HasCustomer)
	assert.Equal(t, "France", joined.Country)
	assert.Equal(t, 104, joined.TenureDays)
	assert.Equal(t, 2023, joined.Year)
	assert.Equal(t, 4, joined.Month)
	assert.Equal(t, 2, joined.Quarter)
	assert.Equal(t, "Saturday", joined.Weekday)
	assert.Equal(t, 5, joined.WeekdayNum)
	assert.Equal(t, 14, joined.Hour)
	assert.True(t, joined.Weekend)
	assert.Equal(t, "2023-04", joined.MonthKey)
	assert.Equal(t, "2023-W15", joined.WeekKey)

	orphan := facts[1]
	assert.False(t, orphan.HasCustomer)
	assert.Empty(t, orphan.Country)
	assert.Equal(t, 0, orphan.WeekdayNum) // Monday
	assert.False(t, orphan.Weekend)
}

func TestBuildFactsISOWeekYearBoundary(t *testing.T) {
	// 2024-12-30 is a Monday belonging to ISO week 1 of 2025.
	purchases := []Purchase{
		{ID: 1, CustomerID: 1, At: date(2024, 12, 30), Amount: 10, Product: "X"},
	}
	facts := BuildFacts(purchases, nil)
	require.Len(t, facts, 1)
	assert.Equal(t, "2025-W01", facts[0].WeekKey)
	assert.Equal(t, "2024-12", facts[0].MonthKey)
}

func TestCustomerDim(t *testing.T) {
	customers := []Customer{
		{ID: 1, Name: "Alice", Email: "a@x.com", Country: "France", SignupAt: date(2023, 8, 20)},
	}
	dim := CustomerDim(customers)

	assert.Equal(t, 1, dim.Len())
	years, _ := mustCol(t, dim, "signup_year").Int64s()
	months, _ := mustCol(t, dim, "signup_month").Int64s()
	quarters, _ := mustCol(t, dim, "signup_quarter").Int64s()
	assert.Equal(t, []int64{2023}, years)
	assert.Equal(t, []int64{8}, months)
	assert.Equal(t, []int64{3}, quarters)
}

func TestProductDim(t *testing.T) {
	purchases := []Purchase{
		{ID: 1, CustomerID: 1, At: date(2023, 1, 1), Amount: 80, Product: "Mouse"},
		{ID: 2, CustomerID: 1, At: date(2023, 1, 2), Amount: 120, Product: "Mouse"},
		{ID: 3, CustomerID: 2, At: date(2023, 1, 3), Amount: 900, Product: "Laptop"},
	}
	dim := ProductDim(purchases)

	products, _ := mustCol(t, dim, "product").Strings()
	assert.Equal(t, []string{"Laptop", "Mouse"}, products)

	means, _ := mustCol(t, dim, "amount_mean").Float64s()
	assert.Equal(t, []float64{900, 100}, means)

	tiers, _ := mustCol(t, dim, "price_tier").Strings()
	assert.Equal(t, []string{TierLuxury, TierBudget}, tiers)
}

func TestCalendar(t *testing.T) {
	cal := Calendar(date(2024, 2, 27), date(2024, 3, 2))
	assert.Equal(t, 5, cal.Len()) // leap February

	labels, _ := mustCol(t, cal, "quarter_label").Strings()
	assert.Equal(t, "2024Q1", labels[0])

	weekdayNums, _ := mustCol(t, cal, "weekday_num").Int64s()
	assert.Equal(t, int64(1), weekdayNums[0]) // Tuesday

	t.Run("reversed range is empty", func(t *testing.T) {
		assert.Equal(t, 0, Calendar(date(2024, 3, 2), date(2024, 2, 27)).Len())
	})
}

func TestFactTableNullsForUnknownCustomer(t *testing.T) {
	facts := BuildFacts([]Purchase{
		{ID: 1, CustomerID: 99, At: date(2023, 5, 1), Amount: 42, Product: "X"},
	}, nil)
	tbl := FactTable(facts)

	assert.Equal(t, 1, tbl.Len())
	assert.True(t, mustCol(t, tbl, "country").IsNull(0))
	assert.True(t, mustCol(t, tbl, "signup_date").IsNull(0))
	assert.True(t, mustCol(t, tbl, "tenure_days").IsNull(0))
	assert.False(t, mustCol(t, tbl, "amount").IsNull(0))
}

func mustCol(t *testing.T, tbl *table.Table, name string) *table.Column {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	return col
}
