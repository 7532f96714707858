package warehouse

import (
	"fmt"
	"sort"
	"time"

	"github.com/quarrydata/quarry/internal/table"
)

// Price tiers classify products by mean price.
const (
	TierBudget   = "Budget"
	TierStandard = "Standard"
	TierPremium  = "Premium"
	TierLuxury   = "Luxury"
)

// PriceTier classifies a mean price into one of four fixed bands.
func PriceTier(meanAmount float64) string {
	switch {
	case meanAmount <= 100:
		return TierBudget
	case meanAmount <= 250:
		return TierStandard
	case meanAmount <= 500:
		return TierPremium
	default:
		return TierLuxury
	}
}

// CustomerDim renders the customer dimension: the cleaned customers plus
// derived signup year/month/quarter.
func CustomerDim(customers []Customer) *table.Table {
	n := len(customers)
	ids := make([]int64, n)
	names := make([]string, n)
	emails := make([]string, n)
	signups := make([]time.Time, n)
	countries := make([]string, n)
	years := make([]int64, n)
	months := make([]int64, n)
	quarters := make([]int64, n)
	for i, c := range customers {
		ids[i] = c.ID
		names[i] = c.Name
		emails[i] = c.Email
		signups[i] = c.SignupAt
		countries[i] = c.Country
		years[i] = int64(c.SignupAt.Year())
		months[i] = int64(c.SignupAt.Month())
		quarters[i] = int64((int(c.SignupAt.Month())-1)/3 + 1)
	}
	return table.New(
		table.NewInt64Column("customer_id", ids, nil),
		table.NewStringColumn("name", names, nil),
		table.NewStringColumn("email", emails, nil),
		table.NewTimeColumn("signup_date", signups, nil),
		table.NewStringColumn("country", countries, nil),
		table.NewInt64Column("signup_year", years, nil),
		table.NewInt64Column("signup_month", months, nil),
		table.NewInt64Column("signup_quarter", quarters, nil),
	)
}

// ProductDim renders per-product aggregates with a price-tier classification.
func ProductDim(purchases []Purchase) *table.Table {
	type acc struct {
		min, max, total float64
		count           int64
	}
	byProduct := make(map[string]*acc)
	for _, p := range purchases {
		a, ok := byProduct[p.Product]
		if !ok {
			a = &acc{min: p.Amount, max: p.Amount}
			byProduct[p.Product] = a
		}
		if p.Amount < a.min {
			a.min = p.Amount
		}
		if p.Amount > a.max {
			a.max = p.Amount
		}
		a.total += p.Amount
		a.count++
	}

	products := make([]string, 0, len(byProduct))
	for name := range byProduct {
		products = append(products, name)
	}
	sort.Strings(products)

	n := len(products)
	mins := make([]float64, n)
	maxs := make([]float64, n)
	means := make([]float64, n)
	totals := make([]float64, n)
	counts := make([]int64, n)
	tiers := make([]string, n)
	for i, name := range products {
		a := byProduct[name]
		mins[i] = a.min
		maxs[i] = a.max
		means[i] = a.total / float64(a.count)
		totals[i] = a.total
		counts[i] = a.count
		tiers[i] = PriceTier(means[i])
	}
	return table.New(
		table.NewStringColumn("product", products, nil),
		table.NewFloat64Column("amount_min", mins, nil),
		table.NewFloat64Column("amount_max", maxs, nil),
		table.NewFloat64Column("amount_mean", means, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewInt64Column("purchase_count", counts, nil),
		table.NewStringColumn("price_tier", tiers, nil),
	)
}

// Calendar renders one row per day from start to end inclusive. It is a pure
// function of the two dates and carries no data dependency.
func Calendar(start, end time.Time) *table.Table {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return table.New()
	}

	var (
		dates       []time.Time
		days        []int64
		months      []int64
		years       []int64
		quarters    []int64
		isoWeeks    []int64
		weekdays    []string
		weekdayNums []int64
		weekends    []bool
		monthNames  []string
		quarterKeys []string
	)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		quarter := (int(d.Month())-1)/3 + 1
		_, isoWeek := d.ISOWeek()
		weekdayNum := (int(d.Weekday()) + 6) % 7

		dates = append(dates, d)
		days = append(days, int64(d.Day()))
		months = append(months, int64(d.Month()))
		years = append(years, int64(d.Year()))
		quarters = append(quarters, int64(quarter))
		isoWeeks = append(isoWeeks, int64(isoWeek))
		weekdays = append(weekdays, d.Weekday().String())
		weekdayNums = append(weekdayNums, int64(weekdayNum))
		weekends = append(weekends, weekdayNum >= 5)
		monthNames = append(monthNames, d.Month().String())
		quarterKeys = append(quarterKeys, fmt.Sprintf("%dQ%d", d.Year(), quarter))
	}
	return table.New(
		table.NewTimeColumn("date", dates, nil),
		table.NewInt64Column("day", days, nil),
		table.NewInt64Column("month", months, nil),
		table.NewInt64Column("year", years, nil),
		table.NewInt64Column("quarter", quarters, nil),
		table.NewInt64Column("iso_week", isoWeeks, nil),
		table.NewStringColumn("weekday", weekdays, nil),
		table.NewInt64Column("weekday_num", weekdayNums, nil),
		table.NewBoolColumn("is_weekend", weekends, nil),
		table.NewStringColumn("month_name", monthNames, nil),
		table.NewStringColumn("quarter_label", quarterKeys, nil),
	)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FactTable renders the fact rows as a table for persistence and enrichment.
// Customer attributes are null when the customer is unknown.
func FactTable(facts []FactRow) *table.Table {
	n := len(facts)
	ids := make([]int64, n)
	custIDs := make([]int64, n)
	dates := make([]time.Time, n)
	amounts := make([]float64, n)
	products := make([]string, n)
	countries := make([]string, n)
	signups := make([]time.Time, n)
	hasCustomer := make([]bool, n)
	years := make([]int64, n)
	months := make([]int64, n)
	quarters := make([]int64, n)
	isoWeeks := make([]int64, n)
	weekdays := make([]string, n)
	weekdayNums := make([]int64, n)
	hours := make([]int64, n)
	weekends := make([]bool, n)
	tenures := make([]int64, n)
	monthKeys := make([]string, n)
	weekKeys := make([]string, n)
	for i, f := range facts {
		ids[i] = f.ID
		custIDs[i] = f.CustomerID
		dates[i] = f.At
		amounts[i] = f.Amount
		products[i] = f.Product
		countries[i] = f.Country
		signups[i] = f.SignupAt
		hasCustomer[i] = f.HasCustomer
		years[i] = int64(f.Year)
		months[i] = int64(f.Month)
		quarters[i] = int64(f.Quarter)
		isoWeeks[i] = int64(f.ISOWeek)
		weekdays[i] = f.Weekday
		weekdayNums[i] = int64(f.WeekdayNum)
		hours[i] = int64(f.Hour)
		weekends[i] = f.Weekend
		tenures[i] = int64(f.TenureDays)
		monthKeys[i] = f.MonthKey
		weekKeys[i] = f.WeekKey
	}
	return table.New(
		table.NewInt64Column("purchase_id", ids, nil),
		table.NewInt64Column("customer_id", custIDs, nil),
		table.NewTimeColumn("purchase_date", dates, nil),
		table.NewFloat64Column("amount", amounts, nil),
		table.NewStringColumn("product", products, nil),
		table.NewStringColumn("country", countries, hasCustomer),
		table.NewTimeColumn("signup_date", signups, hasCustomer),
		table.NewInt64Column("year", years, nil),
		table.NewInt64Column("month", months, nil),
		table.NewInt64Column("quarter", quarters, nil),
		table.NewInt64Column("iso_week", isoWeeks, nil),
		table.NewStringColumn("weekday", weekdays, nil),
		table.NewInt64Column("weekday_num", weekdayNums, nil),
		table.NewInt64Column("hour", hours, nil),
		table.NewBoolColumn("is_weekend", weekends, nil),
		table.NewInt64Column("tenure_days", tenures, hasCustomer),
		table.NewStringColumn("month_key", monthKeys, nil),
		table.NewStringColumn("week_key", weekKeys, nil),
	)
}
