// Package warehouse builds the dimensional model: typed records decoded from
// cleaned tables, the customer/product/calendar dimensions and the enriched
// purchase fact table every aggregator consumes.
package warehouse

import (
	"fmt"
	"time"

	"github.com/quarrydata/quarry/internal/table"
)

// Customer is a cleaned customer record.
type Customer struct {
	ID       int64
	Name     string
	Email    string
	SignupAt time.Time
	Country  string
}

// Purchase is a cleaned purchase record.
type Purchase struct {
	ID         int64
	CustomerID int64
	At         time.Time
	Amount     float64
	Product    string
}

// FactRow is a purchase joined with its customer's attributes plus derived
// temporal fields. HasCustomer is false when the customer is missing from the
// dimension; the row is kept with null customer attributes (left join).
type FactRow struct {
	Purchase
	HasCustomer bool
	Country     string
	SignupAt    time.Time

	Year       int
	Month      int
	Quarter    int
	ISOWeek    int
	Weekday    string
	WeekdayNum int // Monday=0 .. Sunday=6
	Hour       int
	Weekend    bool

	// TenureDays is the customer's age in days at purchase time. Only
	// meaningful when HasCustomer is true.
	TenureDays int

	MonthKey string // 2006-01
	WeekKey  string // {iso-year}-W{2-digit iso-week}
}

// DecodeCustomers converts a cleaned customers table into typed records.
// Rows with a missing id or signup date are skipped.
func DecodeCustomers(t *table.Table) []Customer {
	if t == nil || t.Len() == 0 {
		return nil
	}
	ids, idOK := columnInt64s(t, "customer_id")
	names, _ := columnStrings(t, "name")
	emails, _ := columnStrings(t, "email")
	signups, signupOK := columnTimes(t, "signup_date")
	countries, countryOK := columnStrings(t, "country")

	customers := make([]Customer, 0, t.Len())
	for i := range t.Len() {
		if !idOK[i] || !signupOK[i] {
			continue
		}
		c := Customer{ID: ids[i], SignupAt: signups[i]}
		if names != nil {
			c.Name = names[i]
		}
		if emails != nil {
			c.Email = emails[i]
		}
		if countries != nil && countryOK[i] {
			c.Country = countries[i]
		} else {
			c.Country = "UNKNOWN"
		}
		customers = append(customers, c)
	}
	return customers
}

// DecodePurchases converts a cleaned purchases table into typed records.
// Rows missing any of id, customer id, date or amount are skipped.
func DecodePurchases(t *table.Table) []Purchase {
	if t == nil || t.Len() == 0 {
		return nil
	}
	ids, idOK := columnInt64s(t, "purchase_id")
	custIDs, custOK := columnInt64s(t, "customer_id")
	dates, dateOK := columnTimes(t, "purchase_date")
	amounts, amountOK := columnFloat64s(t, "amount")
	products, productOK := columnStrings(t, "product")

	purchases := make([]Purchase, 0, t.Len())
	for i := range t.Len() {
		if !idOK[i] || !custOK[i] || !dateOK[i] || !amountOK[i] {
			continue
		}
		p := Purchase{ID: ids[i], CustomerID: custIDs[i], At: dates[i], Amount: amounts[i]}
		if products != nil && productOK[i] {
			p.Product = products[i]
		} else {
			p.Product = "UNKNOWN"
		}
		purchases = append(purchases, p)
	}
	return purchases
}

// BuildFacts left-joins purchases to customers and derives the temporal
// attributes. Purchases whose customer is unknown keep null attributes.
func BuildFacts(purchases []Purchase, customers []Customer) []FactRow {
	byID := make(map[int64]Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	facts := make([]FactRow, 0, len(purchases))
	for _, p := range purchases {
		row := FactRow{Purchase: p}
		if c, ok := byID[p.CustomerID]; ok {
			row.HasCustomer = true
			row.Country = c.Country
			row.SignupAt = c.SignupAt
			row.TenureDays = int(p.At.Sub(c.SignupAt).Hours() / 24)
		}

		at := p.At
		row.Year = at.Year()
		row.Month = int(at.Month())
		row.Quarter = (int(at.Month())-1)/3 + 1
		isoYear, isoWeek := at.ISOWeek()
		row.ISOWeek = isoWeek
		row.Weekday = at.Weekday().String()
		row.WeekdayNum = (int(at.Weekday()) + 6) % 7
		row.Hour = at.Hour()
		row.Weekend = row.WeekdayNum >= 5
		row.MonthKey = at.Format("2006-01")
		// The week key uses the ISO week-year, not the calendar year, so
		// year-boundary weeks land in the right bucket.
		row.WeekKey = fmt.Sprintf("%d-W%02d", isoYear, isoWeek)

		facts = append(facts, row)
	}
	return facts
}

func columnInt64s(t *table.Table, name string) ([]int64, []bool) {
	if c, ok := t.Column(name); ok {
		return c.Int64s()
	}
	return nil, make([]bool, t.Len())
}

func columnFloat64s(t *table.Table, name string) ([]float64, []bool) {
	if c, ok := t.Column(name); ok {
		return c.Float64s()
	}
	return nil, make([]bool, t.Len())
}

func columnStrings(t *table.Table, name string) ([]string, []bool) {
	if c, ok := t.Column(name); ok {
		return c.Strings()
	}
	return nil, make([]bool, t.Len())
}

func columnTimes(t *table.Table, name string) ([]time.Time, []bool) {
	if c, ok := t.Column(name); ok {
		return c.Times()
	}
	return nil, make([]bool, t.Len())
}
