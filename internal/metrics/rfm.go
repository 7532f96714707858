package metrics

import (
	"fmt"
	"sort"

	"github.com/quarrydata/quarry/internal/table"
)

// RFM segments customers on recency, frequency and monetary value. Each
// dimension is cut into five quantile bands, falling back to equal-width
// bands when duplicate quantile edges make the cut degenerate.
type RFM struct{}

func (RFM) Name() string { return "rfm" }

// Segment names assigned by the rule table.
const (
	SegmentChampions         = "Champions"
	SegmentLoyal             = "Loyal"
	SegmentPotentialLoyalist = "Potential Loyalist"
	SegmentNewCustomers      = "New Customers"
	SegmentAtRisk            = "At Risk"
	SegmentLost              = "Lost"
	SegmentHibernating       = "Hibernating"
	SegmentNeedAttention     = "Need Attention"
)

// AssignSegment maps the three 1-5 scores to a segment. Rules are evaluated
// in fixed priority order; the first match wins.
func AssignSegment(r, f, m int) string {
	switch {
	case r >= 4 && f >= 4 && m >= 4:
		return SegmentChampions
	case r >= 3 && f >= 3 && m >= 3:
		return SegmentLoyal
	case r >= 3 && f <= 2 && m >= 3:
		return SegmentPotentialLoyalist
	case r >= 4 && f <= 2 && m <= 2:
		return SegmentNewCustomers
	case r <= 2 && f >= 3 && m >= 3:
		return SegmentAtRisk
	case r <= 2 && f <= 2 && m <= 2:
		return SegmentLost
	case r <= 2 && f >= 3 && m <= 2:
		return SegmentHibernating
	default:
		return SegmentNeedAttention
	}
}

func (RFM) Tables(in Input) []Output {
	type rfmRow struct {
		customerID int64
		recency    float64
		frequency  float64
		monetary   float64
		r, f, m    int
		segment    string
	}

	perCustomer := make(map[int64]*rfmRow)
	for _, fact := range in.Facts {
		row, ok := perCustomer[fact.CustomerID]
		if !ok {
			row = &rfmRow{customerID: fact.CustomerID, recency: float64(daysBetween(fact.At, in.Reference))}
			perCustomer[fact.CustomerID] = row
		}
		if rec := float64(daysBetween(fact.At, in.Reference)); rec < row.recency {
			row.recency = rec
		}
		row.frequency++
		row.monetary += fact.Amount
	}

	rows := make([]*rfmRow, 0, len(perCustomer))
	for _, row := range perCustomer {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].customerID < rows[j].customerID })

	recencies := make([]float64, len(rows))
	frequencies := make([]float64, len(rows))
	monetaries := make([]float64, len(rows))
	for i, row := range rows {
		recencies[i] = row.recency
		frequencies[i] = row.frequency
		monetaries[i] = row.monetary
	}
	rEdges := scoreEdges(recencies)
	fEdges := scoreEdges(frequencies)
	mEdges := scoreEdges(monetaries)

	for _, row := range rows {
		// Recency is inverted: the most recent customers score highest.
		row.r = 6 - bandOf(row.recency, rEdges)
		row.f = bandOf(row.frequency, fEdges)
		row.m = bandOf(row.monetary, mEdges)
		row.segment = AssignSegment(row.r, row.f, row.m)
	}

	n := len(rows)
	ids := make([]int64, n)
	recency := make([]float64, n)
	frequency := make([]int64, n)
	monetary := make([]float64, n)
	rScores := make([]int64, n)
	fScores := make([]int64, n)
	mScores := make([]int64, n)
	combined := make([]string, n)
	segments := make([]string, n)
	for i, row := range rows {
		ids[i] = row.customerID
		recency[i] = row.recency
		frequency[i] = int64(row.frequency)
		monetary[i] = row.monetary
		rScores[i] = int64(row.r)
		fScores[i] = int64(row.f)
		mScores[i] = int64(row.m)
		combined[i] = fmt.Sprintf("%d%d%d", row.r, row.f, row.m)
		segments[i] = row.segment
	}
	detail := table.New(
		table.NewInt64Column("customer_id", ids, nil),
		table.NewFloat64Column("recency_days", recency, nil),
		table.NewInt64Column("frequency", frequency, nil),
		table.NewFloat64Column("monetary", monetary, nil),
		table.NewInt64Column("r_score", rScores, nil),
		table.NewInt64Column("f_score", fScores, nil),
		table.NewInt64Column("m_score", mScores, nil),
		table.NewStringColumn("rfm_score", combined, nil),
		table.NewStringColumn("segment", segments, nil),
	)

	// Per-segment summary.
	type segAcc struct {
		customers                  int
		recency, frequency, amount float64
	}
	bySegment := make(map[string]*segAcc)
	for _, row := range rows {
		a, ok := bySegment[row.segment]
		if !ok {
			a = &segAcc{}
			bySegment[row.segment] = a
		}
		a.customers++
		a.recency += row.recency
		a.frequency += row.frequency
		a.amount += row.monetary
	}
	segKeys := make([]string, 0, len(bySegment))
	for k := range bySegment {
		segKeys = append(segKeys, k)
	}
	sort.Strings(segKeys)
	segNames := make([]string, len(segKeys))
	segCustomers := make([]int64, len(segKeys))
	segRecency := make([]float64, len(segKeys))
	segFrequency := make([]float64, len(segKeys))
	segMonetaryMean := make([]float64, len(segKeys))
	segMonetaryTotal := make([]float64, len(segKeys))
	for i, k := range segKeys {
		a := bySegment[k]
		segNames[i] = k
		segCustomers[i] = int64(a.customers)
		segRecency[i] = a.recency / float64(a.customers)
		segFrequency[i] = a.frequency / float64(a.customers)
		segMonetaryMean[i] = a.amount / float64(a.customers)
		segMonetaryTotal[i] = a.amount
	}
	summary := table.New(
		table.NewStringColumn("segment", segNames, nil),
		table.NewInt64Column("customer_count", segCustomers, nil),
		table.NewFloat64Column("recency_mean", segRecency, nil),
		table.NewFloat64Column("frequency_mean", segFrequency, nil),
		table.NewFloat64Column("monetary_mean", segMonetaryMean, nil),
		table.NewFloat64Column("monetary_total", segMonetaryTotal, nil),
	)

	return []Output{
		{Name: "dim_rfm", Category: CategoryDimension, Table: detail},
		{Name: "kpi_rfm_segments", Category: CategoryKPI, Table: summary},
	}
}
