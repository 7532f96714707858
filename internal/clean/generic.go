package clean

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/quarrydata/quarry/internal/table"
)

// Generic cleaning handles datasets without a declared schema. Columns are
// classified by a swappable strategy, heavily missing columns and rows are
// dropped, remaining nulls are filled by a type-appropriate statistic and
// extreme numeric outliers are pruned behind a safety valve.

const (
	maxColumnMissing = 0.5  // columns above this missingness are dropped
	maxRowMissing    = 0.8  // rows above this missingness are dropped
	outlierIQRMult   = 3.0  // generous bound; 1.5 is reserved for analytics
	maxOutlierShare  = 0.10 // skip outlier pruning when it would cut more
)

// Class is the inferred semantic class of an untyped column.
type Class int

const (
	Categorical Class = iota
	Numeric
	Timestamp
)

// Profile summarizes an untyped column for classification.
type Profile struct {
	Name         string
	Total        int
	NonNull      int
	Distinct     int
	NumericRatio float64 // fraction of non-null values parseable as numbers
	DateRatio    float64 // fraction of non-null values parseable as dates
}

// MissingRatio is the fraction of rows where the value is absent.
func (p Profile) MissingRatio() float64 {
	if p.Total == 0 {
		return 1
	}
	return 1 - float64(p.NonNull)/float64(p.Total)
}

// Predicate is one ordered classification rule: the first matching predicate
// decides the column class.
type Predicate struct {
	Name  string
	Class Class
	Match func(Profile) bool
}

// Classifier classifies columns through an ordered predicate list, so the
// strategy is swappable and testable in isolation.
type Classifier struct {
	predicates []Predicate
}

// NewClassifier builds a classifier from an ordered predicate list.
func NewClassifier(predicates ...Predicate) *Classifier {
	return &Classifier{predicates: predicates}
}

// DefaultClassifier returns the stock strategy: date-like names become
// timestamps, mostly-numeric content becomes numeric, low-cardinality content
// becomes categorical.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		Predicate{
			Name:  "date-like name",
			Class: Timestamp,
			Match: func(p Profile) bool {
				name := strings.ToLower(p.Name)
				return (strings.Contains(name, "date") || strings.Contains(name, "time") ||
					strings.HasSuffix(name, "_at")) && p.DateRatio >= 0.5
			},
		},
		Predicate{
			Name:  "date-like content",
			Class: Timestamp,
			Match: func(p Profile) bool { return p.DateRatio > 0.8 },
		},
		Predicate{
			Name:  "numeric content",
			Class: Numeric,
			Match: func(p Profile) bool { return p.NumericRatio > 0.8 },
		},
		Predicate{
			Name:  "low cardinality",
			Class: Categorical,
			Match: func(p Profile) bool { return p.Distinct <= 2 },
		},
	)
}

// Classify returns the class of a column; unmatched columns are categorical.
func (c *Classifier) Classify(p Profile) Class {
	for _, pred := range c.predicates {
		if pred.Match(p) {
			return pred.Class
		}
	}
	return Categorical
}

// profileColumn inspects a raw column of any kind.
func profileColumn(col *table.Column) Profile {
	p := Profile{Name: col.Name(), Total: col.Len()}
	distinct := make(map[string]struct{})
	numeric, dates := 0, 0
	for i := range col.Len() {
		v := col.Value(i)
		if v == nil {
			continue
		}
		s, ok := asString(v)
		if !ok {
			continue
		}
		p.NonNull++
		distinct[s] = struct{}{}
		if _, ok := asFloat64(v); ok {
			numeric++
		}
		if _, ok := asTime(v); ok {
			dates++
		}
	}
	p.Distinct = len(distinct)
	if p.NonNull > 0 {
		p.NumericRatio = float64(numeric) / float64(p.NonNull)
		p.DateRatio = float64(dates) / float64(p.NonNull)
	}
	return p
}

// CleanGeneric cleans a dataset without a declared schema. The zero-value
// Classifier in opts means DefaultClassifier.
func CleanGeneric(raw *table.Table, name string, classifier *Classifier, opts Options) (*table.Table, Report) {
	log := opts.logger()
	report := Report{Dataset: name}
	if raw == nil || raw.Len() == 0 || raw.Width() == 0 {
		return table.New(), report
	}
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	report.RowsIn = raw.Len()
	n := raw.Len()

	// Classify and coerce, dropping columns that are mostly missing.
	var cols []colData
	for _, colName := range raw.Columns() {
		src, _ := raw.Column(colName)
		profile := profileColumn(src)
		if profile.MissingRatio() > maxColumnMissing {
			log.Warnw("column dropped for missingness", "dataset", name,
				"column", colName, "missing_ratio", profile.MissingRatio())
			continue
		}
		kind := table.String
		switch classifier.Classify(profile) {
		case Numeric:
			kind = table.Float64
		case Timestamp:
			kind = table.Time
		}
		cols = append(cols, coerce(src, kind))
	}
	if len(cols) == 0 {
		return table.New(), report
	}

	// Drop rows that are mostly missing across the kept columns.
	keep := make([]bool, n)
	for i := range n {
		missing := 0
		for _, cd := range cols {
			if !cd.valid[i] {
				missing++
			}
		}
		keep[i] = float64(missing)/float64(len(cols)) <= maxRowMissing
		if !keep[i] {
			report.Dropped.Missing++
		}
	}

	// Fill what survives with a type-appropriate statistic. Timestamps are
	// left as nulls: there is no sane statistic for them.
	for ci := range cols {
		if cols[ci].kind == table.Time {
			continue
		}
		fillStatistic(&cols[ci])
	}

	// Prune 3×IQR outliers per numeric column, but only when they affect a
	// small fraction of rows; a skewed but valid distribution stays intact.
	for _, cd := range cols {
		if cd.kind != table.Float64 {
			continue
		}
		pruneOutliers(cd, keep, &report)
	}

	built := make([]*table.Column, len(cols))
	for i, cd := range cols {
		built[i] = cd.build()
	}
	cleaned := table.New(built...).Filter(keep)
	report.RowsOut = cleaned.Len()
	report.Checks = genericChecks(cleaned)
	return cleaned, report
}

func pruneOutliers(cd colData, keep []bool, report *Report) {
	var values []float64
	for i, ok := range cd.valid {
		if ok && keep[i] {
			values = append(values, cd.floats[i])
		}
	}
	if len(values) < 4 {
		return
	}
	sort.Float64s(values)
	q1 := stat.Quantile(0.25, stat.LinInterp, values, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, values, nil)
	iqr := q3 - q1
	lower := q1 - outlierIQRMult*iqr
	upper := q3 + outlierIQRMult*iqr

	var outliers []int
	kept := 0
	for i, ok := range cd.valid {
		if !keep[i] {
			continue
		}
		kept++
		if ok && (cd.floats[i] < lower || cd.floats[i] > upper) {
			outliers = append(outliers, i)
		}
	}
	if kept == 0 || float64(len(outliers))/float64(kept) >= maxOutlierShare {
		return
	}
	for _, i := range outliers {
		keep[i] = false
		report.Dropped.OutOfBounds++
	}
}

// genericChecks produces the schema-free quality checks: global completeness
// and whole-row uniqueness.
func genericChecks(t *table.Table) []Check {
	if t.Len() == 0 || t.Width() == 0 {
		return nil
	}
	totalCells := t.Len() * t.Width()
	nullCells := 0
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		nullCells += col.NullCount()
	}
	completeness := (1 - float64(nullCells)/float64(totalCells)) * 100

	seen := make(map[string]struct{}, t.Len())
	duplicates := 0
	for i := range t.Len() {
		var sb strings.Builder
		for _, name := range t.Columns() {
			col, _ := t.Column(name)
			s, _ := asString(col.Value(i))
			sb.WriteString(s)
			sb.WriteByte('\x1f')
		}
		key := sb.String()
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}
	uniqueness := (1 - float64(duplicates)/float64(t.Len())) * 100

	return []Check{
		{Name: "global_completeness", Value: completeness, Threshold: 80, Pass: completeness >= 80},
		{Name: "row_uniqueness", Value: uniqueness, Threshold: 95, Pass: uniqueness >= 95},
	}
}
