package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/table"
)

func TestFillMissing(t *testing.T) {
	values := []float64{10, 0, 20}
	fillMissing(values, []bool{true, false, true})
	assert.Equal(t, []float64{10, 15, 20}, values)

	// nil mask means every value is present.
	values = []float64{1, 2}
	fillMissing(values, nil)
	assert.Equal(t, []float64{1, 2}, values)
}

func TestStandardize(t *testing.T) {
	data := [][]float64{{1, 7}, {2, 7}, {3, 7}}
	standardize(data)

	// Population z-scores of [1,2,3]; the constant column zeroes out.
	assert.InDelta(t, -1.224744871, data[0][0], 1e-6)
	assert.InDelta(t, 0, data[1][0], 1e-9)
	assert.InDelta(t, 1.224744871, data[2][0], 1e-6)
	for i := range data {
		assert.Equal(t, 0.0, data[i][1])
	}
}

func TestNumericMatrix(t *testing.T) {
	tbl := table.New(
		table.NewStringColumn("name", []string{"a", "b", "c"}, nil),
		table.NewFloat64Column("amount", []float64{10, 0, 20}, []bool{true, false, true}),
		table.NewInt64Column("quantity", []int64{1, 2, 3}, nil),
	)
	names, data := numericMatrix(tbl)
	assert.Equal(t, []string{"amount", "quantity"}, names)
	require.Len(t, data, 3)
	// Missing amount filled with the column mean.
	assert.Equal(t, []float64{10, 1}, data[0])
	assert.Equal(t, []float64{15, 2}, data[1])
	assert.Equal(t, []float64{20, 3}, data[2])

	names, data = numericMatrix(table.New(table.NewStringColumn("only", []string{"x"}, nil)))
	assert.Nil(t, names)
	assert.Nil(t, data)
}

func TestEnrichAppendsDerivedColumns(t *testing.T) {
	n := 12
	amounts := make([]float64, n)
	quantities := make([]int64, n)
	for i := range amounts {
		amounts[i] = float64(i+1) * 10
		quantities[i] = int64(i + 1)
	}
	tbl := table.New(
		table.NewFloat64Column("amount", amounts, nil),
		table.NewInt64Column("quantity", quantities, nil),
	)
	out := Enrich(tbl, Options{Seed: 42})

	for _, name := range []string{
		"amount_zscore", "quantity_zscore", "amount_per_quantity",
		"is_anomaly", "anomaly_score", "cluster", "cluster_distance", "ml_score",
	} {
		_, ok := out.Column(name)
		assert.True(t, ok, "missing column %s", name)
	}
	// The input table is untouched.
	assert.Equal(t, 2, tbl.Width())
	assert.Equal(t, n, out.Len())
}

func TestEnrichPassesThroughEmpty(t *testing.T) {
	assert.Nil(t, Enrich(nil, Options{}))

	empty := table.New(table.NewFloat64Column("amount", nil, nil))
	assert.Equal(t, empty, Enrich(empty, Options{}))
}

func TestOptionsDefaults(t *testing.T) {
	assert.Equal(t, DefaultContamination, Options{}.contamination())
	assert.Equal(t, DefaultContamination, Options{Contamination: 1.5}.contamination())
	assert.Equal(t, 0.25, Options{Contamination: 0.25}.contamination())
	assert.NotNil(t, Options{}.logger())
}

func mustTimes(values ...string) []time.Time {
	out := make([]time.Time, len(values))
	for i, v := range values {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			panic(err)
		}
		out[i] = at
	}
	return out
}
