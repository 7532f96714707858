package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/parallel"
	"github.com/quarrydata/quarry/internal/table"
)

func anomalyFixture() *table.Table {
	n := 50
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n-1; i++ {
		xs[i] = float64(i % 10)
		ys[i] = float64(i%10) + 0.5
	}
	// One planted outlier far from the cluster.
	xs[n-1] = 1000
	ys[n-1] = -1000
	return table.New(
		table.NewFloat64Column("x", xs, nil),
		table.NewFloat64Column("y", ys, nil),
	)
}

func TestAnomaliesFlagsOutlier(t *testing.T) {
	out := Anomalies(anomalyFixture(), Options{Seed: 42, Contamination: 0.1})

	scores, _ := mustColumn(t, out, "anomaly_score").Float64s()
	flags, _ := mustColumn(t, out, "is_anomaly").Bools()
	require.Len(t, scores, 50)

	maxIdx := 0
	flagged := 0
	for i, s := range scores {
		assert.Greater(t, s, 0.0)
		assert.Less(t, s, 1.0)
		if s > scores[maxIdx] {
			maxIdx = i
		}
		if flags[i] {
			flagged++
		}
	}
	assert.Equal(t, 49, maxIdx, "planted outlier should score highest")
	assert.True(t, flags[49])
	// ceil(0.1*50) = 5; ties at the cut score may flag a few more.
	assert.GreaterOrEqual(t, flagged, 5, "the contamination fraction is flagged")
}

func TestAnomaliesFlagsSmallSample(t *testing.T) {
	n := 10
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n-1; i++ {
		xs[i] = float64(i)
		ys[i] = float64(i) * 2
	}
	xs[n-1] = 500
	ys[n-1] = -500
	tbl := table.New(
		table.NewFloat64Column("x", xs, nil),
		table.NewFloat64Column("y", ys, nil),
	)

	out := Anomalies(tbl, Options{Seed: 42, Contamination: 0.1})
	flags, _ := mustColumn(t, out, "is_anomaly").Bools()

	// ceil(0.1*10) = 1: even a 10-row table flags its outlier.
	assert.True(t, flags[n-1])
}

func TestAnomaliesDeterministic(t *testing.T) {
	a := Anomalies(anomalyFixture(), Options{Seed: 42})
	b := Anomalies(anomalyFixture(), Options{Seed: 42})
	sa, _ := mustColumn(t, a, "anomaly_score").Float64s()
	sb, _ := mustColumn(t, b, "anomaly_score").Float64s()
	assert.Equal(t, sa, sb)
}

func TestAnomaliesPooledMatchesSerial(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	serial := Anomalies(anomalyFixture(), Options{Seed: 42})
	pooled := Anomalies(anomalyFixture(), Options{Seed: 42, Pool: pool})
	ss, _ := mustColumn(t, serial, "anomaly_score").Float64s()
	ps, _ := mustColumn(t, pooled, "anomaly_score").Float64s()
	assert.Equal(t, ss, ps)
}

func TestAnomaliesNeedsTwoNumericColumns(t *testing.T) {
	tbl := table.New(
		table.NewStringColumn("name", []string{"a", "b"}, nil),
		table.NewFloat64Column("amount", []float64{1, 2}, nil),
	)
	out := Anomalies(tbl, Options{Seed: 42})

	flags, _ := mustColumn(t, out, "is_anomaly").Bools()
	assert.Equal(t, []bool{false, false}, flags)
	scores, _ := mustColumn(t, out, "anomaly_score").Float64s()
	assert.Equal(t, []float64{0, 0}, scores)
}

func TestAvgPathLength(t *testing.T) {
	assert.Equal(t, 0.0, avgPathLength(1))
	assert.Equal(t, 0.0, avgPathLength(0))
	// c(2) = 2*(ln(1) + gamma) - 2*1/2.
	assert.InDelta(t, 2*0.5772156649-1, avgPathLength(2), 1e-9)
	assert.Greater(t, avgPathLength(256), avgPathLength(16))
}
