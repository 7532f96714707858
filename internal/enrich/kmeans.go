package enrich

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/quarrydata/quarry/internal/common"
	"github.com/quarrydata/quarry/internal/table"
)

const (
	maxClusterFeatures = 10
	minClusters        = 2
	maxClusters        = 10
	kmeansMaxIters     = 100
)

// Clusters assigns each row a k-means cluster over the standardized numeric
// features, reducing to 10 principal components first when the feature count
// exceeds 10. With fewer than two numeric columns, or fewer rows than
// clusters, the table passes through with a single zero cluster.
func Clusters(t *table.Table, opts Options) *table.Table {
	if t == nil || t.Len() == 0 {
		return t
	}
	n := t.Len()
	_, data := numericMatrix(t)
	k := opts.Clusters
	if k <= 0 {
		k = autoK(n)
	}
	if len(data) == 0 || len(data[0]) < 2 || n < k {
		return t.WithColumns(
			table.NewInt64Column("cluster", make([]int64, n), nil),
			table.NewFloat64Column("cluster_distance", make([]float64, n), nil),
		)
	}
	standardize(data)
	if len(data[0]) > maxClusterFeatures {
		data = pca(data, maxClusterFeatures)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	assignments, distances := kmeans(data, k, rng)

	clusters := make([]int64, n)
	for i, a := range assignments {
		clusters[i] = int64(a)
	}
	return t.WithColumns(
		table.NewInt64Column("cluster", clusters, nil),
		table.NewFloat64Column("cluster_distance", distances, nil),
	)
}

// autoK is round(sqrt(n/2)) clamped to [2, 10].
func autoK(n int) int {
	k := int(math.Round(math.Sqrt(float64(n) / 2)))
	return common.Clamp(k, minClusters, maxClusters)
}

// pca projects the row-major matrix onto its first components principal
// components via SVD.
func pca(data [][]float64, components int) [][]float64 {
	rows, cols := len(data), len(data[0])
	if components > cols {
		components = cols
	}
	m := mat.NewDense(rows, cols, nil)
	for i, row := range data {
		m.SetRow(i, row)
	}
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return data
	}
	var v mat.Dense
	svd.VTo(&v)
	proj := v.Slice(0, cols, 0, components)

	var reduced mat.Dense
	reduced.Mul(m, proj)
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, &reduced)
	}
	return out
}

// kmeans runs Lloyd's algorithm with centroids seeded from distinct random
// rows. Returns per-row assignment and distance to the nearest centroid.
func kmeans(data [][]float64, k int, rng *rand.Rand) ([]int, []float64) {
	n, dim := len(data), len(data[0])
	centroids := make([][]float64, k)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), data[perm[i]]...)
	}

	assignments := make([]int, n)
	distances := make([]float64, n)
	for iter := 0; iter < kmeansMaxIters; iter++ {
		changed := false
		for i, row := range data {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := sqDist(row, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
			distances[i] = math.Sqrt(bestDist)
		}
		if !changed && iter > 0 {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, row := range data {
			c := assignments[i]
			counts[c]++
			for j, v := range row {
				sums[c][j] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Re-seed an empty cluster from a random row.
				centroids[c] = append([]float64(nil), data[rng.Intn(n)]...)
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	return assignments, distances
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
