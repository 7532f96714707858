package enrich

import (
	"math"
	"math/rand"
	"sort"

	"github.com/quarrydata/quarry/internal/parallel"
	"github.com/quarrydata/quarry/internal/table"
)

const (
	forestTrees      = 100
	forestSampleSize = 256
)

// Anomalies scores every row with an isolation forest over the standardized
// numeric features and flags the contamination fraction with the highest
// scores. With fewer than two numeric columns all rows are marked normal.
func Anomalies(t *table.Table, opts Options) *table.Table {
	if t == nil || t.Len() == 0 {
		return t
	}
	n := t.Len()
	_, data := numericMatrix(t)
	if len(data) == 0 || len(data[0]) < 2 {
		return t.WithColumns(
			table.NewBoolColumn("is_anomaly", make([]bool, n), nil),
			table.NewFloat64Column("anomaly_score", make([]float64, n), nil),
		)
	}
	standardize(data)

	forest := growForest(data, rand.New(rand.NewSource(opts.Seed)))
	scores := make([]float64, n)
	if opts.Pool != nil {
		parallel.Map(opts.Pool, parallel.Chunks(n, 0), func(_ int, c [2]int) struct{} {
			for i := c[0]; i < c[1]; i++ {
				scores[i] = forest.score(data[i])
			}
			return struct{}{}
		})
	} else {
		for i, row := range data {
			scores[i] = forest.score(row)
		}
	}

	// Threshold at the contamination quantile of the score distribution: the
	// ceil(contamination*n) highest scores are flagged.
	sorted := make([]float64, n)
	copy(sorted, scores)
	sort.Float64s(sorted)
	flagged := int(math.Ceil(opts.contamination() * float64(n)))
	idx := n - flagged
	if idx < 0 {
		idx = 0
	}
	cut := sorted[idx]

	flags := make([]bool, n)
	for i, s := range scores {
		flags[i] = s >= cut
	}
	return t.WithColumns(
		table.NewBoolColumn("is_anomaly", flags, nil),
		table.NewFloat64Column("anomaly_score", scores, nil),
	)
}

type isoForest struct {
	trees []*isoNode
	// c is the average path length of an unsuccessful BST search over the
	// sample size, the normalization constant from the original paper.
	c float64
}

type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int // leaf only
}

func growForest(data [][]float64, rng *rand.Rand) *isoForest {
	sample := forestSampleSize
	if sample > len(data) {
		sample = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))
	trees := make([]*isoNode, forestTrees)
	for i := range trees {
		sub := make([][]float64, sample)
		for j := range sub {
			sub[j] = data[rng.Intn(len(data))]
		}
		trees[i] = growTree(sub, 0, maxDepth, rng)
	}
	return &isoForest{trees: trees, c: avgPathLength(sample)}
}

func growTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(data) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(data)}
	}
	feature := rng.Intn(len(data[0]))
	lo, hi := data[0][feature], data[0][feature]
	for _, row := range data {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	if lo == hi {
		return &isoNode{size: len(data)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    growTree(left, depth+1, maxDepth, rng),
		right:   growTree(right, depth+1, maxDepth, rng),
	}
}

// pathLength walks a row down the tree, adding the expected subtree depth at
// truncated leaves.
func (node *isoNode) pathLength(row []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.feature] < node.split {
		return node.left.pathLength(row, depth+1)
	}
	return node.right.pathLength(row, depth+1)
}

// score maps a row to the anomaly score 2^(-E[path]/c) in (0,1); higher is
// more anomalous.
func (f *isoForest) score(row []float64) float64 {
	var sum float64
	for _, tree := range f.trees {
		sum += tree.pathLength(row, 0)
	}
	mean := sum / float64(len(f.trees))
	if f.c == 0 {
		return 0
	}
	return math.Pow(2, -mean/f.c)
}

// avgPathLength is c(n), the expected path length of an unsuccessful search
// in a BST of n nodes.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649 // Euler-Mascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}
