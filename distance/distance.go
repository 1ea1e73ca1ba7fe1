// Package distance provides the metrics used for neighbor search, in dense
// and sparse (CSR row) form.
package distance

import (
	"math"
)

// Func is a distance function between two dense vectors.
type Func func(x, y []float32) float32

// SparseFunc computes the distance between two sparse vectors given as sorted
// column indices and their values.
type SparseFunc func(ind1 []int32, data1 []float32, ind2 []int32, data2 []float32) float32

// Metric bundles the dense and sparse forms of a named metric.
type Metric struct {
	Name   string
	Dense  Func
	Sparse SparseFunc
	// Angular marks metrics for which angular random projection splits
	// work better than Euclidean ones.
	Angular bool
}

// Registry maps metric names to their implementations.
var Registry = map[string]Metric{
	"sqeuclidean": {Name: "sqeuclidean", Dense: SquaredEuclidean, Sparse: SparseSquaredEuclidean},
	"euclidean":   {Name: "euclidean", Dense: Euclidean, Sparse: SparseEuclidean},
	"l2":          {Name: "euclidean", Dense: Euclidean, Sparse: SparseEuclidean},
	"manhattan":   {Name: "manhattan", Dense: Manhattan, Sparse: SparseManhattan},
	"l1":          {Name: "manhattan", Dense: Manhattan, Sparse: SparseManhattan},
	"chebyshev":   {Name: "chebyshev", Dense: Chebyshev},
	"cosine":      {Name: "cosine", Dense: Cosine, Sparse: SparseCosine, Angular: true},
	"correlation": {Name: "correlation", Dense: Correlation, Angular: true},
	"hamming":     {Name: "hamming", Dense: Hamming},
	"jaccard":     {Name: "jaccard", Dense: Jaccard, Sparse: SparseJaccard, Angular: true},
	"dice":        {Name: "dice", Dense: Dice, Angular: true},
}

// Get returns the metric registered under name.
func Get(name string) (Metric, bool) {
	m, ok := Registry[name]
	return m, ok
}

// IsAngular reports whether the named metric forces angular RP-trees.
func IsAngular(name string) bool {
	return Registry[name].Angular
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func clampUnit(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
