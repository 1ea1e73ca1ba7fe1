// Package nn finds the k nearest neighbors of every point: exactly, through
// chunked matrix products or a kd-tree, or approximately with NN-descent
// seeded by a random projection forest.
package nn

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nozzle/diffmap/distance"
	"github.com/nozzle/diffmap/graph"
)

// Method selects the neighbor search algorithm.
type Method string

// Search methods.
const (
	MethodExact  Method = "exact"
	MethodApprox Method = "umap"
)

// ErrUnknownMetric is returned when the approximate search is asked for a
// metric that is not registered.
var ErrUnknownMetric = errors.New("nn: unknown metric")

// KNNGraph represents a k-nearest neighbor graph.
type KNNGraph struct {
	Indices   [][]int32   // [n_samples][k] neighbor indices
	Distances [][]float32 // [n_samples][k] neighbor distances
	N         int         // number of samples
	K         int         // number of neighbors per sample
}

// Graph assembles the fixed-degree N×N distance graph.
func (g *KNNGraph) Graph() (*graph.CSR, error) {
	return graph.Assemble(g.Indices, g.Distances, g.N)
}

// Config configures the neighbor search.
type Config struct {
	// K is the requested neighbor count including the point itself; every
	// point receives K-1 neighbors.
	K int

	// Method is MethodExact or MethodApprox.
	Method Method

	// Metric is used by the approximate search only. Exact search always
	// reports squared Euclidean distances.
	Metric string

	// ExactThreshold is the largest point count searched with chunked matrix
	// products; larger dense inputs go through a kd-tree.
	ExactThreshold int

	// ChunkRows caps the rows held in one distance block.
	ChunkRows int

	// Seed for random number generation
	Seed int64

	// NumWorkers for parallel processing (0 = auto)
	NumWorkers int

	// Logger receives warnings and timing; nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		K:              30,
		Method:         MethodExact,
		Metric:         "euclidean",
		ExactThreshold: 100000,
		ChunkRows:      20000,
		Seed:           0,
		NumWorkers:     0,
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// ClampK returns the effective neighbor count for n points: a k larger than
// the dataset is reduced to 1 + n/2.
func ClampK(k, n int) int {
	if k > n {
		return 1 + n/2
	}
	return k
}

// Search finds the nearest neighbors of every row of data.
func Search(data [][]float32, config Config) (*KNNGraph, error) {
	n := len(data)
	k := ClampK(config.K, n)
	if n == 0 || k <= 1 {
		return emptyGraph(n), nil
	}

	switch {
	case config.Method == MethodApprox:
		return approximate(denseRows(data), k, config)
	case n > config.ExactThreshold && config.ExactThreshold > 0:
		return treeSearch(data, k, config), nil
	default:
		return exactDense(data, k, config), nil
	}
}

// SearchSparse finds the nearest neighbors of every row of a CSR feature
// matrix.
func SearchSparse(x *graph.CSR, config Config) (*KNNGraph, error) {
	n := x.NRows
	k := ClampK(config.K, n)
	if n == 0 || k <= 1 {
		return emptyGraph(n), nil
	}
	if config.Method == MethodApprox {
		return approximate(sparseRows{x}, k, config)
	}
	return exactSparse(x, k, config), nil
}

func emptyGraph(n int) *KNNGraph {
	g := &KNNGraph{
		Indices:   make([][]int32, n),
		Distances: make([][]float32, n),
		N:         n,
	}
	for i := range n {
		g.Indices[i] = []int32{}
		g.Distances[i] = []float32{}
	}
	return g
}

// approximate runs NN-descent for k neighbors including the point itself and
// removes the point afterwards.
func approximate(data points, k int, config Config) (*KNNGraph, error) {
	metric, err := approxMetric(config.Metric)
	if err != nil {
		return nil, err
	}
	_, sparse := data.(sparseRows)
	if sparse && metric.Sparse == nil {
		return nil, fmt.Errorf("%w: %q has no sparse form", ErrUnknownMetric, config.Metric)
	}

	ndConfig := DefaultNNDescentConfig()
	ndConfig.K = k
	ndConfig.Metric = metric.Name
	ndConfig.Angular = distance.IsAngular(config.Metric)
	ndConfig.Seed = config.Seed
	ndConfig.NumWorkers = config.NumWorkers
	ndConfig.MaxIterations = iterationsFor(data.Len())
	ndConfig.NumTrees = treesFor(data.Len(), sparse)

	g := nnDescent(data, ndConfig)
	if invalid := repairInvalid(data, g, metric, config.Seed); invalid > 0 {
		config.logger().Warn("failed to correctly find n_neighbors for some samples; results may be less than ideal",
			"samples", invalid)
	}

	for i := range g.N {
		g.Indices[i], g.Distances[i] = dropSelf(g.Indices[i], g.Distances[i], i)
	}
	g.K = k - 1
	return g, nil
}

// approxMetric maps Euclidean to its squared form so every search path hands
// the kernel squared distances.
func approxMetric(name string) (distance.Metric, error) {
	switch name {
	case "", "euclidean", "l2":
		name = "sqeuclidean"
	}
	m, ok := distance.Get(name)
	if !ok {
		return distance.Metric{}, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return m, nil
}

// dropSelf removes point i from its own sorted neighbor row. When i is not
// in the row the farthest entry is removed instead, so every row loses
// exactly one slot.
func dropSelf(indices []int32, distances []float32, i int) ([]int32, []float32) {
	if len(indices) == 0 {
		return indices, distances
	}
	p := slices.Index(indices, int32(i))
	if p < 0 {
		p = len(indices) - 1
	}
	return slices.Delete(indices, p, p+1), slices.Delete(distances, p, p+1)
}
