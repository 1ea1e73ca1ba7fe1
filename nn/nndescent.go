package nn

import (
	"math"

	"github.com/nozzle/diffmap/distance"
	"github.com/nozzle/diffmap/internal/heap"
	"github.com/nozzle/diffmap/internal/parallel"
	"github.com/nozzle/diffmap/internal/rand"
)

// NNDescentConfig configures the NNDescent algorithm.
type NNDescentConfig struct {
	// K is the number of neighbors to find, the point itself included
	K int

	// MaxIterations is the maximum number of NNDescent iterations
	MaxIterations int

	// Delta is the early termination threshold (fraction of updated edges)
	Delta float32

	// Rho is the sampling rate for candidate pairs
	Rho float32

	// MaxCandidates caps the candidate list of every point per iteration
	MaxCandidates int

	// NumTrees is the size of the RP-forest used for initialization
	NumTrees int

	// LeafSize is the RP-tree leaf size (0 = max(10, K))
	LeafSize int

	// Angular selects angular RP-tree splits
	Angular bool

	// Metric is the distance metric to use
	Metric string

	// Seed for random number generation
	Seed int64

	// NumWorkers for parallel processing (0 = auto)
	NumWorkers int
}

// DefaultNNDescentConfig returns default configuration.
func DefaultNNDescentConfig() NNDescentConfig {
	return NNDescentConfig{
		K:             15,
		MaxIterations: 10,
		Delta:         0.001,
		Rho:           0.5,
		MaxCandidates: 60,
		NumTrees:      10,
		Metric:        "sqeuclidean",
		Seed:          0,
		NumWorkers:    0,
	}
}

// iterationsFor returns max(5, round(log2 n)).
func iterationsFor(n int) int {
	return max(5, int(math.Round(math.Log2(float64(n)))))
}

// treesFor returns the forest size: 5 + round(sqrt(n)/20) for dense data,
// 10 for sparse data.
func treesFor(n int, sparse bool) int {
	if sparse {
		return 10
	}
	return 5 + int(math.Round(math.Sqrt(float64(n))/20))
}

// NNDescent builds an approximate k-NN graph of dense data. The neighbor
// lists are seeded from the leaves of an RP-forest and refined by exploring
// neighbors of neighbors. Every point is its own nearest neighbor at
// distance zero.
func NNDescent(data [][]float32, config NNDescentConfig) *KNNGraph {
	return nnDescent(denseRows(data), config)
}

// candidatePair is a distance evaluated in the parallel phase and applied to
// both heaps in the sequential phase.
type candidatePair struct {
	p, q int32
	dist float32
}

func nnDescent(data points, config NNDescentConfig) *KNNGraph {
	n := data.Len()
	k := min(config.K, n)

	metric, ok := distance.Get(config.Metric)
	if !ok {
		metric, _ = distance.Get("sqeuclidean")
	}
	numWorkers := parallel.Resolve(config.NumWorkers)
	rng := rand.FromSeed(config.Seed)

	indices := make([][]int32, n)
	distances := make([][]float32, n)
	flags := make([][]uint8, n)
	for i := range n {
		indices[i] = make([]int32, k)
		distances[i] = make([]float32, k)
		flags[i] = make([]uint8, k)
		heap.Reset(indices[i], distances[i])
		heap.FlaggedPush(indices[i], distances[i], flags[i], int32(i), 0, 1)
	}

	leafSize := config.LeafSize
	if leafSize <= 0 {
		leafSize = max(10, k)
	}
	forest := buildForest(data, RPForestConfig{
		NumTrees: config.NumTrees,
		LeafSize: leafSize,
		Angular:  config.Angular,
	}, &rng)
	initializeFromLeaves(data, forest.Leaves(), indices, distances, flags, metric, numWorkers)
	initializeRandomNeighbors(data, indices, distances, flags, metric, &rng, numWorkers)

	maxCandidates := config.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 2 * k
	}
	oldCandidates := make([][]int32, n)
	newCandidates := make([][]int32, n)
	for i := range oldCandidates {
		oldCandidates[i] = make([]int32, 0, maxCandidates)
		newCandidates[i] = make([]int32, 0, maxCandidates)
	}

	for range config.MaxIterations {
		for i := range oldCandidates {
			oldCandidates[i] = oldCandidates[i][:0]
			newCandidates[i] = newCandidates[i][:0]
		}

		for i := range n {
			for j := range k {
				neighbor := indices[i][j]
				if neighbor < 0 || int(neighbor) == i {
					continue
				}
				if flags[i][j] == 1 {
					if len(newCandidates[i]) < maxCandidates {
						newCandidates[i] = append(newCandidates[i], neighbor)
					}
					if len(newCandidates[neighbor]) < maxCandidates {
						newCandidates[neighbor] = append(newCandidates[neighbor], int32(i))
					}
				} else {
					if len(oldCandidates[i]) < maxCandidates {
						oldCandidates[i] = append(oldCandidates[i], neighbor)
					}
					if len(oldCandidates[neighbor]) < maxCandidates {
						oldCandidates[neighbor] = append(oldCandidates[neighbor], int32(i))
					}
				}
			}
		}

		for i := range newCandidates {
			newCandidates[i] = sampleCandidates(newCandidates[i], config.Rho, &rng)
			oldCandidates[i] = sampleCandidates(oldCandidates[i], config.Rho, &rng)
		}

		for i := range n {
			for j := range k {
				flags[i][j] = 0
			}
		}

		updates := nnDescentUpdate(data, indices, distances, flags,
			oldCandidates, newCandidates, metric, numWorkers)

		if float32(updates) < config.Delta*float32(n*k) {
			break
		}
	}

	for i := range n {
		heap.Sort(indices[i], distances[i])
	}

	return &KNNGraph{
		Indices:   indices,
		Distances: distances,
		N:         n,
		K:         k,
	}
}

// initializeFromLeaves offers every pair of points sharing an RP-tree leaf.
func initializeFromLeaves(
	data points,
	leaves [][]int32,
	indices [][]int32,
	distances [][]float32,
	flags [][]uint8,
	metric distance.Metric,
	numWorkers int,
) {
	chunks := parallel.Split(len(leaves), parallel.ChunkSize(len(leaves), len(leaves), numWorkers))
	pairs := parallel.MapChunks(chunks, numWorkers, func(c parallel.Chunk) []candidatePair {
		var out []candidatePair
		for _, leaf := range leaves[c.Start:c.End] {
			for a, p := range leaf {
				for _, q := range leaf[a+1:] {
					out = append(out, candidatePair{p, q, data.dist(metric, int(p), int(q))})
				}
			}
		}
		return out
	})
	applyPairs(pairs, indices, distances, flags)
}

// initializeRandomNeighbors fills the empty slots of every point with random
// neighbors. Each point only writes its own row.
func initializeRandomNeighbors(
	data points,
	indices [][]int32,
	distances [][]float32,
	flags [][]uint8,
	metric distance.Metric,
	rng *rand.State,
	numWorkers int,
) {
	n := data.Len()
	seed := rng[0]
	parallel.ParallelFor(0, n, numWorkers, func(i int) {
		localRng := rand.New(int64(i) + seed)
		for attempts := 0; countValidNeighbors(indices[i]) < len(indices[i]) && attempts < 4*n; attempts++ {
			j := rand.Intn(&localRng, n)
			if j == i {
				continue
			}
			d := data.dist(metric, i, j)
			heap.FlaggedPush(indices[i], distances[i], flags[i], int32(j), d, 1)
		}
	})
}

// nnDescentUpdate performs one round of NNDescent updates and returns the
// number of heap insertions. Distances are computed in parallel, heaps are
// updated sequentially in chunk order.
func nnDescentUpdate(
	data points,
	indices [][]int32,
	distances [][]float32,
	flags [][]uint8,
	oldCandidates [][]int32,
	newCandidates [][]int32,
	metric distance.Metric,
	numWorkers int,
) int {
	n := data.Len()

	chunks := parallel.Split(n, parallel.ChunkSize(n, n, numWorkers))
	pairs := parallel.MapChunks(chunks, numWorkers, func(c parallel.Chunk) []candidatePair {
		var out []candidatePair
		offer := func(p1, p2 int32) {
			d := data.dist(metric, int(p1), int(p2))
			if d < distances[p1][0] || d < distances[p2][0] {
				out = append(out, candidatePair{p1, p2, d})
			}
		}
		for i := c.Start; i < c.End; i++ {
			newCands := newCandidates[i]
			for a, p1 := range newCands {
				for _, p2 := range newCands[a+1:] {
					if p1 != p2 {
						offer(p1, p2)
					}
				}
				for _, p2 := range oldCandidates[i] {
					if p1 != p2 {
						offer(p1, p2)
					}
				}
			}
		}
		return out
	})

	return applyPairs(pairs, indices, distances, flags)
}

// applyPairs pushes every pair into both endpoint heaps as a new neighbor.
func applyPairs(pairs [][]candidatePair, indices [][]int32, distances [][]float32, flags [][]uint8) int {
	updates := 0
	for _, chunk := range pairs {
		for _, c := range chunk {
			if heap.FlaggedPush(indices[c.p], distances[c.p], flags[c.p], c.q, c.dist, 1) {
				updates++
			}
			if heap.FlaggedPush(indices[c.q], distances[c.q], flags[c.q], c.p, c.dist, 1) {
				updates++
			}
		}
	}
	return updates
}

// sampleCandidates randomly samples a subset of candidates based on rho.
func sampleCandidates(candidates []int32, rho float32, rng *rand.State) []int32 {
	if rho >= 1.0 || len(candidates) == 0 {
		return candidates
	}

	targetSize := max(int(float32(len(candidates))*rho), 1)
	if targetSize >= len(candidates) {
		return candidates
	}

	rand.Shuffle(rng, candidates)
	return candidates[:targetSize]
}

// countValidNeighbors counts neighbors with valid indices
func countValidNeighbors(indices []int32) int {
	count := 0
	for _, idx := range indices {
		if idx >= 0 {
			count++
		}
	}
	return count
}

// repairInvalid fills the unset slots left in sorted neighbor rows with the
// nearest of a random sample and returns the number of rows it touched.
func repairInvalid(data points, g *KNNGraph, metric distance.Metric, seed int64) int {
	touched := 0
	for i := range g.N {
		if countValidNeighbors(g.Indices[i]) == len(g.Indices[i]) {
			continue
		}
		touched++
		rng := rand.New(seed + int64(i))
		heap.Heapify(g.Indices[i], g.Distances[i], nil)
		for attempts := 0; countValidNeighbors(g.Indices[i]) < len(g.Indices[i]) && attempts < 4*g.N; attempts++ {
			j := rand.Intn(&rng, g.N)
			var d float32
			if j != i {
				d = data.dist(metric, i, j)
			}
			heap.Push(g.Indices[i], g.Distances[i], int32(j), d)
		}
		// whatever is still unset after the sample is filled in index order
		for j := 0; j < g.N && countValidNeighbors(g.Indices[i]) < len(g.Indices[i]); j++ {
			heap.Push(g.Indices[i], g.Distances[i], int32(j), data.dist(metric, i, j))
		}
		heap.Sort(g.Indices[i], g.Distances[i])
	}
	return touched
}
