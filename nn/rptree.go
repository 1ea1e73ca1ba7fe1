package nn

import (
	"math"

	"github.com/nozzle/diffmap/internal/rand"
)

// RPTree represents a random projection tree for approximate nearest neighbor search.
type RPTree struct {
	// Hyperplane normal for splits (nil for leaf nodes)
	Hyperplane []float32
	// Offset for the hyperplane decision
	Offset float32
	// Left and Right children (nil for leaves)
	Left  *RPTree
	Right *RPTree
	// Indices of points in this leaf (empty for internal nodes)
	Indices []int32
	// IsLeaf indicates if this is a leaf node
	IsLeaf bool
}

// RPForest is a collection of RP-trees used to seed NN-descent.
type RPForest struct {
	Trees    []*RPTree
	LeafSize int
}

// RPForestConfig configures RP-forest construction.
type RPForestConfig struct {
	// NumTrees is the number of trees to build
	NumTrees int
	// LeafSize is the maximum number of points in a leaf
	LeafSize int
	// Angular indicates whether to use angular RP-trees
	Angular bool
	// Seed for random number generation
	Seed int64
}

// DefaultRPForestConfig returns default configuration.
func DefaultRPForestConfig() RPForestConfig {
	return RPForestConfig{
		NumTrees: 10,
		LeafSize: 30,
		Angular:  false,
		Seed:     42,
	}
}

// BuildRPForest builds a random projection forest from dense data.
func BuildRPForest(data [][]float32, config RPForestConfig) *RPForest {
	rng := rand.FromSeed(config.Seed)
	return buildForest(denseRows(data), config, &rng)
}

func buildForest(data points, config RPForestConfig, rng *rand.State) *RPForest {
	n := data.Len()
	if n == 0 {
		return &RPForest{LeafSize: config.LeafSize}
	}

	trees := make([]*RPTree, config.NumTrees)
	for t := range config.NumTrees {
		indices := make([]int32, n)
		for i := range indices {
			indices[i] = int32(i)
		}
		trees[t] = buildRPTree(data, indices, config.LeafSize, config.Angular, rng)
	}

	return &RPForest{
		Trees:    trees,
		LeafSize: config.LeafSize,
	}
}

// buildRPTree recursively builds an RP-tree.
func buildRPTree(data points, indices []int32, leafSize int, angular bool, rng *rand.State) *RPTree {
	if len(indices) <= max(leafSize, 1) {
		leafIndices := make([]int32, len(indices))
		copy(leafIndices, indices)
		return &RPTree{
			Indices: leafIndices,
			IsLeaf:  true,
		}
	}

	// Two random points define the split
	i := rand.Intn(rng, len(indices))
	j := rand.Intn(rng, len(indices))
	for j == i {
		j = rand.Intn(rng, len(indices))
	}
	p1, p2 := int(indices[i]), int(indices[j])

	hyperplane := make([]float32, data.Dims())
	data.addScaled(hyperplane, p2, 1)
	data.addScaled(hyperplane, p1, -1)

	var offset float32
	if angular {
		var normSq float64
		for _, h := range hyperplane {
			normSq += float64(h) * float64(h)
		}
		if normSq > 0 {
			inv := float32(1 / math.Sqrt(normSq))
			for d := range hyperplane {
				hyperplane[d] *= inv
			}
		}
	} else {
		// Euclidean splits pass through the midpoint of p1 and p2
		offset = (data.dot(p1, hyperplane) + data.dot(p2, hyperplane)) / 2
	}

	leftIndices := make([]int32, 0, len(indices)/2)
	rightIndices := make([]int32, 0, len(indices)/2)
	for _, idx := range indices {
		if data.dot(int(idx), hyperplane) < offset {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}

	// Degenerate split: fall back to a random halving
	if len(leftIndices) == 0 || len(rightIndices) == 0 {
		rand.Shuffle(rng, indices)
		mid := len(indices) / 2
		leftIndices = indices[:mid]
		rightIndices = indices[mid:]
	}

	return &RPTree{
		Hyperplane: hyperplane,
		Offset:     offset,
		Left:       buildRPTree(data, leftIndices, leafSize, angular, rng),
		Right:      buildRPTree(data, rightIndices, leafSize, angular, rng),
		IsLeaf:     false,
	}
}

// Leaves returns the point indices of every leaf of every tree.
func (f *RPForest) Leaves() [][]int32 {
	var leaves [][]int32
	var walk func(t *RPTree)
	walk = func(t *RPTree) {
		if t.IsLeaf {
			leaves = append(leaves, t.Indices)
			return
		}
		walk(t.Left)
		walk(t.Right)
	}
	for _, t := range f.Trees {
		walk(t)
	}
	return leaves
}
