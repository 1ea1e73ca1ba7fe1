package nn

import (
	"slices"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/nozzle/diffmap/internal/parallel"
)

// indexedPoint is a kd-tree point that remembers its row.
type indexedPoint struct {
	index  int32
	coords []float64
}

// Compare satisfies the axis comparisons method of the kdtree.Comparable interface.
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coords[d] - c.(indexedPoint).coords[d]
}

// Dims returns the number of dimensions to be considered.
func (p indexedPoint) Dims() int { return len(p.coords) }

// Distance returns the squared Euclidean distance between the receiver and c.
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	var sum float64
	for i, v := range p.coords {
		d := v - q.coords[i]
		sum += d * d
	}
	return sum
}

// indexedPoints is a collection of indexedPoint that satisfies kdtree.Interface.
type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int                { return plane{indexedPoints: p, Dim: d}.Pivot() }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts indexedPoints along one axis.
type plane struct {
	kdtree.Dim
	indexedPoints
}

func (p plane) Less(i, j int) bool {
	return p.indexedPoints[i].coords[p.Dim] < p.indexedPoints[j].coords[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// treeSearch finds exact neighbors through a kd-tree, never materializing an
// N×N distance block. Queries run in parallel against the read-only tree.
func treeSearch(data [][]float32, k int, config Config) *KNNGraph {
	n := len(data)
	pts := make(indexedPoints, n)
	for i, row := range data {
		coords := make([]float64, len(row))
		for j, v := range row {
			coords[j] = float64(v)
		}
		pts[i] = indexedPoint{index: int32(i), coords: coords}
	}
	queries := slices.Clone(pts)
	tree := kdtree.New(pts, false)

	g := &KNNGraph{
		Indices:   make([][]int32, n),
		Distances: make([][]float32, n),
		N:         n,
		K:         k - 1,
	}
	parallel.ParallelFor(0, n, parallel.Resolve(config.NumWorkers), func(i int) {
		keep := kdtree.NewNKeeper(k)
		tree.NearestSet(keep, queries[i])

		found := make([]kdtree.ComparableDist, 0, k)
		for _, c := range keep.Heap {
			if c.Comparable != nil {
				found = append(found, c)
			}
		}
		slices.SortFunc(found, func(a, b kdtree.ComparableDist) int {
			switch {
			case a.Dist < b.Dist:
				return -1
			case a.Dist > b.Dist:
				return 1
			}
			return int(a.Comparable.(indexedPoint).index - b.Comparable.(indexedPoint).index)
		})

		indices := make([]int32, len(found))
		distances := make([]float32, len(found))
		for j, c := range found {
			indices[j] = c.Comparable.(indexedPoint).index
			distances[j] = float32(c.Dist)
		}
		g.Indices[i], g.Distances[i] = dropSelf(indices, distances, i)
	})
	return g
}
