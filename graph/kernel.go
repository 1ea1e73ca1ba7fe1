package graph

import (
	"math"
	"slices"

	"github.com/nozzle/diffmap/internal/parallel"
)

// Kernel flavors.
const (
	FlavorHaghverdi16 = "haghverdi16"
	FlavorUnweighted  = "unweighted"
)

// weightCutoff is the smallest weight kept in the dense, non-knn kernel.
const weightCutoff = 1e-14

// KernelConfig configures kernel construction.
type KernelConfig struct {
	// KNN restricts the graph to the neighbor lists; otherwise every pair
	// with a weight above 1e-14 is kept.
	KNN bool

	// NNeighbors is the neighbor count k (including the point itself). Only
	// used for dense distance matrices, where the k-th neighbor sets the
	// bandwidth.
	NNeighbors int

	// Alpha is the density normalization exponent. 1 removes the sampling
	// density entirely, 0 skips the normalization.
	Alpha float64

	// Flavor is FlavorHaghverdi16 or FlavorUnweighted.
	Flavor string

	// NumWorkers for parallel processing (0 = auto)
	NumWorkers int
}

// DefaultKernelConfig returns default configuration.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		KNN:        true,
		NNeighbors: 30,
		Alpha:      1,
		Flavor:     FlavorHaghverdi16,
		NumWorkers: 0,
	}
}

// Kernel holds every matrix derived from the distance graph.
type Kernel struct {
	// W is the symmetric Gaussian weight matrix.
	W Matrix
	// K is the anisotropic kernel W[i,j] / (q[i]^α q[j]^α).
	K Matrix
	// Z holds the row sums of K (the degrees of the transition operator).
	Z []float64
	// SqrtZ is the elementwise square root of Z.
	SqrtZ []float64
	// Similarities is K[i,j] / sqrt(z[i] z[j]), the symmetric conjugate of the
	// transition matrix. Its top eigenvalue is 1 on a connected graph.
	// The unweighted flavor sets it to the adjacency pattern W.
	Similarities Matrix
}

// BuildKernel computes the locally scaled Gaussian kernel of the squared
// distance graph d, symmetrizes it and applies density normalization.
// Calling it twice on the same input yields bit-identical output.
func BuildKernel(d Matrix, config KernelConfig) (*Kernel, error) {
	r, c := d.Dims()
	if r != c {
		return nil, ErrShape
	}
	if config.Flavor == FlavorUnweighted {
		if !config.KNN {
			return nil, ErrUnweightedNeedsKNN
		}
		return unweightedKernel(d)
	}
	workers := parallel.Resolve(config.NumWorkers)

	var (
		indices  [][]int32
		distsSq  [][]float32
		sparseD  *CSR
		denseD   *Dense
		isSparse bool
	)
	switch m := d.(type) {
	case *CSR:
		sparseD, isSparse = m, true
		indices, distsSq = NeighborsFromSparse(m)
	case *Dense:
		denseD = m
		indices, distsSq = NeighborsFromDense(m, config.NNeighbors)
	default:
		return nil, ErrShape
	}

	sigmasSq := bandwidths(distsSq, config.KNN)
	sigmas := make([]float64, r)
	for i, s := range sigmasSq {
		sigmas[i] = math.Sqrt(s)
	}
	weight := func(i, j int, dsq float32) float32 {
		den := sigmasSq[i] + sigmasSq[j]
		if den == 0 {
			if dsq == 0 {
				return 1
			}
			return 0
		}
		return float32(math.Sqrt(2*sigmas[i]*sigmas[j]/den) * math.Exp(-float64(dsq)/den))
	}

	var w Matrix
	if isSparse {
		w = sparseWeights(sparseD, weight)
	} else {
		w = denseWeights(denseD, indices, config.KNN, weight, workers)
	}

	k := w
	if config.Alpha != 0 {
		q := w.RowSums()
		if config.Alpha != 1 {
			for i := range q {
				q[i] = math.Pow(q[i], config.Alpha)
			}
		}
		k = w.Map(func(i, j int, v float32) float32 {
			return float32(float64(v) / (q[i] * q[j]))
		})
	}

	z := k.RowSums()
	sqrtz := sqrtAll(z)
	sim := k.Map(func(i, j int, v float32) float32 {
		return float32(float64(v) / (sqrtz[i] * sqrtz[j]))
	})

	return &Kernel{W: w, K: k, Z: z, SqrtZ: sqrtz, Similarities: sim}, nil
}

// unweightedKernel uses the sign pattern of d with one-way edges mirrored
// as W, K and Similarities alike.
func unweightedKernel(d Matrix) (*Kernel, error) {
	var w Matrix
	switch m := d.(type) {
	case *CSR:
		w = sparseWeights(m, func(_, _ int, dsq float32) float32 {
			if dsq > 0 {
				return 1
			}
			return 0
		})
	case *Dense:
		w = Sign(m)
	default:
		return nil, ErrShape
	}
	z := w.RowSums()
	return &Kernel{W: w, K: w, Z: z, SqrtZ: sqrtAll(z), Similarities: w}, nil
}

func sqrtAll(z []float64) []float64 {
	out := slices.Clone(z)
	for i := range out {
		out[i] = math.Sqrt(out[i])
	}
	return out
}

// bandwidths returns σ² per point: the median neighbor squared distance in
// knn mode, else a quarter of the squared distance to the farthest kept
// neighbor (the k-th nearest point).
func bandwidths(distsSq [][]float32, knn bool) []float64 {
	out := make([]float64, len(distsSq))
	for i, row := range distsSq {
		if len(row) == 0 {
			continue
		}
		if knn {
			out[i] = median(row)
		} else {
			out[i] = float64(row[len(row)-1]) / 4
		}
	}
	return out
}

func median(row []float32) float64 {
	vals := make([]float64, len(row))
	for i, v := range row {
		vals[i] = float64(v)
	}
	slices.Sort(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// sparseWeights computes weights on the stored edges and mirrors every edge
// that exists in one direction only. A pair stored in both directions takes
// the value computed from the lower row index, so the result is exactly
// symmetric even when the two stored distances differ by rounding. Zero
// weights are not stored.
func sparseWeights(d *CSR, weight func(i, j int, dsq float32) float32) *CSR {
	type edge struct{ i, j int32 }
	vals := make(map[edge]float32, d.NNZ())
	for i := range d.NRows {
		cols, dists := d.Row(i)
		for k, j := range cols {
			if int(j) == i {
				continue
			}
			a, b := int32(i), j
			if a > b {
				a, b = b, a
			}
			e := edge{a, b}
			if _, ok := vals[e]; ok && int32(i) != a {
				continue
			}
			vals[e] = weight(i, int(j), dists[k])
		}
	}

	rows := make([]int32, 0, 2*len(vals))
	cols := make([]int32, 0, 2*len(vals))
	data := make([]float32, 0, 2*len(vals))
	for e, v := range vals {
		if v == 0 {
			continue
		}
		rows = append(rows, e.i, e.j)
		cols = append(cols, e.j, e.i)
		data = append(data, v, v)
	}
	return cooToCSR(rows, cols, data, d.NRows, d.NCols)
}

// denseWeights computes the full weight matrix and masks it, either to the
// symmetric closure of the neighbor lists (knn) or to weights above the
// cutoff.
func denseWeights(d *Dense, indices [][]int32, knn bool, weight func(i, j int, dsq float32) float32, workers int) *Dense {
	n := d.NRows
	w := NewDense(n, n, nil)
	parallel.ParallelFor(0, n, workers, func(i int) {
		for j := i; j < n; j++ {
			w.Data[i*n+j] = weight(i, j, d.Data[i*n+j])
		}
	})
	for i := range n {
		for j := i + 1; j < n; j++ {
			w.Data[j*n+i] = w.Data[i*n+j]
		}
	}

	if !knn {
		for i, v := range w.Data {
			if !(v > weightCutoff) {
				w.Data[i] = 0
			}
		}
		return w
	}

	mask := make([]bool, n*n)
	for i, row := range indices {
		for _, j := range row {
			mask[i*n+int(j)] = true
			mask[int(j)*n+i] = true
		}
	}
	for i := range w.Data {
		if !mask[i] {
			w.Data[i] = 0
		}
	}
	return w
}
