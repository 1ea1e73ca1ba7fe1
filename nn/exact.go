package nn

import (
	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/internal/parallel"
)

// chunkNeighbors holds the neighbor rows of one chunk.
type chunkNeighbors struct {
	indices   [][]int32
	distances [][]float32
}

// exactDense computes squared Euclidean distances chunk by chunk through
// ‖a−b‖² = ‖a‖² + ‖b‖² − 2a·b and keeps the k-1 nearest points of every
// row. Chunks run concurrently and are merged by chunk index.
func exactDense(data [][]float32, k int, config Config) *KNNGraph {
	x := toMat(data)
	norms := rowNorms(x)
	return exactChunked(len(data), k, config, func(c parallel.Chunk, dst *mat.Dense) {
		_, dim := x.Dims()
		dst.Mul(x.Slice(c.Start, c.End, 0, dim), x.T())
	}, norms)
}

// exactSparse is exactDense for CSR rows. Inner products are taken by
// scattering the chunk row into a dense buffer.
func exactSparse(x *graph.CSR, k int, config Config) *KNNGraph {
	norms := sparseNorms(x)
	return exactChunked(x.NRows, k, config, func(c parallel.Chunk, dst *mat.Dense) {
		sparseGram(x, c, dst)
	}, norms)
}

func exactChunked(n, k int, config Config, gram func(c parallel.Chunk, dst *mat.Dense), norms []float64) *KNNGraph {
	workers := parallel.Resolve(config.NumWorkers)
	chunks := parallel.Split(n, parallel.ChunkSize(n, config.ChunkRows, workers))

	results := parallel.MapChunks(chunks, workers, func(c parallel.Chunk) chunkNeighbors {
		g := mat.NewDense(c.Len(), n, nil)
		gram(c, g)

		out := chunkNeighbors{
			indices:   make([][]int32, c.Len()),
			distances: make([][]float32, c.Len()),
		}
		row := make([]float32, n)
		for r := range c.Len() {
			i := c.Start + r
			squaredRow(row, g.RawRowView(r), norms, i)
			sel := graph.SmallestK(row, k, i)
			out.indices[r] = sel
			out.distances[r] = make([]float32, len(sel))
			for j, col := range sel {
				out.distances[r][j] = row[col]
			}
		}
		return out
	})

	g := &KNNGraph{
		Indices:   make([][]int32, n),
		Distances: make([][]float32, n),
		N:         n,
		K:         k - 1,
	}
	for _, c := range chunks {
		copy(g.Indices[c.Start:c.End], results[c.Index].indices)
		copy(g.Distances[c.Start:c.End], results[c.Index].distances)
	}
	return g
}

// squaredRow turns one row of inner products into squared distances.
// Rounding can push the identity below zero; such values and the diagonal
// are set to exactly zero.
func squaredRow(dst []float32, dots []float64, norms []float64, i int) {
	for j, dot := range dots {
		d := norms[i] + norms[j] - 2*dot
		if d < 0 || j == i {
			d = 0
		}
		dst[j] = float32(d)
	}
}

// DenseDistances returns the full N×N squared Euclidean distance matrix.
func DenseDistances(data [][]float32, numWorkers int) *graph.Dense {
	x := toMat(data)
	norms := rowNorms(x)
	n, dim := x.Dims()
	return denseChunked(n, numWorkers, norms, func(c parallel.Chunk, dst *mat.Dense) {
		dst.Mul(x.Slice(c.Start, c.End, 0, dim), x.T())
	})
}

// DenseDistancesSparse is DenseDistances for CSR rows.
func DenseDistancesSparse(x *graph.CSR, numWorkers int) *graph.Dense {
	return denseChunked(x.NRows, numWorkers, sparseNorms(x), func(c parallel.Chunk, dst *mat.Dense) {
		sparseGram(x, c, dst)
	})
}

func denseChunked(n, numWorkers int, norms []float64, gram func(c parallel.Chunk, dst *mat.Dense)) *graph.Dense {
	out := graph.NewDense(n, n, nil)
	workers := parallel.Resolve(numWorkers)
	chunks := parallel.Split(n, parallel.ChunkSize(n, n, workers))
	parallel.MapChunks(chunks, workers, func(c parallel.Chunk) struct{} {
		if n == 0 {
			return struct{}{}
		}
		g := mat.NewDense(c.Len(), n, nil)
		gram(c, g)
		for r := range c.Len() {
			i := c.Start + r
			squaredRow(out.RawRow(i), g.RawRowView(r), norms, i)
		}
		return struct{}{}
	})
	return out
}

func toMat(data [][]float32) *mat.Dense {
	n := len(data)
	if n == 0 {
		return &mat.Dense{}
	}
	dim := len(data[0])
	flat := make([]float64, n*dim)
	for i, row := range data {
		for j, v := range row {
			flat[i*dim+j] = float64(v)
		}
	}
	return mat.NewDense(n, dim, flat)
}

func rowNorms(x *mat.Dense) []float64 {
	n, _ := x.Dims()
	norms := make([]float64, n)
	for i := range n {
		row := x.RawRowView(i)
		norms[i] = mat.Dot(mat.NewVecDense(len(row), row), mat.NewVecDense(len(row), row))
	}
	return norms
}

func sparseNorms(x *graph.CSR) []float64 {
	norms := make([]float64, x.NRows)
	for i := range x.NRows {
		_, vals := x.Row(i)
		for _, v := range vals {
			norms[i] += float64(v) * float64(v)
		}
	}
	return norms
}

// sparseGram writes the inner products of the chunk rows with every row of x
// into dst.
func sparseGram(x *graph.CSR, c parallel.Chunk, dst *mat.Dense) {
	buf := make([]float64, x.NCols)
	for r := range c.Len() {
		cols, vals := x.Row(c.Start + r)
		for k, col := range cols {
			buf[col] = float64(vals[k])
		}
		out := dst.RawRowView(r)
		for j := range x.NRows {
			cj, vj := x.Row(j)
			var dot float64
			for k, col := range cj {
				dot += buf[col] * float64(vj[k])
			}
			out[j] = dot
		}
		for _, col := range cols {
			buf[col] = 0
		}
	}
}
