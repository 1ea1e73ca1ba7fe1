package nn

import (
	"github.com/nozzle/diffmap/distance"
	"github.com/nozzle/diffmap/graph"
)

// points abstracts dense and sparse feature rows for the approximate search.
type points interface {
	Len() int
	Dims() int
	// dist evaluates m between rows i and j.
	dist(m distance.Metric, i, j int) float32
	// dot returns the inner product of row i with the dense vector v.
	dot(i int, v []float32) float32
	// addScaled adds alpha times row i to dst.
	addScaled(dst []float32, i int, alpha float32)
}

type denseRows [][]float32

func (d denseRows) Len() int { return len(d) }

func (d denseRows) Dims() int {
	if len(d) == 0 {
		return 0
	}
	return len(d[0])
}

func (d denseRows) dist(m distance.Metric, i, j int) float32 {
	return m.Dense(d[i], d[j])
}

func (d denseRows) dot(i int, v []float32) float32 {
	var sum float32
	for k, x := range d[i] {
		sum += x * v[k]
	}
	return sum
}

func (d denseRows) addScaled(dst []float32, i int, alpha float32) {
	for k, x := range d[i] {
		dst[k] += alpha * x
	}
}

type sparseRows struct{ *graph.CSR }

func (s sparseRows) Len() int { return s.NRows }

func (s sparseRows) Dims() int { return s.NCols }

func (s sparseRows) dist(m distance.Metric, i, j int) float32 {
	ci, vi := s.Row(i)
	cj, vj := s.Row(j)
	return m.Sparse(ci, vi, cj, vj)
}

func (s sparseRows) dot(i int, v []float32) float32 {
	cols, vals := s.Row(i)
	var sum float32
	for k, c := range cols {
		sum += vals[k] * v[c]
	}
	return sum
}

func (s sparseRows) addScaled(dst []float32, i int, alpha float32) {
	cols, vals := s.Row(i)
	for k, c := range cols {
		dst[c] += alpha * vals[k]
	}
}
