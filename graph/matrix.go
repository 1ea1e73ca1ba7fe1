// Package graph provides the matrices of the neighborhood graph: a numeric
// matrix abstraction with dense and CSR storage, assembly of the distance
// graph from neighbor lists, and the anisotropic kernel built on top of it.
package graph

import (
	"errors"
)

// Sentinel errors.
var (
	// ErrShape is returned when neighbor arrays or matrices have inconsistent
	// dimensions.
	ErrShape = errors.New("graph: inconsistent shape")

	// ErrUnweightedNeedsKNN is returned when the unweighted flavor is requested
	// on a dense (non-knn) distance matrix.
	ErrUnweightedNeedsKNN = errors.New("graph: flavor \"unweighted\" requires knn")
)

// Matrix is a float32 matrix stored either densely or in CSR form. The
// kernel and spectral code is written once against this interface.
type Matrix interface {
	// Dims returns the number of rows and columns.
	Dims() (r, c int)

	// At returns the element at (i, j); absent sparse entries are zero.
	At(i, j int) float32

	// Row returns the column indices and values stored for row i. Dense
	// matrices report every column. The returned slices must not be modified.
	Row(i int) ([]int32, []float32)

	// NNZ returns the number of stored entries.
	NNZ() int

	// Sparse reports whether the matrix uses compressed storage.
	Sparse() bool

	// RowSums returns the sum of every row (the degree for weight matrices).
	RowSums() []float64

	// Map returns a copy with fn applied to every stored entry. The storage
	// pattern is preserved.
	Map(fn func(i, j int, v float32) float32) Matrix

	// MulVec computes dst = M x.
	MulVec(dst, x []float64)
}

// Sign returns the elementwise sign of m with m's storage pattern.
func Sign(m Matrix) Matrix {
	return m.Map(func(_, _ int, v float32) float32 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		}
		return 0
	})
}

// IsSymmetric reports whether m[i,j] == m[j,i] exactly for all stored entries.
func IsSymmetric(m Matrix) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}
	for i := range r {
		cols, vals := m.Row(i)
		for k, j := range cols {
			if m.At(int(j), i) != vals[k] {
				return false
			}
		}
	}
	return true
}

// FirstRowNNZ counts the non-zero entries of the first row. Together with
// Sparse it identifies a previously stored knn distance graph.
func FirstRowNNZ(m Matrix) int {
	r, _ := m.Dims()
	if r == 0 {
		return 0
	}
	_, vals := m.Row(0)
	n := 0
	for _, v := range vals {
		if v != 0 {
			n++
		}
	}
	return n
}
