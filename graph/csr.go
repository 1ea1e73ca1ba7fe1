package graph

import (
	"slices"
)

// CSR is a sparse matrix in compressed sparse row format.
type CSR struct {
	Indptr  []int32   // Row pointers
	Indices []int32   // Column indices
	Data    []float32 // Values
	NRows   int       // Number of rows
	NCols   int       // Number of columns
}

var _ Matrix = (*CSR)(nil)

// Dims returns the matrix dimensions.
func (m *CSR) Dims() (int, int) {
	return m.NRows, m.NCols
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int {
	return len(m.Data)
}

// Sparse is always true for CSR.
func (m *CSR) Sparse() bool {
	return true
}

// Row returns the column indices and values for a given row.
func (m *CSR) Row(row int) ([]int32, []float32) {
	start := m.Indptr[row]
	end := m.Indptr[row+1]
	return m.Indices[start:end], m.Data[start:end]
}

// At returns the stored value at (i, j) or zero.
func (m *CSR) At(i, j int) float32 {
	cols, vals := m.Row(i)
	for k, c := range cols {
		if int(c) == j {
			return vals[k]
		}
	}
	return 0
}

// RowSums returns the float64 sum of every row.
func (m *CSR) RowSums() []float64 {
	sums := make([]float64, m.NRows)
	for i := range m.NRows {
		_, vals := m.Row(i)
		for _, v := range vals {
			sums[i] += float64(v)
		}
	}
	return sums
}

// Map returns a copy with fn applied to every stored entry.
func (m *CSR) Map(fn func(i, j int, v float32) float32) Matrix {
	out := &CSR{
		Indptr:  slices.Clone(m.Indptr),
		Indices: slices.Clone(m.Indices),
		Data:    make([]float32, len(m.Data)),
		NRows:   m.NRows,
		NCols:   m.NCols,
	}
	for i := range m.NRows {
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			out.Data[k] = fn(i, int(m.Indices[k]), m.Data[k])
		}
	}
	return out
}

// MulVec computes dst = M x.
func (m *CSR) MulVec(dst, x []float64) {
	for i := range m.NRows {
		var sum float64
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			sum += float64(m.Data[k]) * x[m.Indices[k]]
		}
		dst[i] = sum
	}
}

// cooToCSR converts COO triplets to CSR with rows and columns sorted.
func cooToCSR(rows, cols []int32, data []float32, nrows, ncols int) *CSR {
	nnz := len(rows)

	type entry struct {
		row, col int32
		val      float32
	}
	entries := make([]entry, nnz)
	for i := range entries {
		entries[i] = entry{rows[i], cols[i], data[i]}
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if a.row != b.row {
			return int(a.row - b.row)
		}
		return int(a.col - b.col)
	})

	indptr := make([]int32, nrows+1)
	indices := make([]int32, nnz)
	vals := make([]float32, nnz)

	for i, e := range entries {
		indices[i] = e.col
		vals[i] = e.val
		indptr[e.row+1]++
	}

	for i := 1; i <= nrows; i++ {
		indptr[i] += indptr[i-1]
	}

	return &CSR{
		Indptr:  indptr,
		Indices: indices,
		Data:    vals,
		NRows:   nrows,
		NCols:   ncols,
	}
}
