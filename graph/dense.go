package graph

import (
	"slices"
)

// Dense is a row-major float32 matrix.
type Dense struct {
	NRows int
	NCols int
	Data  []float32

	cols []int32 // 0..NCols-1, shared by Row
}

var _ Matrix = (*Dense)(nil)

// NewDense wraps data (row-major, len r*c) as a Dense matrix. A nil data
// allocates a zero matrix.
func NewDense(r, c int, data []float32) *Dense {
	if data == nil {
		data = make([]float32, r*c)
	}
	if len(data) != r*c {
		panic(ErrShape)
	}
	cols := make([]int32, c)
	for j := range cols {
		cols[j] = int32(j)
	}
	return &Dense{NRows: r, NCols: c, Data: data, cols: cols}
}

// Dims returns the matrix dimensions.
func (m *Dense) Dims() (int, int) {
	return m.NRows, m.NCols
}

// NNZ counts the non-zero entries.
func (m *Dense) NNZ() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Sparse is always false for Dense.
func (m *Dense) Sparse() bool {
	return false
}

// At returns the element at (i, j).
func (m *Dense) At(i, j int) float32 {
	return m.Data[i*m.NCols+j]
}

// Set sets the element at (i, j).
func (m *Dense) Set(i, j int, v float32) {
	m.Data[i*m.NCols+j] = v
}

// RawRow returns row i as a slice into the backing data.
func (m *Dense) RawRow(i int) []float32 {
	return m.Data[i*m.NCols : (i+1)*m.NCols]
}

// Row returns all column indices and the values of row i.
func (m *Dense) Row(i int) ([]int32, []float32) {
	cols := m.cols
	if len(cols) != m.NCols {
		cols = make([]int32, m.NCols)
		for j := range cols {
			cols[j] = int32(j)
		}
	}
	return cols, m.RawRow(i)
}

// RowSums returns the float64 sum of every row.
func (m *Dense) RowSums() []float64 {
	sums := make([]float64, m.NRows)
	for i := range m.NRows {
		for _, v := range m.RawRow(i) {
			sums[i] += float64(v)
		}
	}
	return sums
}

// Map returns a copy with fn applied to every element.
func (m *Dense) Map(fn func(i, j int, v float32) float32) Matrix {
	out := NewDense(m.NRows, m.NCols, nil)
	for i := range m.NRows {
		for j := range m.NCols {
			out.Data[i*m.NCols+j] = fn(i, j, m.Data[i*m.NCols+j])
		}
	}
	return out
}

// MulVec computes dst = M x.
func (m *Dense) MulVec(dst, x []float64) {
	for i := range m.NRows {
		var sum float64
		for j, v := range m.RawRow(i) {
			sum += float64(v) * x[j]
		}
		dst[i] = sum
	}
}

// Clone returns a deep copy.
func (m *Dense) Clone() *Dense {
	return NewDense(m.NRows, m.NCols, slices.Clone(m.Data))
}
