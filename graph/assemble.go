package graph

import (
	"fmt"
)

// Assemble builds the N×N distance graph from per-point neighbor lists.
// Every row holds exactly len(indices[i]) entries, all rows the same length,
// laid out in neighbor order: row i occupies slots [i*(k-1), (i+1)*(k-1)).
func Assemble(indices [][]int32, distances [][]float32, n int) (*CSR, error) {
	if len(indices) != n || len(distances) != n {
		return nil, fmt.Errorf("%w: %d index rows, %d distance rows for %d points",
			ErrShape, len(indices), len(distances), n)
	}
	degree := 0
	if n > 0 {
		degree = len(indices[0])
	}

	indptr := make([]int32, n+1)
	cols := make([]int32, 0, n*degree)
	data := make([]float32, 0, n*degree)

	for i := range n {
		if len(indices[i]) != degree || len(distances[i]) != degree {
			return nil, fmt.Errorf("%w: row %d has %d neighbors, want %d",
				ErrShape, i, len(indices[i]), degree)
		}
		for j, idx := range indices[i] {
			if idx < 0 || int(idx) >= n {
				return nil, fmt.Errorf("%w: row %d neighbor %d out of range", ErrShape, i, idx)
			}
			cols = append(cols, idx)
			data = append(data, distances[i][j])
		}
		indptr[i+1] = int32((i + 1) * degree)
	}

	return &CSR{
		Indptr:  indptr,
		Indices: cols,
		Data:    data,
		NRows:   n,
		NCols:   n,
	}, nil
}
