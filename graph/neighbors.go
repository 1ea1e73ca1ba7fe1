package graph

import (
	"slices"
)

// NeighborsFromSparse reads back the neighbor lists stored in a knn distance
// graph, in storage order.
func NeighborsFromSparse(d *CSR) ([][]int32, [][]float32) {
	indices := make([][]int32, d.NRows)
	distances := make([][]float32, d.NRows)
	for i := range d.NRows {
		cols, vals := d.Row(i)
		indices[i] = slices.Clone(cols)
		distances[i] = slices.Clone(vals)
	}
	return indices, distances
}

// NeighborsFromDense selects, for every row of a dense squared-distance
// matrix, the k-1 nearest points other than the row itself, ascending by
// distance with ties broken by index.
func NeighborsFromDense(d *Dense, k int) ([][]int32, [][]float32) {
	indices := make([][]int32, d.NRows)
	distances := make([][]float32, d.NRows)
	for i := range d.NRows {
		row := d.RawRow(i)
		sel := SmallestK(row, k, i)
		indices[i] = sel
		distances[i] = make([]float32, len(sel))
		for j, c := range sel {
			distances[i][j] = row[c]
		}
	}
	return indices, distances
}

// SmallestK returns the column indices of the k smallest values of row, in
// ascending (value, index) order, with self removed. The k candidates are
// found by partial selection and only those are sorted. When self is not
// among them the farthest candidate is dropped instead, so the result always
// holds min(k, len(row)) - 1 entries.
func SmallestK(row []float32, k, self int) []int32 {
	k = min(k, len(row))
	if k <= 0 {
		return nil
	}

	idx := make([]int32, len(row))
	for i := range idx {
		idx[i] = int32(i)
	}
	less := func(a, b int32) bool {
		if row[a] != row[b] {
			return row[a] < row[b]
		}
		if (int(a) == self) != (int(b) == self) {
			return int(a) == self
		}
		return a < b
	}

	nthElement(idx, k-1, less)
	sel := idx[:k]
	slices.SortFunc(sel, func(a, b int32) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})

	if p := slices.Index(sel, int32(self)); p >= 0 {
		return slices.Delete(slices.Clone(sel), p, p+1)
	}
	return slices.Clone(sel[:k-1])
}

// nthElement reorders idx so that idx[n] holds the element that would be
// there if idx were fully sorted by less, with no element before it greater
// and none after it smaller. less must be a strict total order.
func nthElement(idx []int32, n int, less func(a, b int32) bool) {
	lo, hi := 0, len(idx)-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if less(idx[mid], idx[lo]) {
			idx[mid], idx[lo] = idx[lo], idx[mid]
		}
		if less(idx[hi], idx[lo]) {
			idx[hi], idx[lo] = idx[lo], idx[hi]
		}
		if less(idx[hi], idx[mid]) {
			idx[hi], idx[mid] = idx[mid], idx[hi]
		}
		pivot := idx[mid]

		i, j := lo, hi
		for i <= j {
			for less(idx[i], pivot) {
				i++
			}
			for less(pivot, idx[j]) {
				j--
			}
			if i <= j {
				idx[i], idx[j] = idx[j], idx[i]
				i++
				j--
			}
		}

		switch {
		case n <= j:
			hi = j
		case n >= i:
			lo = i
		default:
			return
		}
	}
}
