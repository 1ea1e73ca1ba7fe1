package distance

// Sparse metrics walk two sorted index lists in lockstep.

// mergeRows calls fn for every column present in either row with the two
// values at that column (zero where absent).
func mergeRows(ind1 []int32, data1 []float32, ind2 []int32, data2 []float32, fn func(a, b float32)) {
	i, j := 0, 0
	for i < len(ind1) && j < len(ind2) {
		switch {
		case ind1[i] == ind2[j]:
			fn(data1[i], data2[j])
			i++
			j++
		case ind1[i] < ind2[j]:
			fn(data1[i], 0)
			i++
		default:
			fn(0, data2[j])
			j++
		}
	}
	for ; i < len(ind1); i++ {
		fn(data1[i], 0)
	}
	for ; j < len(ind2); j++ {
		fn(0, data2[j])
	}
}

// SparseSquaredEuclidean is SquaredEuclidean for sparse rows.
func SparseSquaredEuclidean(ind1 []int32, data1 []float32, ind2 []int32, data2 []float32) float32 {
	var sum float32
	mergeRows(ind1, data1, ind2, data2, func(a, b float32) {
		d := a - b
		sum += d * d
	})
	return sum
}

// SparseEuclidean is Euclidean for sparse rows.
func SparseEuclidean(ind1 []int32, data1 []float32, ind2 []int32, data2 []float32) float32 {
	return sqrt32(SparseSquaredEuclidean(ind1, data1, ind2, data2))
}

// SparseManhattan is Manhattan for sparse rows.
func SparseManhattan(ind1 []int32, data1 []float32, ind2 []int32, data2 []float32) float32 {
	var sum float32
	mergeRows(ind1, data1, ind2, data2, func(a, b float32) {
		sum += abs32(a - b)
	})
	return sum
}

// SparseCosine is Cosine for sparse rows.
func SparseCosine(ind1 []int32, data1 []float32, ind2 []int32, data2 []float32) float32 {
	var dot, nx, ny float32
	mergeRows(ind1, data1, ind2, data2, func(a, b float32) {
		dot += a * b
		nx += a * a
		ny += b * b
	})
	if nx == 0 || ny == 0 {
		return 1
	}
	return 1 - clampUnit(dot/(sqrt32(nx)*sqrt32(ny)))
}

// SparseJaccard is Jaccard for sparse rows.
func SparseJaccard(ind1 []int32, data1 []float32, ind2 []int32, data2 []float32) float32 {
	var ntt, nne int
	mergeRows(ind1, data1, ind2, data2, func(a, b float32) {
		at, bt := a != 0, b != 0
		if at && bt {
			ntt++
		} else if at != bt {
			nne++
		}
	})
	if ntt+nne == 0 {
		return 0
	}
	return float32(nne) / float32(ntt+nne)
}
