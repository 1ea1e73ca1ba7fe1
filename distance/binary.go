package distance

// Binary metrics treat non-zero entries as true.

func countBinary(x, y []float32) (ntt, nne int) {
	for i := range x {
		xt := x[i] != 0
		yt := y[i] != 0
		if xt && yt {
			ntt++
		} else if xt != yt {
			nne++
		}
	}
	return ntt, nne
}

// Hamming is the fraction of positions that differ.
func Hamming(x, y []float32) float32 {
	if len(x) == 0 {
		return 0
	}
	var diff int
	for i := range x {
		if x[i] != y[i] {
			diff++
		}
	}
	return float32(diff) / float32(len(x))
}

// Jaccard computes (number non-equal) / (number non-zero in either).
func Jaccard(x, y []float32) float32 {
	ntt, nne := countBinary(x, y)
	if ntt+nne == 0 {
		return 0
	}
	return float32(nne) / float32(ntt+nne)
}

// Dice computes nne / (2*ntt + nne).
func Dice(x, y []float32) float32 {
	ntt, nne := countBinary(x, y)
	if nne == 0 {
		return 0
	}
	return float32(nne) / float32(2*ntt+nne)
}
