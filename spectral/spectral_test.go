package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozzle/diffmap/graph"
)

// randomSymmetric returns a dense symmetric matrix with entries in [-1, 1).
func randomSymmetric(n int, seed int64) *graph.Dense {
	m := graph.NewDense(n, n, nil)
	rng := seed
	for i := range n {
		for j := i; j < n; j++ {
			rng = (rng*6364136223846793005 + 1442695040888963407) & 0x7FFFFFFF
			v := 2*float32(rng)/float32(0x7FFFFFFF) - 1
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
	return m
}

// pathLaplacian returns the Laplacian of the path graph on n nodes in CSR
// form.
func pathLaplacian(n int) *graph.CSR {
	m := &graph.CSR{Indptr: []int32{0}, NRows: n, NCols: n}
	for i := range n {
		deg := float32(0)
		if i > 0 {
			deg++
		}
		if i < n-1 {
			deg++
		}
		if i > 0 {
			m.Indices = append(m.Indices, int32(i-1))
			m.Data = append(m.Data, -1)
		}
		m.Indices = append(m.Indices, int32(i))
		m.Data = append(m.Data, deg)
		if i < n-1 {
			m.Indices = append(m.Indices, int32(i+1))
			m.Data = append(m.Data, -1)
		}
		m.Indptr = append(m.Indptr, int32(len(m.Indices)))
	}
	return m
}

func assertEigenpairs(t *testing.T, m graph.Matrix, s *Spectrum) {
	t.Helper()
	n, _ := m.Dims()
	x := make([]float64, n)
	ax := make([]float64, n)
	for c, lambda := range s.Values {
		for i := range n {
			x[i] = float64(s.Right.At(i, c))
		}
		m.MulVec(ax, x)
		for i := range n {
			assert.InDelta(t, float64(lambda)*x[i], ax[i], 1e-4, "pair %d row %d", c, i)
		}
	}
}

func TestDecomposeFull(t *testing.T) {
	m := graph.NewDense(2, 2, []float32{2, 1, 1, 2})

	s, err := Decompose(m, 0, SortIncrease)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 3}, s.Values, 1e-6)
	assert.True(t, s.Symmetric)
	assert.Same(t, s.Right, s.Left)

	s, err = Decompose(m, 0, SortDecrease)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{3, 1}, s.Values, 1e-6)
	assertEigenpairs(t, m, s)
}

func TestDecomposePartialMatchesFull(t *testing.T) {
	m := randomSymmetric(60, 17)

	full, err := Decompose(m, 0, SortDecrease)
	require.NoError(t, err)

	lm, err := Decompose(m, 6, SortDecrease)
	require.NoError(t, err)
	require.Equal(t, 6, lm.Len())
	assertEigenpairs(t, m, lm)

	// the six largest magnitudes, in decreasing algebraic order
	mags := make([]float64, 0, full.Len())
	for _, v := range full.Values {
		mags = append(mags, math.Abs(float64(v)))
	}
	for _, v := range lm.Values {
		rank := 0
		for _, a := range mags {
			if a > math.Abs(float64(v))+1e-5 {
				rank++
			}
		}
		assert.Less(t, rank, 6, "eigenvalue %v is not among the largest", v)
	}
	for i := 1; i < lm.Len(); i++ {
		assert.GreaterOrEqual(t, lm.Values[i-1], lm.Values[i])
	}
}

func TestDecomposeSmallestMagnitude(t *testing.T) {
	l := pathLaplacian(12)

	s, err := Decompose(l, 3, SortIncrease)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	// path graph Laplacian eigenvalues are 2 - 2cos(πk/n)
	for k, v := range s.Values {
		want := 2 - 2*math.Cos(math.Pi*float64(k)/12)
		assert.InDelta(t, want, float64(v), 1e-5)
	}
	assertEigenpairs(t, l, s)
}

func TestDecomposeClampsComponents(t *testing.T) {
	m := randomSymmetric(5, 3)

	s, err := Decompose(m, 50, SortDecrease)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	n, c := s.Right.Dims()
	assert.Equal(t, 5, n)
	assert.Equal(t, 4, c)
}

func TestDecomposeRejectsAsymmetric(t *testing.T) {
	m := graph.NewDense(2, 2, []float32{1, 2, 0, 1})

	_, err := Decompose(m, 0, SortDecrease)
	require.ErrorIs(t, err, ErrAsymmetric)

	_, err = Decompose(graph.NewDense(2, 3, nil), 1, SortDecrease)
	require.ErrorIs(t, err, graph.ErrShape)
}

func TestSpectrumTransition(t *testing.T) {
	m := randomSymmetric(8, 5)
	s, err := Decompose(m, 0, SortDecrease)
	require.NoError(t, err)

	sqrtz := []float64{1, 2, 3, 4, 1, 2, 3, 4}
	tr := s.Transition(sqrtz)
	assert.False(t, tr.Symmetric)
	for i := range 8 {
		for j := range 8 {
			v := float64(s.Right.At(i, j))
			assert.InDelta(t, v/sqrtz[i], tr.Right.At(i, j), 1e-6)
			assert.InDelta(t, v*sqrtz[i], tr.Left.At(i, j), 1e-5)
		}
	}
}

func TestSpectrumReducible(t *testing.T) {
	s := &Spectrum{Values: []float32{1, 1, 0.5}}
	assert.Equal(t, 2, s.Ones())
	assert.True(t, s.Reducible())

	s = &Spectrum{Values: []float32{1, 0.9, 0.5, 0.2}}
	assert.False(t, s.Reducible())
}

func TestLayout(t *testing.T) {
	l := pathLaplacian(6)

	y, values, err := Layout(l)
	require.NoError(t, err)
	n, c := y.Dims()
	assert.Equal(t, 6, n)
	assert.Equal(t, 5, c)
	require.Len(t, values, 5)
	assert.Greater(t, values[0], float32(1e-6))
	for i := 1; i < len(values); i++ {
		assert.LessOrEqual(t, values[i-1], values[i])
	}
}
