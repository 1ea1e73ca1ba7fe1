package diffusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/spectral"
)

// smallSpectrum returns a symmetric spectrum over 4 points with 3 components.
func smallSpectrum() *spectral.Spectrum {
	basis := graph.NewDense(4, 3, []float32{
		0.5, 0.1, 0.7,
		0.5, 0.4, -0.2,
		0.5, -0.3, 0.1,
		0.5, -0.2, -0.6,
	})
	return &spectral.Spectrum{
		Values:    []float32{1, 0.8, 0.5},
		Right:     basis,
		Left:      basis,
		Symmetric: true,
	}
}

// pathLaplacian3 is the Laplacian of the unit-weight path 0-1-2.
func pathLaplacian3() (*graph.CSR, []float64) {
	l := &graph.CSR{
		Indptr:  []int32{0, 2, 5, 7},
		Indices: []int32{0, 1, 0, 1, 2, 1, 2},
		Data:    []float32{1, -1, -1, 2, -1, -1, 1},
		NRows:   3,
		NCols:   3,
	}
	return l, []float64{1, 2, 1}
}

func TestDistanceRows(t *testing.T) {
	s := smallSpectrum()
	rows, err := DistanceRows(s)
	require.NoError(t, err)

	r0 := rows(0)
	r2 := rows(2)
	assert.Equal(t, float32(0), r0[0])
	assert.InDelta(t, r0[2], r2[0], 1e-6)

	// λ=1 contributes the plain difference, λ=0.8 is weighted by 4, λ=0.5 by 1
	want := math.Sqrt(0 + math.Pow(4*(0.1+0.3), 2) + math.Pow(0.7-0.1, 2))
	assert.InDelta(t, want, r0[2], 1e-5)
}

func TestDistanceRowsRejectsAsymmetric(t *testing.T) {
	s := smallSpectrum().Transition([]float64{1, 2, 3, 4})

	_, err := DistanceRows(s)
	require.ErrorIs(t, err, ErrAsymmetricBasis)
	_, err = NewDistanceMatrix(s, 0)
	require.ErrorIs(t, err, ErrAsymmetricBasis)
}

func TestPseudotime(t *testing.T) {
	d, err := NewDistanceMatrix(smallSpectrum(), 0)
	require.NoError(t, err)

	pt := Pseudotime(d, 1)
	require.Len(t, pt, 4)
	assert.Equal(t, float32(0), pt[1])
	maxVal := float32(0)
	for _, v := range pt {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
		maxVal = max(maxVal, v)
	}
	assert.InDelta(t, 1, maxVal, 1e-6)

	zero := DenseRows{mat.NewDense(2, 2, nil)}
	assert.Equal(t, []float32{0, 0}, Pseudotime(zero, 0))
}

func TestMMatrix(t *testing.T) {
	s := smallSpectrum()
	m, err := MMatrix(s, DefaultDenseConfig())
	require.NoError(t, err)

	coef := []float64{1, 4, 1}
	for i := range 4 {
		for j := range 4 {
			var want float64
			for l, c := range coef {
				want += c * float64(s.Right.At(i, l)) * float64(s.Left.At(j, l))
			}
			assert.InDelta(t, want, m.At(i, j), 1e-6)
		}
	}

	config := DefaultDenseConfig()
	config.MaxPoints = 3
	_, err = MMatrix(s, config)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestDPTDistances(t *testing.T) {
	m, err := MMatrix(smallSpectrum(), DefaultDenseConfig())
	require.NoError(t, err)

	d := DPTDistances(m, DefaultDenseConfig())
	for i := range 4 {
		assert.Equal(t, 0.0, d.At(i, i))
		for j := range 4 {
			assert.Equal(t, d.At(i, j), d.At(j, i))
			want := 0.0
			for c := range 4 {
				diff := m.At(i, c) - m.At(j, c)
				want += diff * diff
			}
			assert.InDelta(t, math.Sqrt(want), d.At(i, j), 1e-9)
		}
	}

	// PCA with all components preserves pairwise distances
	config := DefaultDenseConfig()
	config.PCAThreshold = 2
	config.PCAComponents = 4
	reduced := DPTDistances(m, config)
	for i := range 4 {
		for j := range 4 {
			assert.InDelta(t, d.At(i, j), reduced.At(i, j), 1e-9)
		}
	}
}

func TestPCA(t *testing.T) {
	x := mat.NewDense(5, 3, []float64{
		1, 2, 0,
		2, 4, 0,
		3, 6, 0,
		4, 8, 0,
		5, 10, 0,
	})
	p := PCA(x, 2)
	r, c := p.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)

	// the data lies on a line: all variance in the first component
	for i := range 5 {
		assert.InDelta(t, 0, p.At(i, 1), 1e-9)
	}
	assert.InDelta(t, math.Sqrt(5)*2, math.Abs(p.At(0, 0)), 1e-9)
}

func TestLaplacianAndTransition(t *testing.T) {
	k := &graph.CSR{
		Indptr:  []int32{0, 1, 3, 4},
		Indices: []int32{1, 0, 2, 1},
		Data:    []float32{1, 1, 1, 1},
		NRows:   3,
		NCols:   3,
	}
	z := k.RowSums()

	l := Laplacian(k, z)
	for _, s := range l.RowSums() {
		assert.InDelta(t, 0, s, 1e-9)
	}
	assert.Equal(t, float32(2), l.At(1, 1))
	assert.Equal(t, float32(-1), l.At(1, 2))

	dense := graph.NewDense(3, 3, []float32{0, 1, 0, 1, 0, 1, 0, 1, 0})
	ld := Laplacian(dense, z)
	assert.False(t, ld.Sparse())
	for i := range 3 {
		for j := range 3 {
			assert.Equal(t, l.At(i, j), ld.At(i, j))
		}
	}

	tr := Transition(k, z)
	for _, s := range tr.RowSums() {
		assert.InDelta(t, 1, s, 1e-6)
	}
}

func TestCommuteAndMeanFirstPassage(t *testing.T) {
	l, z := pathLaplacian3()
	s, err := spectral.Decompose(l, 0, spectral.SortIncrease)
	require.NoError(t, err)

	lp, err := LaplacianPinv(s, DefaultDenseConfig())
	require.NoError(t, err)
	want := [][]float64{{5, -1, -4}, {-1, 2, -1}, {-4, -1, 5}}
	for i := range 3 {
		for j := range 3 {
			assert.InDelta(t, want[i][j]/9, lp.At(i, j), 1e-5)
		}
	}

	// commute time is vol(G) times the effective resistance
	c := Commute(lp, z)
	assert.InDelta(t, 4, c.At(0, 1), 1e-4)
	assert.InDelta(t, 8, c.At(0, 2), 1e-4)
	assert.InDelta(t, 0, c.At(1, 1), 1e-4)

	// hitting times on the path: 0→1 takes one step, 1→0 three on average
	mfp := MeanFirstPassage(lp, z)
	assert.InDelta(t, 1, mfp.At(0, 1), 1e-4)
	assert.InDelta(t, 3, mfp.At(1, 0), 1e-4)
	assert.InDelta(t, 4, mfp.At(0, 2), 1e-4)
	for i := range 3 {
		assert.InDelta(t, 0, mfp.At(i, i), 1e-4)
		for j := range 3 {
			assert.InDelta(t, c.At(i, j), mfp.At(i, j)+mfp.At(j, i), 1e-4)
		}
	}
}
