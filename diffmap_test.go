package diffmap

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/diffusion"
	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/spectral"
	"github.com/nozzle/diffmap/store"
)

// generateBlobs generates n clusters of points for testing.
func generateBlobs(nSamples, nClusters, nFeatures int, seed int64) [][]float32 {
	data := make([][]float32, nSamples)
	samplesPerCluster := nSamples / nClusters

	// Simple LCG for reproducibility
	rng := seed
	nextFloat := func() float32 {
		rng = (rng*6364136223846793005 + 1442695040888963407) & 0x7FFFFFFF
		return float32(rng) / float32(0x7FFFFFFF)
	}

	for i := range nSamples {
		data[i] = make([]float32, nFeatures)
		cluster := min(i/samplesPerCluster, nClusters-1)
		centerOffset := float32(cluster * 10)

		for j := range nFeatures {
			u1 := max(nextFloat(), 0.001)
			u2 := nextFloat()
			noise := float32(math.Sqrt(-2*math.Log(float64(u1)))) * float32(math.Cos(2*math.Pi*float64(u2)))
			data[i][j] = centerOffset + noise
		}
	}

	return data
}

func testConfig(k int) Config {
	config := DefaultConfig()
	config.NNeighbors = k
	config.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return config
}

// fitted runs distances, similarities and a symmetric eigendecomposition.
func fitted(t *testing.T, data [][]float32, config Config, nComps int) *Neighbors {
	t.Helper()
	nb := New(data, config)
	require.NoError(t, nb.ComputeDistances())
	require.NoError(t, nb.ComputeSimilarities())
	eigen := DefaultEigenConfig()
	eigen.NComps = nComps
	require.NoError(t, nb.ComputeEigen(eigen))
	return nb
}

func TestEndToEnd(t *testing.T) {
	data := generateBlobs(200, 1, 10, 42)
	nb := fitted(t, data, testConfig(15), 10)

	assert.True(t, nb.KNN())
	assert.Equal(t, 15, nb.NNeighbors())

	d, ok := nb.Distances().(*graph.CSR)
	require.True(t, ok, "knn distances should be sparse")
	for i := range 200 {
		assert.Equal(t, int32(14), d.Indptr[i+1]-d.Indptr[i], "row %d", i)
	}
	assert.True(t, graph.IsSymmetric(nb.Similarities()))

	s := nb.Spectrum()
	require.Equal(t, 10, s.Len())
	assert.InDelta(t, 1.0, s.Values[0], 1e-5)
	for i := 1; i < s.Len(); i++ {
		assert.LessOrEqual(t, s.Values[i], s.Values[i-1])
	}
}

func TestSmallDatasetClampsNeighbors(t *testing.T) {
	data := [][]float32{
		{1, 2, 3},
		{1, 2, 4},
		{10, 20, 30},
		{10, 20, 31},
	}
	var logs bytes.Buffer
	config := testConfig(30)
	config.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	nb := New(data, config)
	require.NoError(t, nb.ComputeDistances())
	assert.Equal(t, 3, nb.NNeighbors())
	assert.Contains(t, logs.String(), "n_neighbors exceeds the number of points")

	d := nb.Distances().(*graph.CSR)
	for i := range 4 {
		assert.Equal(t, int32(2), d.Indptr[i+1]-d.Indptr[i])
	}
}

func TestUsageOrder(t *testing.T) {
	data := generateBlobs(30, 1, 4, 1)

	nb := New(data, testConfig(5))
	assert.ErrorIs(t, nb.ComputeSimilarities(), ErrNoDistances)
	assert.ErrorIs(t, nb.ComputeEigen(DefaultEigenConfig()), ErrNoSimilarities)
	assert.ErrorIs(t, nb.ComputeTransitions(), ErrNoSimilarities)
	assert.ErrorIs(t, nb.ComputeCommute(0), ErrNoSimilarities)
	assert.ErrorIs(t, nb.ComputeDPTMatrix(), ErrNoSpectrum)
	assert.ErrorIs(t, nb.ComputeMFP(), ErrNoPinv)
	assert.ErrorIs(t, nb.ComputeDdiffAll(), ErrDeprecated)

	_, err := nb.Pseudotime()
	assert.ErrorIs(t, err, ErrNoRoot)
	require.True(t, nb.SetRoot(0))
	_, err = nb.Pseudotime()
	assert.ErrorIs(t, err, ErrNoSpectrum)
	_, err = nb.DiffusionDistances()
	assert.ErrorIs(t, err, ErrNoSpectrum)

	config := testConfig(5)
	config.KNN = false
	config.Flavor = graph.FlavorUnweighted
	nb = New(data, config)
	require.NoError(t, nb.ComputeDistances())
	assert.ErrorIs(t, nb.ComputeSimilarities(), ErrUnweightedNeedsKNN)
	assert.Nil(t, nb.Similarities())

	// Fatal only for the call: an existing stage is untouched.
	assert.ErrorIs(t, nb.ComputeDdiffAll(), ErrDeprecated)
	assert.NotNil(t, nb.Distances())
}

func TestFailedStageKeepsState(t *testing.T) {
	data := generateBlobs(40, 1, 5, 3)
	nb := fitted(t, data, testConfig(8), 5)
	before := nb.Spectrum()
	similarities := nb.Similarities()

	asym := graph.NewDense(40, 40, nil)
	asym.Set(0, 1, 1)
	eigen := DefaultEigenConfig()
	eigen.Matrix = asym
	err := nb.ComputeEigen(eigen)
	require.ErrorIs(t, err, spectral.ErrAsymmetric)

	assert.Same(t, before, nb.Spectrum())
	assert.Same(t, similarities.(*graph.CSR), nb.Similarities().(*graph.CSR))
	dist, err := nb.DiffusionDistances()
	require.NoError(t, err)
	assert.NotNil(t, dist)
}

func TestDenseGraph(t *testing.T) {
	data := generateBlobs(30, 1, 4, 7)
	config := testConfig(5)
	config.KNN = false
	nb := fitted(t, data, config, 5)

	assert.False(t, nb.KNN())
	_, dense := nb.Distances().(*graph.Dense)
	assert.True(t, dense)
	assert.True(t, graph.IsSymmetric(nb.Similarities()))
	assert.InDelta(t, 1.0, nb.Spectrum().Values[0], 1e-5)
}

func TestSparseInputMatchesDense(t *testing.T) {
	data := generateBlobs(50, 2, 6, 11)
	for i := range data {
		for j := range data[i] {
			if (i+j)%3 == 0 {
				data[i][j] = 0
			}
		}
	}
	x := &graph.CSR{Indptr: []int32{0}, NRows: len(data), NCols: len(data[0])}
	for _, row := range data {
		for j, v := range row {
			if v != 0 {
				x.Indices = append(x.Indices, int32(j))
				x.Data = append(x.Data, v)
			}
		}
		x.Indptr = append(x.Indptr, int32(len(x.Indices)))
	}

	dense := New(data, testConfig(6))
	require.NoError(t, dense.ComputeDistances())
	sparse := NewSparse(x, testConfig(6))
	require.NoError(t, sparse.ComputeDistances())

	dd, sd := dense.Distances(), sparse.Distances()
	for i := range len(data) {
		dc, dv := dd.Row(i)
		sc, sv := sd.Row(i)
		require.Equal(t, dc, sc, "row %d", i)
		assert.InDeltaSlice(t, dv, sv, 1e-3)
	}

	require.NoError(t, sparse.SetRootFromVector(data[17]))
	root, ok := sparse.Root()
	require.True(t, ok)
	assert.Equal(t, 17, root)
}

func TestRootFromVector(t *testing.T) {
	data := generateBlobs(100, 2, 8, 5)
	var logs bytes.Buffer
	config := testConfig(10)
	config.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	nb := New(data, config)

	require.NoError(t, nb.SetRootFromVector(data[37]))
	root, ok := nb.Root()
	require.True(t, ok)
	assert.Equal(t, 37, root)

	err := nb.SetRootFromVector([]float32{1, 2})
	assert.ErrorIs(t, err, ErrRootDimension)
	root, _ = nb.Root()
	assert.Equal(t, 37, root)

	assert.False(t, nb.SetRoot(100))
	assert.Contains(t, logs.String(), "root index out of range")
	root, _ = nb.Root()
	assert.Equal(t, 37, root)

	assert.True(t, nb.SetRoot(3))
	assert.Contains(t, logs.String(), "changing index of iroot")
}

func TestPseudotime(t *testing.T) {
	data := generateBlobs(120, 1, 6, 9)
	nb := fitted(t, data, testConfig(10), 8)
	require.True(t, nb.SetRoot(4))

	pt, err := nb.Pseudotime()
	require.NoError(t, err)
	require.Len(t, pt, 120)
	assert.Equal(t, float32(0), pt[4])
	top := float32(0)
	for _, v := range pt {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
		top = max(top, v)
	}
	assert.InDelta(t, 1.0, top, 1e-6)

	dist, err := nb.DiffusionDistances()
	require.NoError(t, err)
	assert.Equal(t, 1, dist.Generated())
	_, err = nb.Pseudotime()
	require.NoError(t, err)
	assert.Equal(t, 1, dist.Generated())
}

func TestAsymmetricBasis(t *testing.T) {
	data := generateBlobs(40, 1, 5, 13)
	nb := New(data, testConfig(8))
	require.NoError(t, nb.ComputeDistances())
	require.NoError(t, nb.ComputeSimilarities())

	eigen := DefaultEigenConfig()
	eigen.NComps = 5
	eigen.Symmetric = false
	require.NoError(t, nb.ComputeEigen(eigen))
	assert.False(t, nb.Spectrum().Symmetric)

	_, err := nb.DiffusionDistances()
	assert.ErrorIs(t, err, diffusion.ErrAsymmetricBasis)
	nb.SetRoot(0)
	_, err = nb.Pseudotime()
	assert.ErrorIs(t, err, diffusion.ErrAsymmetricBasis)

	// The M matrix only needs the two bases.
	require.NoError(t, nb.ComputeDPTMatrix())
	_, err = nb.Pseudotime()
	assert.NoError(t, err)
}

func TestUnweightedFlavor(t *testing.T) {
	data := generateBlobs(40, 1, 5, 19)
	config := testConfig(6)
	config.Flavor = graph.FlavorUnweighted
	nb := New(data, config)
	require.NoError(t, nb.ComputeDistances())
	require.NoError(t, nb.ComputeSimilarities())

	assert.True(t, graph.IsSymmetric(nb.Similarities()))
	require.NoError(t, nb.ComputeTransitions())
	for i, sum := range nb.Transitions().RowSums() {
		assert.InDelta(t, 1.0, sum, 1e-5, "row %d", i)
	}
	require.NoError(t, nb.ComputeLaplacian())

	eigen := DefaultEigenConfig()
	eigen.NComps = 5
	require.NoError(t, nb.ComputeEigen(eigen))
	assert.Equal(t, 5, nb.Spectrum().Len())

	eigen.Symmetric = false
	assert.ErrorIs(t, nb.ComputeEigen(eigen), ErrInvalidConfig)
	assert.Equal(t, 5, nb.Spectrum().Len())

	require.NoError(t, nb.ComputeCommute(0))
	assert.NotNil(t, nb.Commute())
	_, _, err := nb.SpecLayout()
	require.NoError(t, err)
}

func TestComputeDistancesResetsStages(t *testing.T) {
	ctx := context.Background()
	data := generateBlobs(50, 1, 4, 47)
	nb := fitted(t, data, testConfig(8), 5)
	require.True(t, nb.SetRoot(2))
	_, err := nb.Pseudotime()
	require.NoError(t, err)

	s := store.NewMemory("")
	require.NoError(t, nb.Save(ctx, s))

	for _, fresh := range []bool{false, true} {
		current := nb
		if fresh {
			current = New(data, testConfig(8))
			require.NoError(t, current.Load(ctx, s))
			require.NotNil(t, current.Spectrum())
		}
		require.NoError(t, current.ComputeDistances())
		assert.Nil(t, current.Kernel(), "loaded=%v", fresh)
		assert.Nil(t, current.Similarities(), "loaded=%v", fresh)
		assert.Nil(t, current.Spectrum(), "loaded=%v", fresh)
		assert.ErrorIs(t, current.ComputeEigen(DefaultEigenConfig()), ErrNoSimilarities)
		_, err = current.Pseudotime()
		assert.ErrorIs(t, err, ErrNoSpectrum)

		root, ok := current.Root()
		require.True(t, ok)
		assert.Equal(t, 2, root)
	}
}

func maxAbs(m *mat.Dense) float64 {
	r, c := m.Dims()
	top := 0.0
	for i := range r {
		for j := range c {
			top = math.Max(top, math.Abs(m.At(i, j)))
		}
	}
	return top
}

func TestCommuteAndMFP(t *testing.T) {
	data := generateBlobs(25, 1, 3, 21)
	config := testConfig(6)
	config.KNN = false
	nb := New(data, config)
	require.NoError(t, nb.ComputeDistances())
	require.NoError(t, nb.ComputeSimilarities())

	require.NoError(t, nb.ComputeCommute(0))
	c := nb.Commute()
	require.NotNil(t, c)
	scale := maxAbs(c)
	for i := range 25 {
		assert.InDelta(t, 0, c.At(i, i), 1e-9*scale)
		for j := range 25 {
			assert.InDelta(t, c.At(i, j), c.At(j, i), 1e-6*scale)
			assert.GreaterOrEqual(t, c.At(i, j), -1e-6*scale)
		}
	}
	assert.InDelta(t, 0, nb.LaplacianSpectrum().Values[0], 1e-4)

	require.NoError(t, nb.ComputeMFP())
	mfp := nb.MFP()
	scale = maxAbs(mfp)
	for i := range 25 {
		assert.InDelta(t, 0, mfp.At(i, i), 1e-9*scale)
		for j := range 25 {
			// Commute time is the round trip.
			assert.InDelta(t, c.At(i, j), mfp.At(i, j)+mfp.At(j, i), 1e-4*scale)
		}
	}

	nb.SetRoot(0)
	pt, err := nb.Pseudotime()
	require.NoError(t, err)
	assert.InDelta(t, 0, pt[0], 1e-6)
}

func TestDPTMatrix(t *testing.T) {
	data := generateBlobs(60, 1, 5, 17)
	nb := fitted(t, data, testConfig(8), 6)

	require.NoError(t, nb.ComputeDPTMatrix())
	m := nb.MMatrix()
	r, c := m.Dims()
	assert.Equal(t, 60, r)
	assert.Equal(t, 60, c)

	ddiff := nb.DPTDistances()
	for i := range 60 {
		assert.Equal(t, 0.0, ddiff.At(i, i))
		for j := range 60 {
			assert.Equal(t, ddiff.At(i, j), ddiff.At(j, i))
		}
	}

	config := testConfig(8)
	config.MaxDensePoints = 10
	nb = fitted(t, data, config, 6)
	assert.ErrorIs(t, nb.ComputeDPTMatrix(), diffusion.ErrTooLarge)
	assert.Nil(t, nb.MMatrix())
}

func TestSpecLayout(t *testing.T) {
	data := generateBlobs(20, 1, 3, 23)
	nb := New(data, testConfig(5))
	require.NoError(t, nb.ComputeDistances())
	require.NoError(t, nb.ComputeSimilarities())

	y, values, err := nb.SpecLayout()
	require.NoError(t, err)
	r, c := y.Dims()
	assert.Equal(t, 20, r)
	assert.Equal(t, 19, c)
	require.Len(t, values, 19)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1])
	}
	assert.NotNil(t, nb.Transitions())
	assert.NotNil(t, nb.Laplacian())
}

func TestUpdateDiffmap(t *testing.T) {
	data := generateBlobs(50, 1, 4, 29)
	nb := New(data, testConfig(8))

	updated, err := nb.UpdateDiffmap(5)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 5, nb.Spectrum().Len())

	updated, err = nb.UpdateDiffmap(5)
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = nb.UpdateDiffmap(8)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 8, nb.Spectrum().Len())
}

func TestRunAndLoad(t *testing.T) {
	ctx := context.Background()
	data := generateBlobs(80, 1, 5, 31)
	s := store.NewMemory("run")

	nb, err := Run(ctx, data, s, testConfig(12))
	require.NoError(t, err)

	slots, err := s.Slots(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{store.SlotDistances, store.SlotSimilarities}, slots)

	loaded := New(data, testConfig(30))
	require.NoError(t, loaded.Load(ctx, s))
	assert.Equal(t, nb.KNN(), loaded.KNN())
	assert.Equal(t, nb.NNeighbors(), loaded.NNeighbors())
	assert.Equal(t, nb.Similarities(), loaded.Similarities())

	// Loaded similarities carry no degrees.
	assert.ErrorIs(t, loaded.ComputeLaplacian(), ErrNoSimilarities)
	eigen := DefaultEigenConfig()
	eigen.NComps = 6
	require.NoError(t, loaded.ComputeEigen(eigen))
}

func TestRunWeights(t *testing.T) {
	ctx := context.Background()
	data := generateBlobs(30, 1, 3, 37)
	s := store.NewMemory("")

	config := testConfig(5)
	config.Weights = []string{WeightDistances}
	nb, err := Run(ctx, data, s, config)
	require.NoError(t, err)
	assert.Nil(t, nb.Similarities())

	ok, err := store.Has(ctx, s, store.SlotSimilarities)
	require.NoError(t, err)
	assert.False(t, ok)

	config.Weights = []string{"connectivities"}
	_, err = Run(ctx, data, s, config)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveLoadDenseGraph(t *testing.T) {
	ctx := context.Background()
	data := generateBlobs(30, 1, 3, 41)
	config := testConfig(5)
	config.KNN = false
	nb := New(data, config)
	require.NoError(t, nb.ComputeDistances())

	s := store.NewMemory("")
	require.NoError(t, nb.Save(ctx, s))

	loaded := New(data, testConfig(5))
	require.NoError(t, loaded.Load(ctx, s))
	assert.False(t, loaded.KNN())
	assert.Equal(t, 0, loaded.NNeighbors())
}

func TestSaveLoadSpectrum(t *testing.T) {
	ctx := context.Background()
	data := generateBlobs(60, 1, 4, 43)
	nb := fitted(t, data, testConfig(8), 6)
	require.NoError(t, nb.SetRootFromVector(data[11]))
	want, err := nb.Pseudotime()
	require.NoError(t, err)

	s := store.NewMemory("")
	require.NoError(t, nb.Save(ctx, s))

	loaded := New(data, testConfig(8))
	require.NoError(t, loaded.Load(ctx, s))
	root, ok := loaded.Root()
	require.True(t, ok)
	assert.Equal(t, 11, root)
	assert.Equal(t, nb.Spectrum().Values, loaded.Spectrum().Values)

	got, err := loaded.Pseudotime()
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestLoadRoot(t *testing.T) {
	ctx := context.Background()
	data := generateBlobs(20, 1, 3, 47)

	s := store.NewMemory("")
	require.NoError(t, store.PutInt(ctx, s, store.SlotIRoot, 99))
	var logs bytes.Buffer
	config := testConfig(5)
	config.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	nb := New(data, config)
	require.NoError(t, nb.Load(ctx, s))
	_, ok := nb.Root()
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "root index out of range")

	s = store.NewMemory("")
	require.NoError(t, store.PutVector(ctx, s, store.SlotXRoot, data[6]))
	nb = New(data, testConfig(5))
	require.NoError(t, nb.Load(ctx, s))
	root, ok := nb.Root()
	require.True(t, ok)
	assert.Equal(t, 6, root)

	s = store.NewMemory("")
	require.NoError(t, store.PutVector(ctx, s, store.SlotXRoot, []float32{1}))
	nb = New(data, testConfig(5))
	require.NoError(t, nb.Load(ctx, s))
	_, ok = nb.Root()
	assert.False(t, ok)
}

func TestLoadSplitFirstComponent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory("")
	first := graph.NewDense(3, 1, []float32{0.5, 0.5, 0.5})
	rest := graph.NewDense(3, 2, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, store.PutMatrix(ctx, s, store.SlotDiffmap0, first))
	require.NoError(t, store.PutMatrix(ctx, s, store.SlotDiffmap, rest))
	require.NoError(t, store.PutVector(ctx, s, store.SlotEvals, []float32{0.9, 0.8}))

	nb := New(nil, testConfig(5))
	require.NoError(t, nb.Load(ctx, s))
	assert.Equal(t, 3, nb.NObs())
	sp := nb.Spectrum()
	assert.Equal(t, []float32{1, 0.9, 0.8}, sp.Values)
	assert.Equal(t, []float32{0.5, 3, 4}, sp.Right.RawRow(1))

	require.NoError(t, nb.Save(ctx, s))
	ok, err := store.Has(ctx, s, store.SlotDiffmap0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadRejectsBadShape(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory("")
	require.NoError(t, store.PutMatrix(ctx, s, store.SlotDistances, graph.NewDense(3, 3, nil)))

	nb := New(generateBlobs(5, 1, 2, 1), testConfig(3))
	err := nb.Load(ctx, s)
	require.ErrorIs(t, err, graph.ErrShape)
	assert.Nil(t, nb.Distances())
}

func BenchmarkDiffmap(b *testing.B) {
	data := generateBlobs(1000, 5, 20, 42)
	config := DefaultConfig()
	config.NNeighbors = 15
	config.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	b.ResetTimer()
	for b.Loop() {
		nb := New(data, config)
		if _, err := nb.UpdateDiffmap(10); err != nil {
			b.Fatal(err)
		}
	}
}
