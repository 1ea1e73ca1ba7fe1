// Package diffmap computes the neighborhood graph of a dataset and the
// diffusion map of the random walk on it.
//
// A Neighbors value advances through named stages: distances, similarities
// (the anisotropic Gaussian kernel), the eigendecomposition of the
// transition operator and, once a root point is chosen, diffusion
// pseudotime. Each stage checks that its inputs exist and leaves the state
// untouched when it fails.
//
// Basic usage:
//
//	nb := diffmap.New(data, diffmap.DefaultConfig())
//	if err := nb.ComputeDistances(); err != nil { ... }
//	if err := nb.ComputeSimilarities(); err != nil { ... }
//	if err := nb.ComputeEigen(diffmap.DefaultEigenConfig()); err != nil { ... }
//	nb.SetRoot(0)
//	pseudotime, err := nb.Pseudotime()
package diffmap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/diffusion"
	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/nn"
	"github.com/nozzle/diffmap/spectral"
)

// Sentinel errors.
var (
	// ErrNoDistances is returned when similarities are requested before
	// distances were computed or loaded.
	ErrNoDistances = errors.New("diffmap: compute distances first")

	// ErrNoSimilarities is returned when a stage needs the kernel before it
	// was computed or loaded.
	ErrNoSimilarities = errors.New("diffmap: compute similarities first")

	// ErrNoSpectrum is returned when a stage needs an eigendecomposition
	// that was not computed.
	ErrNoSpectrum = errors.New("diffmap: compute the eigendecomposition first")

	// ErrNoPinv is returned when mean first passage times are requested
	// before the Laplacian pseudoinverse was computed.
	ErrNoPinv = errors.New("diffmap: compute commute times first")

	// ErrNoRoot is returned when pseudotime is requested without a root.
	ErrNoRoot = errors.New("diffmap: no root point set")

	// ErrRootDimension is returned when a root vector does not match the
	// feature dimension of the data.
	ErrRootDimension = errors.New("diffmap: root vector dimension mismatch")

	// ErrUnweightedNeedsKNN is returned for the unweighted flavor without
	// knn mode.
	ErrUnweightedNeedsKNN = graph.ErrUnweightedNeedsKNN

	// ErrDeprecated is returned by removed computations.
	ErrDeprecated = errors.New("diffmap: deprecated computation")

	// ErrInvalidConfig is returned for configuration values outside their
	// options.
	ErrInvalidConfig = errors.New("diffmap: invalid config")
)

// Neighbors holds the neighborhood graph of a dataset and every quantity
// derived from it. Values returned by accessors are shared with the
// Neighbors and must not be modified.
type Neighbors struct {
	config Config
	logger *slog.Logger

	// Feature rows; at most one is set.
	data   [][]float32
	sparse *graph.CSR
	nObs   int
	nVars  int

	knn        bool
	nNeighbors int // 0 when unknown

	distances    graph.Matrix
	kernel       *graph.Kernel
	similarities graph.Matrix

	spectrum *spectral.Spectrum
	dist     *diffusion.LazyMatrix // nil for asymmetric spectra

	transitions graph.Matrix
	laplacian   graph.Matrix
	lapSpectrum *spectral.Spectrum
	pinv        *mat.Dense
	pinvZ       []float64
	commute     *mat.Dense
	mfp         *mat.Dense
	m           *mat.Dense
	ddiff       *mat.Dense

	// chosen is the distance matrix pseudotime is measured on.
	chosen     diffusion.Rows
	iroot      int
	xroot      []float32
	pseudotime []float32
}

// New returns a Neighbors for dense feature rows.
func New(data [][]float32, config Config) *Neighbors {
	nb := newNeighbors(config)
	nb.data = data
	nb.nObs = len(data)
	if len(data) > 0 {
		nb.nVars = len(data[0])
	}
	return nb
}

// NewSparse returns a Neighbors for CSR feature rows.
func NewSparse(x *graph.CSR, config Config) *Neighbors {
	nb := newNeighbors(config)
	nb.sparse = x
	nb.nObs, nb.nVars = x.Dims()
	return nb
}

func newNeighbors(config Config) *Neighbors {
	return &Neighbors{
		config: config,
		logger: config.logger(),
		knn:    config.KNN,
		iroot:  -1,
	}
}

// Config returns the configuration.
func (nb *Neighbors) Config() Config {
	return nb.config
}

// NObs returns the number of points.
func (nb *Neighbors) NObs() int {
	return nb.nObs
}

// KNN reports whether the graph is restricted to nearest neighbors.
func (nb *Neighbors) KNN() bool {
	return nb.knn
}

// NNeighbors returns the effective neighbor count including the point
// itself, or 0 when it is unknown.
func (nb *Neighbors) NNeighbors() int {
	return nb.nNeighbors
}

// Distances returns the squared distance graph.
func (nb *Neighbors) Distances() graph.Matrix {
	return nb.distances
}

// Similarities returns the symmetric normalized kernel.
func (nb *Neighbors) Similarities() graph.Matrix {
	return nb.similarities
}

// Kernel returns the kernel matrices, or nil when similarities were loaded
// rather than computed.
func (nb *Neighbors) Kernel() *graph.Kernel {
	return nb.kernel
}

// Spectrum returns the diffusion map eigendecomposition.
func (nb *Neighbors) Spectrum() *spectral.Spectrum {
	return nb.spectrum
}

// DiffusionDistances returns the lazily evaluated diffusion distance
// matrix.
func (nb *Neighbors) DiffusionDistances() (*diffusion.LazyMatrix, error) {
	if nb.spectrum == nil {
		return nil, ErrNoSpectrum
	}
	if nb.dist == nil {
		return nil, diffusion.ErrAsymmetricBasis
	}
	return nb.dist, nil
}

// ComputeDistances finds the nearest neighbors of every point, or with
// KNN disabled the full squared distance matrix.
func (nb *Neighbors) ComputeDistances() error {
	start := time.Now()
	k := nn.ClampK(nb.config.NNeighbors, nb.nObs)
	if k != nb.config.NNeighbors {
		nb.logger.Warn("n_neighbors exceeds the number of points, reducing",
			"n_neighbors", nb.config.NNeighbors, "effective", k)
	}
	knn := nb.config.KNN

	var d graph.Matrix
	if knn {
		search := nb.config.searchConfig()
		search.K = k
		var g *nn.KNNGraph
		var err error
		if nb.sparse != nil {
			g, err = nn.SearchSparse(nb.sparse, search)
		} else {
			g, err = nn.Search(nb.data, search)
		}
		if err != nil {
			return fmt.Errorf("neighbor search: %w", err)
		}
		csr, err := g.Graph()
		if err != nil {
			return fmt.Errorf("assemble distances: %w", err)
		}
		d = csr
	} else if nb.sparse != nil {
		d = nn.DenseDistancesSparse(nb.sparse, nb.config.NumWorkers)
	} else {
		d = nn.DenseDistances(nb.data, nb.config.NumWorkers)
	}

	nb.distances = d
	nb.knn = knn
	nb.nNeighbors = k
	nb.resetKernel()
	nb.logger.Debug("computed distances",
		"n_obs", nb.nObs, "n_neighbors", k, "knn", knn, "elapsed", time.Since(start))
	return nil
}

// resetKernel drops every quantity derived from the distance graph.
func (nb *Neighbors) resetKernel() {
	nb.kernel, nb.similarities = nil, nil
	nb.transitions, nb.laplacian = nil, nil
	nb.resetSpectrum()
	nb.lapSpectrum, nb.pinv, nb.pinvZ = nil, nil, nil
	nb.commute, nb.mfp = nil, nil
}

// resetSpectrum drops the eigendecomposition and the distances derived
// from it.
func (nb *Neighbors) resetSpectrum() {
	nb.spectrum, nb.dist = nil, nil
	nb.m, nb.ddiff = nil, nil
	nb.chosen, nb.pseudotime = nil, nil
}

// ComputeSimilarities builds the kernel from the distances with the
// configured alpha and flavor.
func (nb *Neighbors) ComputeSimilarities() error {
	return nb.ComputeSimilaritiesAlpha(nb.config.Alpha)
}

// ComputeSimilaritiesAlpha is ComputeSimilarities with an explicit density
// normalization exponent.
func (nb *Neighbors) ComputeSimilaritiesAlpha(alpha float64) error {
	if nb.config.Flavor == graph.FlavorUnweighted && !nb.knn {
		return ErrUnweightedNeedsKNN
	}
	if nb.distances == nil {
		return ErrNoDistances
	}
	start := time.Now()

	k := nb.nNeighbors
	if k == 0 {
		k = nn.ClampK(nb.config.NNeighbors, nb.nObs)
	}
	kernel, err := graph.BuildKernel(nb.distances, graph.KernelConfig{
		KNN:        nb.knn,
		NNeighbors: k,
		Alpha:      alpha,
		Flavor:     nb.config.Flavor,
		NumWorkers: nb.config.NumWorkers,
	})
	if err != nil {
		return fmt.Errorf("kernel: %w", err)
	}

	nb.resetKernel()
	nb.kernel = kernel
	nb.similarities = kernel.Similarities
	nb.logger.Debug("computed weight matrix",
		"alpha", alpha, "flavor", nb.config.Flavor, "elapsed", time.Since(start))
	return nil
}

// ComputeEigen decomposes the symmetric conjugate of the transition matrix
// (or config.Matrix) and makes its diffusion distances the distance used
// for pseudotime.
func (nb *Neighbors) ComputeEigen(config EigenConfig) error {
	m := config.Matrix
	if m == nil {
		if nb.similarities == nil {
			return ErrNoSimilarities
		}
		m = nb.similarities
	}
	if !config.Symmetric && nb.kernel == nil {
		return fmt.Errorf("%w: the asymmetric basis needs kernel degrees", ErrNoSimilarities)
	}
	if !config.Symmetric && nb.config.Flavor == graph.FlavorUnweighted {
		return fmt.Errorf("%w: the asymmetric basis needs the %s flavor", ErrInvalidConfig, graph.FlavorHaghverdi16)
	}
	start := time.Now()

	s, err := spectral.Decompose(m, config.NComps, config.Sort)
	if err != nil {
		return fmt.Errorf("eigendecomposition: %w", err)
	}
	if !config.Symmetric {
		s = s.Transition(nb.kernel.SqrtZ)
	}

	var dist *diffusion.LazyMatrix
	if s.Symmetric {
		dist, err = diffusion.NewDistanceMatrix(s, nb.config.RowCacheSize)
		if err != nil {
			return fmt.Errorf("diffusion distances: %w", err)
		}
	}

	nb.logger.Info("eigenvalues of transition matrix", "values", s.Values)
	if s.Reducible() {
		nb.logger.Warn("transition matrix has many disconnected components",
			"unit_eigenvalues", s.Ones(), "n_comps", s.Len())
	}
	nb.logger.Debug("computed eigendecomposition", "n_comps", s.Len(), "elapsed", time.Since(start))

	nb.spectrum = s
	nb.dist = dist
	nb.chosen = nil
	if dist != nil {
		nb.chosen = dist
	}
	return nil
}

// UpdateDiffmap recomputes whatever stage is missing or stale so that a
// spectrum of at least nComps components exists for the configured
// neighbor count and knn mode. It reports whether anything was computed.
func (nb *Neighbors) UpdateDiffmap(nComps int) (bool, error) {
	updated := false
	k := nn.ClampK(nb.config.NNeighbors, nb.nObs)
	if nb.distances == nil || nb.knn != nb.config.KNN || (nb.knn && nb.nNeighbors != k) {
		if err := nb.ComputeDistances(); err != nil {
			return updated, err
		}
		updated = true
	}
	if nb.similarities == nil {
		if err := nb.ComputeSimilarities(); err != nil {
			return updated, err
		}
		updated = true
	}
	if nb.spectrum == nil || nb.spectrum.Len() < nComps {
		config := DefaultEigenConfig()
		config.NComps = nComps
		if err := nb.ComputeEigen(config); err != nil {
			return updated, err
		}
		updated = true
	}
	return updated, nil
}
