package diffmap

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/diffusion"
	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/spectral"
)

func (nb *Neighbors) requireKernel() (*graph.Kernel, error) {
	if nb.kernel == nil {
		if nb.similarities != nil {
			return nil, fmt.Errorf("%w: kernel degrees are not available for loaded similarities", ErrNoSimilarities)
		}
		return nil, ErrNoSimilarities
	}
	return nb.kernel, nil
}

// ComputeTransitions computes the row-stochastic transition matrix K / z.
func (nb *Neighbors) ComputeTransitions() error {
	k, err := nb.requireKernel()
	if err != nil {
		return err
	}
	nb.transitions = diffusion.Transition(k.K, k.Z)
	return nil
}

// Transitions returns the transition matrix.
func (nb *Neighbors) Transitions() graph.Matrix {
	return nb.transitions
}

// ComputeLaplacian computes the graph Laplacian diag(z) - K.
func (nb *Neighbors) ComputeLaplacian() error {
	k, err := nb.requireKernel()
	if err != nil {
		return err
	}
	nb.laplacian = diffusion.Laplacian(k.K, k.Z)
	return nil
}

// Laplacian returns the graph Laplacian.
func (nb *Neighbors) Laplacian() graph.Matrix {
	return nb.laplacian
}

// ComputeDPTMatrix computes the M matrix of the diffusion map and the
// pairwise distances between its rows, which become the distance used for
// pseudotime.
func (nb *Neighbors) ComputeDPTMatrix() error {
	if nb.spectrum == nil {
		return ErrNoSpectrum
	}
	start := time.Now()
	dense := nb.config.denseConfig()
	m, err := diffusion.MMatrix(nb.spectrum, dense)
	if err != nil {
		return fmt.Errorf("M matrix: %w", err)
	}
	ddiff := diffusion.DPTDistances(m, dense)

	nb.m = m
	nb.ddiff = ddiff
	nb.chosen = diffusion.DenseRows{Dense: ddiff}
	nb.logger.Debug("computed dpt distance matrix", "elapsed", time.Since(start))
	return nil
}

// MMatrix returns the M matrix.
func (nb *Neighbors) MMatrix() *mat.Dense {
	return nb.m
}

// DPTDistances returns the distances between rows of the M matrix.
func (nb *Neighbors) DPTDistances() *mat.Dense {
	return nb.ddiff
}

// ComputeDdiffAll always fails. Its dense distance over every power of
// the transition matrix was removed.
func (nb *Neighbors) ComputeDdiffAll() error {
	return fmt.Errorf("%w: Ddiff over all components, use ComputeDPTMatrix", ErrDeprecated)
}

// ComputeCommute decomposes the graph Laplacian into nComps eigenpairs of
// smallest magnitude (0 for all of them), forms its pseudoinverse and the
// commute time matrix, which becomes the distance used for pseudotime.
func (nb *Neighbors) ComputeCommute(nComps int) error {
	k, err := nb.requireKernel()
	if err != nil {
		return err
	}
	start := time.Now()
	dense := nb.config.denseConfig()

	laplacian := nb.laplacian
	if laplacian == nil {
		laplacian = diffusion.Laplacian(k.K, k.Z)
	}
	s, err := spectral.Decompose(laplacian, nComps, spectral.SortIncrease)
	if err != nil {
		return fmt.Errorf("laplacian eigendecomposition: %w", err)
	}
	nb.logger.Info("eigenvalues of laplacian", "values", s.Values)
	pinv, err := diffusion.LaplacianPinv(s, dense)
	if err != nil {
		return fmt.Errorf("laplacian pseudoinverse: %w", err)
	}
	commute := diffusion.Commute(pinv, k.Z)

	nb.laplacian = laplacian
	nb.lapSpectrum = s
	nb.pinv = pinv
	nb.pinvZ = k.Z
	nb.commute = commute
	nb.chosen = diffusion.DenseRows{Dense: commute}
	nb.logger.Debug("computed commute times", "elapsed", time.Since(start))
	return nil
}

// LaplacianSpectrum returns the eigendecomposition of the Laplacian.
func (nb *Neighbors) LaplacianSpectrum() *spectral.Spectrum {
	return nb.lapSpectrum
}

// LaplacianPinv returns the pseudoinverse of the Laplacian.
func (nb *Neighbors) LaplacianPinv() *mat.Dense {
	return nb.pinv
}

// Commute returns the commute time matrix.
func (nb *Neighbors) Commute() *mat.Dense {
	return nb.commute
}

// ComputeMFP computes the mean first passage times from the Laplacian
// pseudoinverse, which become the distance used for pseudotime.
func (nb *Neighbors) ComputeMFP() error {
	if nb.pinv == nil {
		return ErrNoPinv
	}
	mfp := diffusion.MeanFirstPassage(nb.pinv, nb.pinvZ)
	nb.mfp = mfp
	nb.chosen = diffusion.DenseRows{Dense: mfp}
	return nil
}

// MFP returns the mean first passage time matrix.
func (nb *Neighbors) MFP() *mat.Dense {
	return nb.mfp
}

// SpecLayout returns the spectral layout of the graph: the eigenvectors of
// the Laplacian after the constant one, with their eigenvalues.
func (nb *Neighbors) SpecLayout() (*graph.Dense, []float32, error) {
	if err := nb.ComputeTransitions(); err != nil {
		return nil, nil, err
	}
	if err := nb.ComputeLaplacian(); err != nil {
		return nil, nil, err
	}
	y, values, err := spectral.Layout(nb.laplacian)
	if err != nil {
		return nil, nil, fmt.Errorf("spectral layout: %w", err)
	}
	return y, values, nil
}
