package diffmap

import (
	"fmt"
	"math"
	"slices"

	"github.com/nozzle/diffmap/diffusion"
)

// rootTolerance is the distance below which a data point is taken to be
// the root vector itself.
const rootTolerance = 1e-10

// Root returns the root point index.
func (nb *Neighbors) Root() (int, bool) {
	return nb.iroot, nb.iroot >= 0
}

// SetRoot sets the root point. An index outside the data is logged and
// ignored; SetRoot reports whether the root was set.
func (nb *Neighbors) SetRoot(i int) bool {
	if i < 0 || i >= nb.nObs {
		nb.logger.Warn("root index out of range, ignoring", "iroot", i, "n_obs", nb.nObs)
		return false
	}
	nb.setRoot(i)
	return true
}

func (nb *Neighbors) setRoot(i int) {
	if nb.iroot >= 0 && nb.iroot != i {
		nb.logger.Warn("changing index of iroot", "from", nb.iroot, "to", i)
	}
	nb.iroot = i
}

// SetRootFromVector sets the root to the point closest in feature space to
// x. The search stops at the first point within 1e-10 of x.
func (nb *Neighbors) SetRootFromVector(x []float32) error {
	if len(x) != nb.nVars || nb.nObs == 0 {
		return fmt.Errorf("%w: got %d, data has %d", ErrRootDimension, len(x), nb.nVars)
	}
	best, bestDsq := 0, math.Inf(1)
	for i := range nb.nObs {
		dsq := nb.sqDistanceTo(i, x)
		if dsq < bestDsq {
			best, bestDsq = i, dsq
		}
		if math.Sqrt(bestDsq) < rootTolerance {
			break
		}
	}
	nb.logger.Debug("setting root index from vector", "iroot", best, "distance", math.Sqrt(bestDsq))
	nb.setRoot(best)
	nb.xroot = slices.Clone(x)
	return nil
}

func (nb *Neighbors) sqDistanceTo(i int, x []float32) float64 {
	var sum float64
	if nb.sparse == nil {
		for j, v := range nb.data[i] {
			d := float64(v) - float64(x[j])
			sum += d * d
		}
		return sum
	}
	row := make([]float64, len(x))
	cols, vals := nb.sparse.Row(i)
	for p, j := range cols {
		row[j] += float64(vals[p])
	}
	for j, v := range row {
		d := v - float64(x[j])
		sum += d * d
	}
	return sum
}

// Pseudotime returns the distance of every point from the root in the
// current distance matrix scaled to [0, 1]. The distance matrix is the
// diffusion distance after ComputeEigen and is replaced by the dense
// matrices of ComputeDPTMatrix, ComputeCommute and ComputeMFP.
func (nb *Neighbors) Pseudotime() ([]float32, error) {
	if nb.iroot < 0 {
		return nil, ErrNoRoot
	}
	if nb.chosen == nil {
		if nb.spectrum != nil && !nb.spectrum.Symmetric {
			return nil, diffusion.ErrAsymmetricBasis
		}
		return nil, ErrNoSpectrum
	}
	pt := diffusion.Pseudotime(nb.chosen, nb.iroot)
	nb.pseudotime = pt
	return pt, nil
}
