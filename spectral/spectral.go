// Package spectral computes eigendecompositions of graph matrices: full dense
// decompositions through gonum's EigenSym and partial ones through a Lanczos
// iteration that only needs matrix-vector products.
package spectral

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/graph"
)

// Sentinel errors.
var (
	// ErrAsymmetric is returned when the matrix to decompose is not
	// symmetric.
	ErrAsymmetric = errors.New("spectral: matrix is not symmetric")

	// ErrNotConverged is returned when an eigensolver fails.
	ErrNotConverged = errors.New("spectral: eigensolver did not converge")
)

// Sort selects which end of the spectrum is computed and how it is ordered.
type Sort string

const (
	// SortDecrease computes the eigenvalues of largest magnitude and returns
	// them in decreasing order.
	SortDecrease Sort = "decrease"
	// SortIncrease computes the eigenvalues of smallest magnitude and returns
	// them in increasing order.
	SortIncrease Sort = "increase"
)

// symmetryTolerance bounds |A[i,j] - A[j,i]| relative to the largest entry.
const symmetryTolerance = 1e-5

// Spectrum is an ordered set of eigenvalues with right and left eigenbases
// stored column-wise (N × len(Values)).
type Spectrum struct {
	Values []float32
	Right  *graph.Dense
	Left   *graph.Dense
	// Symmetric is true when Right and Left are the same eigenvectors of a
	// symmetric matrix.
	Symmetric bool
}

// Len returns the number of eigenpairs.
func (s *Spectrum) Len() int {
	return len(s.Values)
}

// Ones returns the number of eigenvalues equal to 1.
func (s *Spectrum) Ones() int {
	count := 0
	for _, v := range s.Values {
		if v == 1 {
			count++
		}
	}
	return count
}

// Reducible reports whether more than half of the eigenvalues equal 1, which
// happens when the graph falls apart into disconnected blocks.
func (s *Spectrum) Reducible() bool {
	return float64(s.Ones()) > float64(len(s.Values))/2
}

// Transition converts a spectrum of the symmetric conjugate K/sqrt(z z^T)
// into the right and left eigenbases of the row-stochastic transition
// matrix: right = evecs / sqrtz, left = evecs * sqrtz, row by row.
func (s *Spectrum) Transition(sqrtz []float64) *Spectrum {
	n, c := s.Right.Dims()
	right := graph.NewDense(n, c, nil)
	left := graph.NewDense(n, c, nil)
	for i := range n {
		src := s.Right.RawRow(i)
		r, l := right.RawRow(i), left.RawRow(i)
		for j, v := range src {
			r[j] = float32(float64(v) / sqrtz[i])
			l[j] = float32(float64(v) * sqrtz[i])
		}
	}
	return &Spectrum{
		Values: slices.Clone(s.Values),
		Right:  right,
		Left:   left,
	}
}

// Decompose computes eigenpairs of the symmetric matrix m. nComps == 0
// requests the full spectrum through a dense solver; otherwise the nComps
// (at most N-1) eigenvalues of largest magnitude are computed for
// SortDecrease and of smallest magnitude for SortIncrease. The computation
// runs in float64 and is stored in float32.
func Decompose(m graph.Matrix, nComps int, sort Sort) (*Spectrum, error) {
	n, c := m.Dims()
	if n != c {
		return nil, fmt.Errorf("%w: %d×%d", graph.ErrShape, n, c)
	}
	if err := checkSymmetric(m); err != nil {
		return nil, err
	}

	var (
		values  []float64
		vectors *mat.Dense
		err     error
	)
	if nComps == 0 {
		values, vectors, err = denseEigen(m)
	} else {
		nComps = min(n-1, nComps)
		if nComps <= 0 {
			basis := graph.NewDense(n, 0, nil)
			return &Spectrum{Right: basis, Left: basis, Symmetric: true}, nil
		}
		values, vectors, err = partialEigen(m, nComps, sort)
	}
	if err != nil {
		return nil, err
	}

	k := len(values)
	if sort == SortDecrease {
		slices.Reverse(values)
		reverseColumns(vectors)
	}

	basis := graph.NewDense(n, k, nil)
	for i := range n {
		row := basis.RawRow(i)
		for j := range k {
			row[j] = float32(vectors.At(i, j))
		}
	}
	out := &Spectrum{
		Values:    make([]float32, k),
		Right:     basis,
		Left:      basis,
		Symmetric: true,
	}
	for i, v := range values {
		out.Values[i] = float32(v)
	}
	return out, nil
}

// Layout returns the spectral layout of a graph Laplacian: the full
// eigenbasis in increasing order with the first (constant) eigenvector and
// its eigenvalue dropped.
func Layout(laplacian graph.Matrix) (*graph.Dense, []float32, error) {
	s, err := Decompose(laplacian, 0, SortIncrease)
	if err != nil {
		return nil, nil, err
	}
	if s.Len() < 2 {
		n, _ := laplacian.Dims()
		return graph.NewDense(n, 0, nil), nil, nil
	}
	n, k := s.Right.Dims()
	y := graph.NewDense(n, k-1, nil)
	for i := range n {
		copy(y.RawRow(i), s.Right.RawRow(i)[1:])
	}
	return y, slices.Clone(s.Values[1:]), nil
}

// denseEigen returns all eigenpairs in ascending order.
func denseEigen(m graph.Matrix) ([]float64, *mat.Dense, error) {
	n, _ := m.Dims()
	data := make([]float64, n*n)
	for i := range n {
		cols, vals := m.Row(i)
		for k, j := range cols {
			data[i*n+int(j)] = float64(vals[k])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(mat.NewSymDense(n, data), true); !ok {
		return nil, nil, ErrNotConverged
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	return eig.Values(nil), &vectors, nil
}

func checkSymmetric(m graph.Matrix) error {
	n, _ := m.Dims()
	var scale float64
	for i := range n {
		_, vals := m.Row(i)
		for _, v := range vals {
			scale = max(scale, math.Abs(float64(v)))
		}
	}
	tol := symmetryTolerance * max(scale, 1)
	for i := range n {
		cols, vals := m.Row(i)
		for k, j := range cols {
			if math.Abs(float64(vals[k])-float64(m.At(int(j), i))) > tol {
				return fmt.Errorf("%w: entry (%d, %d)", ErrAsymmetric, i, j)
			}
		}
	}
	return nil
}

func reverseColumns(v *mat.Dense) {
	r, c := v.Dims()
	for i := range r {
		slices.Reverse(v.RawRowView(i)[:c])
	}
}
