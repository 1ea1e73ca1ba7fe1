package spectral

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/internal/rand"
)

const (
	// ritzTolerance is the relative residual at which a Ritz pair counts as
	// converged.
	ritzTolerance = 1e-10
	// breakdownTolerance is the residual norm below which the Krylov space
	// is treated as invariant.
	breakdownTolerance = 1e-12
)

// lanczos builds an orthonormal Krylov basis of a symmetric matrix with full
// reorthogonalization. alpha and beta are the diagonals of the projected
// tridiagonal matrix.
type lanczos struct {
	a     graph.Matrix
	n     int
	basis [][]float64
	alpha []float64
	beta  []float64
	// next is the unnormalized residual of the last step and rnorm its norm.
	next  []float64
	rnorm float64
	// exhausted is set once no vector orthogonal to the basis remains.
	exhausted bool
	rng       rand.State
}

func newLanczos(a graph.Matrix) *lanczos {
	n, _ := a.Dims()
	return &lanczos{a: a, n: n, rng: rand.FromSeed(0)}
}

// extend grows the basis to m vectors.
func (l *lanczos) extend(m int) {
	m = min(m, l.n)
	for len(l.basis) < m && !l.exhausted {
		var v []float64
		switch {
		case len(l.basis) > 0 && l.rnorm > breakdownTolerance:
			v = l.next
			floats.Scale(1/l.rnorm, v)
			l.beta = append(l.beta, l.rnorm)
		default:
			v = l.randomOrthogonal()
			if v == nil {
				l.exhausted = true
				l.rnorm = 0
				return
			}
			if len(l.basis) > 0 {
				l.beta = append(l.beta, 0)
			}
		}
		l.basis = append(l.basis, v)

		w := make([]float64, l.n)
		l.a.MulVec(w, v)
		l.alpha = append(l.alpha, floats.Dot(v, w))
		l.orthogonalize(w)
		l.next = w
		l.rnorm = floats.Norm(w, 2)
	}
	if len(l.basis) == l.n {
		l.exhausted = true
		l.rnorm = 0
	}
}

// orthogonalize removes the basis components from w. Two passes of classical
// Gram-Schmidt keep the basis orthogonal to working precision.
func (l *lanczos) orthogonalize(w []float64) {
	for range 2 {
		for _, b := range l.basis {
			floats.AddScaled(w, -floats.Dot(b, w), b)
		}
	}
}

// randomOrthogonal returns a unit vector orthogonal to the basis, or nil if
// the basis already spans the space numerically.
func (l *lanczos) randomOrthogonal() []float64 {
	for range 3 {
		v := make([]float64, l.n)
		for i := range v {
			v[i] = float64(rand.Float32(&l.rng)) - 0.5
		}
		l.orthogonalize(v)
		if norm := floats.Norm(v, 2); norm > breakdownTolerance {
			floats.Scale(1/norm, v)
			return v
		}
	}
	return nil
}

// ritz returns the eigenpairs of the projected tridiagonal matrix in
// ascending order.
func (l *lanczos) ritz() ([]float64, *mat.Dense, bool) {
	m := len(l.alpha)
	t := mat.NewSymDense(m, nil)
	for i := range m {
		t.SetSym(i, i, l.alpha[i])
		if i+1 < m {
			t.SetSym(i, i+1, l.beta[i])
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(t, true); !ok {
		return nil, nil, false
	}
	var s mat.Dense
	eig.VectorsTo(&s)
	return eig.Values(nil), &s, true
}

// partialEigen computes k eigenpairs of largest (SortDecrease) or smallest
// (otherwise) magnitude. The Krylov space is enlarged until every wanted
// Ritz pair has converged; at full dimension the result is exact. Values are
// returned in ascending order.
func partialEigen(a graph.Matrix, k int, sort Sort) ([]float64, *mat.Dense, error) {
	n, _ := a.Dims()
	l := newLanczos(a)
	m := min(n, max(2*k+1, 20))

	for {
		l.extend(m)
		theta, s, ok := l.ritz()
		if !ok {
			return nil, nil, ErrNotConverged
		}
		wanted := selectRitz(theta, k, sort)
		size := len(theta)

		converged := len(wanted) == k
		for _, j := range wanted {
			residual := l.rnorm * math.Abs(s.At(size-1, j))
			if residual > ritzTolerance*max(1, math.Abs(theta[j])) {
				converged = false
				break
			}
		}

		if converged || l.exhausted {
			if !converged {
				return nil, nil, ErrNotConverged
			}
			slices.SortFunc(wanted, func(x, y int) int {
				switch {
				case theta[x] < theta[y]:
					return -1
				case theta[x] > theta[y]:
					return 1
				}
				return 0
			})
			return l.vectors(theta, s, wanted)
		}
		m = min(n, 2*m)
	}
}

// selectRitz returns the indices of the k Ritz values of largest or smallest
// magnitude.
func selectRitz(theta []float64, k int, sort Sort) []int {
	idx := make([]int, len(theta))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(x, y int) int {
		ax, ay := math.Abs(theta[x]), math.Abs(theta[y])
		if sort != SortDecrease {
			ax, ay = ay, ax
		}
		switch {
		case ax > ay:
			return -1
		case ax < ay:
			return 1
		}
		return 0
	})
	return idx[:min(k, len(idx))]
}

// vectors lifts the selected Ritz vectors back to the full space.
func (l *lanczos) vectors(theta []float64, s *mat.Dense, wanted []int) ([]float64, *mat.Dense, error) {
	values := make([]float64, len(wanted))
	out := mat.NewDense(l.n, len(wanted), nil)
	col := make([]float64, l.n)
	for c, j := range wanted {
		values[c] = theta[j]
		clear(col)
		for b, v := range l.basis {
			floats.AddScaled(col, s.At(b, j), v)
		}
		if norm := floats.Norm(col, 2); norm > 0 {
			floats.Scale(1/norm, col)
		}
		out.SetCol(c, col)
	}
	return values, out, nil
}
