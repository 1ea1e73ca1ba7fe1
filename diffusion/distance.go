package diffusion

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/diffmap/spectral"
)

// Sentinel errors.
var (
	// ErrAsymmetricBasis is returned for distance rows over a spectrum whose
	// right and left bases differ; the row formula is only valid for the
	// symmetric case.
	ErrAsymmetricBasis = errors.New("diffusion: distance rows require a symmetric spectrum")

	// ErrTooLarge is returned when a dense N×N matrix is requested for more
	// points than the configured limit.
	ErrTooLarge = errors.New("diffusion: too many points for a dense matrix")
)

// unitEigenvalue is the float32-precision threshold above which an
// eigenvalue is treated as 1.
const unitEigenvalue = 0.999999

// Rows is a matrix that can be read row by row.
type Rows interface {
	Row(i int) []float32
}

// DenseRows adapts a gonum matrix to Rows.
type DenseRows struct {
	*mat.Dense
}

// Row returns row i converted to float32.
func (d DenseRows) Row(i int) []float32 {
	src := d.RawRowView(i)
	out := make([]float32, len(src))
	for j, v := range src {
		out[j] = float32(v)
	}
	return out
}

// coefficients returns λ/(1-λ) per eigenvalue, or 1 where λ is
// indistinguishable from 1.
func coefficients(values []float32) []float64 {
	c := make([]float64, len(values))
	for l, v := range values {
		if v < unitEigenvalue {
			c[l] = float64(v) / (1 - float64(v))
		} else {
			c[l] = 1
		}
	}
	return c
}

// DistanceRows returns the generator of diffusion distance rows:
//
//	row[i][j] = sqrt(Σ_l (c_l (R[i,l] - L[j,l]))²)
//
// with c_l = λ_l/(1-λ_l), or 1 for eigenvalues indistinguishable from 1.
func DistanceRows(s *spectral.Spectrum) (RowFunc, error) {
	if !s.Symmetric {
		return nil, ErrAsymmetricBasis
	}
	c := coefficients(s.Values)
	n, _ := s.Left.Dims()
	return func(i int) []float32 {
		ri := s.Right.RawRow(i)
		row := make([]float32, n)
		for j := range n {
			lj := s.Left.RawRow(j)
			var sum float64
			for l, cl := range c {
				d := cl * (float64(ri[l]) - float64(lj[l]))
				sum += d * d
			}
			row[j] = float32(math.Sqrt(sum))
		}
		return row
	}, nil
}

// NewDistanceMatrix returns the lazily evaluated diffusion distance matrix
// of s.
func NewDistanceMatrix(s *spectral.Spectrum, capacity int) (*LazyMatrix, error) {
	rows, err := DistanceRows(s)
	if err != nil {
		return nil, err
	}
	n, _ := s.Right.Dims()
	return NewLazyMatrix(n, rows, capacity), nil
}

// Pseudotime returns row root of d scaled by its maximum, so the root maps
// to 0 and the farthest point to 1. An all-zero row stays zero.
func Pseudotime(d Rows, root int) []float32 {
	row := d.Row(root)
	vals := make([]float64, len(row))
	for i, v := range row {
		vals[i] = float64(v)
	}
	if len(vals) > 0 {
		if m := floats.Max(vals); m > 0 {
			floats.Scale(1/m, vals)
		}
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}
