package diffusion

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/internal/parallel"
	"github.com/nozzle/diffmap/spectral"
)

// DenseConfig configures the dense derived matrices.
type DenseConfig struct {
	// MaxPoints is the largest N for which an N×N matrix is built
	// (0 = unlimited).
	MaxPoints int

	// PCAThreshold is the M-matrix width above which rows are reduced by PCA
	// before pairwise distances are taken.
	PCAThreshold int

	// PCAComponents is the number of principal components kept.
	PCAComponents int

	// NumWorkers for parallel processing (0 = auto)
	NumWorkers int
}

// DefaultDenseConfig returns default configuration.
func DefaultDenseConfig() DenseConfig {
	return DenseConfig{
		MaxPoints:     20000,
		PCAThreshold:  1000,
		PCAComponents: 50,
		NumWorkers:    0,
	}
}

func (c DenseConfig) check(n int) error {
	if c.MaxPoints > 0 && n > c.MaxPoints {
		return fmt.Errorf("%w: %d points, limit %d", ErrTooLarge, n, c.MaxPoints)
	}
	return nil
}

// basisMatrices returns the columns [from, k) of the right basis scaled by
// coef and of the left basis as float64 matrices.
func basisMatrices(s *spectral.Spectrum, from int, coef []float64) (*mat.Dense, *mat.Dense) {
	n, _ := s.Right.Dims()
	k := s.Len() - from
	r := mat.NewDense(n, k, nil)
	l := mat.NewDense(n, k, nil)
	for i := range n {
		rs, ls := s.Right.RawRow(i), s.Left.RawRow(i)
		for c := range k {
			r.Set(i, c, float64(rs[from+c])*coef[from+c])
			l.Set(i, c, float64(ls[from+c]))
		}
	}
	return r, l
}

// outer computes r lᵀ in row chunks.
func outer(r, l *mat.Dense, numWorkers int) *mat.Dense {
	n, k := r.Dims()
	out := mat.NewDense(n, n, nil)
	workers := parallel.Resolve(numWorkers)
	chunks := parallel.Split(n, parallel.ChunkSize(n, n, workers))
	parallel.MapChunks(chunks, workers, func(c parallel.Chunk) struct{} {
		dst := out.Slice(c.Start, c.End, 0, n).(*mat.Dense)
		dst.Mul(r.Slice(c.Start, c.End, 0, k), l.T())
		return struct{}{}
	})
	return out
}

// MMatrix returns the sum over all powers of the transition matrix outside
// the first eigenspace plus the first eigenspace itself:
//
//	M = r_0 l_0ᵀ + Σ_{l≥1} λ_l/(1-λ_l) r_l l_lᵀ
func MMatrix(s *spectral.Spectrum, config DenseConfig) (*mat.Dense, error) {
	n, _ := s.Right.Dims()
	if err := config.check(n); err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return mat.NewDense(n, n, nil), nil
	}
	coef := coefficients(s.Values)
	coef[0] = 1
	r, l := basisMatrices(s, 0, coef)
	return outer(r, l, config.NumWorkers), nil
}

// DPTDistances returns the dense diffusion pseudotime distance matrix: the
// Euclidean distances between rows of M. M is reduced to
// config.PCAComponents principal components first when it has more than
// config.PCAThreshold columns.
func DPTDistances(m *mat.Dense, config DenseConfig) *mat.Dense {
	_, c := m.Dims()
	x := m
	if config.PCAThreshold > 0 && c > config.PCAThreshold {
		x = PCA(m, config.PCAComponents)
	}
	return pairwise(x, config.NumWorkers)
}

// PCA projects the centered rows of x onto its first k principal axes.
func PCA(x *mat.Dense, k int) *mat.Dense {
	n, c := x.Dims()
	k = min(k, n, c)

	centered := mat.NewDense(n, c, nil)
	col := make([]float64, n)
	for j := range c {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		for i := range n {
			centered.Set(i, j, col[i]-mean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return centered
	}
	var v mat.Dense
	svd.VTo(&v)

	var out mat.Dense
	out.Mul(centered, v.Slice(0, c, 0, k))
	return &out
}

// pairwise returns the symmetric matrix of Euclidean distances between the
// rows of x.
func pairwise(x *mat.Dense, numWorkers int) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, n, nil)
	parallel.ParallelFor(0, n, parallel.Resolve(numWorkers), func(i int) {
		a := x.RawRowView(i)
		for j := i + 1; j < n; j++ {
			out.Set(i, j, floats.Distance(a, x.RawRowView(j), 2))
		}
	})
	for i := range n {
		for j := i + 1; j < n; j++ {
			out.Set(j, i, out.At(i, j))
		}
	}
	return out
}

// Transition returns the row-stochastic transition matrix T = K / z.
func Transition(k graph.Matrix, z []float64) graph.Matrix {
	return k.Map(func(i, _ int, v float32) float32 {
		return float32(float64(v) / z[i])
	})
}

// Laplacian returns the graph Laplacian L = diag(z) - K with the storage
// kind of k.
func Laplacian(k graph.Matrix, z []float64) graph.Matrix {
	switch m := k.(type) {
	case *graph.Dense:
		out := m.Clone()
		for i := range out.NRows {
			row := out.RawRow(i)
			for j := range row {
				row[j] = -row[j]
			}
			row[i] += float32(z[i])
		}
		return out
	default:
		n, c := k.Dims()
		out := &graph.CSR{Indptr: make([]int32, 1, n+1), NRows: n, NCols: c}
		for i := range n {
			cols, vals := k.Row(i)
			diag := false
			for p, j := range cols {
				v := -vals[p]
				if int(j) == i {
					v += float32(z[i])
					diag = true
				}
				out.Indices = append(out.Indices, j)
				out.Data = append(out.Data, v)
			}
			if !diag {
				out.Indices = append(out.Indices, int32(i))
				out.Data = append(out.Data, float32(z[i]))
			}
			out.Indptr = append(out.Indptr, int32(len(out.Indices)))
		}
		return out
	}
}

// LaplacianPinv returns the pseudoinverse of the Laplacian from its
// spectrum in increasing order, skipping the zero eigenvalue:
//
//	Lp = Σ_{i≥1} 1/λ_i r_i l_iᵀ
func LaplacianPinv(s *spectral.Spectrum, config DenseConfig) (*mat.Dense, error) {
	n, _ := s.Right.Dims()
	if err := config.check(n); err != nil {
		return nil, err
	}
	if s.Len() < 2 {
		return mat.NewDense(n, n, nil), nil
	}
	coef := make([]float64, s.Len())
	for i := 1; i < s.Len(); i++ {
		coef[i] = 1 / float64(s.Values[i])
	}
	r, l := basisMatrices(s, 1, coef)
	return outer(r, l, config.NumWorkers), nil
}

// Commute returns the commute time matrix
// C[i,j] = vol(G) (Lp[i,i] + Lp[j,j] - 2 Lp[i,j]).
func Commute(lp *mat.Dense, z []float64) *mat.Dense {
	n, _ := lp.Dims()
	vol := floats.Sum(z)
	out := mat.NewDense(n, n, nil)
	for i := range n {
		for j := range n {
			out.Set(i, j, vol*(lp.At(i, i)+lp.At(j, j)-2*lp.At(i, j)))
		}
	}
	return out
}

// MeanFirstPassage returns the mean first passage times
//
//	MFP[i,k] = Σ_j (Lp[i,j] - Lp[i,k] - Lp[k,j] + Lp[k,k]) z[j]
//
// with the inner sum over j collapsed into Lp z.
func MeanFirstPassage(lp *mat.Dense, z []float64) *mat.Dense {
	n, _ := lp.Dims()
	vol := floats.Sum(z)
	var a mat.VecDense
	a.MulVec(lp, mat.NewVecDense(len(z), z))

	out := mat.NewDense(n, n, nil)
	for i := range n {
		for k := range n {
			out.Set(i, k, a.AtVec(i)-vol*lp.At(i, k)-a.AtVec(k)+vol*lp.At(k, k))
		}
	}
	return out
}
