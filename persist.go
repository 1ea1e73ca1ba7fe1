package diffmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/nozzle/diffmap/diffusion"
	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/spectral"
	"github.com/nozzle/diffmap/store"
)

// Save writes every computed quantity to s: the distance and similarity
// graphs, the eigenvalues and eigenbasis, pseudotime and the root.
func (nb *Neighbors) Save(ctx context.Context, s store.Store) error {
	if nb.distances != nil {
		if err := store.PutMatrix(ctx, s, store.SlotDistances, nb.distances); err != nil {
			return err
		}
	}
	if nb.similarities != nil {
		if err := store.PutMatrix(ctx, s, store.SlotSimilarities, nb.similarities); err != nil {
			return err
		}
	}
	if nb.spectrum != nil {
		if err := store.PutVector(ctx, s, store.SlotEvals, nb.spectrum.Values); err != nil {
			return err
		}
		if err := store.PutMatrix(ctx, s, store.SlotDiffmap, nb.spectrum.Right); err != nil {
			return err
		}
		if err := s.Delete(ctx, store.SlotDiffmap0); err != nil {
			return fmt.Errorf("store: delete %s: %w", store.SlotDiffmap0, err)
		}
	}
	if nb.pseudotime != nil {
		if err := store.PutVector(ctx, s, store.SlotPseudotime, nb.pseudotime); err != nil {
			return err
		}
	}
	if nb.iroot >= 0 {
		if err := store.PutInt(ctx, s, store.SlotIRoot, nb.iroot); err != nil {
			return err
		}
	}
	if nb.xroot != nil {
		if err := store.PutVector(ctx, s, store.SlotXRoot, nb.xroot); err != nil {
			return err
		}
	}
	return nil
}

// loaded holds the slots read by Load before they are applied.
type loaded struct {
	distances    graph.Matrix
	similarities graph.Matrix
	spectrum     *spectral.Spectrum
	iroot        int
	hasIRoot     bool
	xroot        []float32
}

// Load restores previously computed quantities from s. The knn flag is
// inferred from whether the stored graph is sparse and the neighbor count
// from the non-zero entries of its first row plus one. A stored root index
// outside the data is logged and ignored; without one, a stored root
// vector of matching dimension selects the root. Nothing is changed when
// Load fails.
func (nb *Neighbors) Load(ctx context.Context, s store.Store) error {
	var l loaded
	var err error
	if l.distances, err = optionalMatrix(ctx, s, store.SlotDistances); err != nil {
		return err
	}
	if l.similarities, err = optionalMatrix(ctx, s, store.SlotSimilarities); err != nil {
		return err
	}
	if l.spectrum, err = loadSpectrum(ctx, s); err != nil {
		return err
	}
	l.iroot, err = store.GetInt(ctx, s, store.SlotIRoot)
	switch {
	case err == nil:
		l.hasIRoot = true
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	l.xroot, err = store.GetVector(ctx, s, store.SlotXRoot)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	nObs := nb.nObs
	for _, m := range []graph.Matrix{l.distances, l.similarities} {
		if m == nil {
			continue
		}
		r, c := m.Dims()
		if nObs == 0 {
			nObs = r
		}
		if r != nObs || c != nObs {
			return fmt.Errorf("load: %d×%d graph for %d points: %w", r, c, nObs, graph.ErrShape)
		}
	}
	var dist *diffusion.LazyMatrix
	if l.spectrum != nil {
		r, _ := l.spectrum.Right.Dims()
		if nObs == 0 {
			nObs = r
		}
		if r != nObs {
			return fmt.Errorf("load: eigenbasis of %d rows for %d points: %w", r, nObs, graph.ErrShape)
		}
		if dist, err = diffusion.NewDistanceMatrix(l.spectrum, nb.config.RowCacheSize); err != nil {
			return err
		}
	}

	nb.nObs = nObs
	if g := graphOf(l); g != nil {
		nb.knn = g.Sparse()
		nb.nNeighbors = 0
		if nb.knn {
			nb.nNeighbors = graph.FirstRowNNZ(g) + 1
		}
	}
	if l.distances != nil {
		nb.distances = l.distances
	}
	if l.similarities != nil {
		nb.similarities = l.similarities
		nb.kernel = nil
	}
	if l.spectrum != nil {
		nb.spectrum = l.spectrum
		nb.dist = dist
		nb.chosen = dist
	}
	switch {
	case l.hasIRoot:
		nb.SetRoot(l.iroot)
	case l.xroot != nil && len(l.xroot) == nb.nVars && nb.nObs > 0 && nb.hasData():
		if err := nb.SetRootFromVector(l.xroot); err != nil {
			return err
		}
	}
	nb.logger.Debug("loaded neighbors", "n_obs", nb.nObs, "knn", nb.knn, "n_neighbors", nb.nNeighbors)
	return nil
}

func (nb *Neighbors) hasData() bool {
	return nb.data != nil || nb.sparse != nil
}

// graphOf returns the stored graph the neighbor parameters are inferred
// from, preferring distances.
func graphOf(l loaded) graph.Matrix {
	if l.distances != nil {
		return l.distances
	}
	return l.similarities
}

func optionalMatrix(ctx context.Context, s store.Store, slot string) (graph.Matrix, error) {
	m, err := store.GetMatrix(ctx, s, slot)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// loadSpectrum reads the eigenvalues and eigenbasis. A separately stored
// first component is prepended with eigenvalue 1.
func loadSpectrum(ctx context.Context, s store.Store) (*spectral.Spectrum, error) {
	values, err := store.GetVector(ctx, s, store.SlotEvals)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m, err := store.GetMatrix(ctx, s, store.SlotDiffmap)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	basis := toDense(m)

	first, err := optionalMatrix(ctx, s, store.SlotDiffmap0)
	if err != nil {
		return nil, err
	}
	if first != nil {
		basis, err = prependColumn(toDense(first), basis)
		if err != nil {
			return nil, err
		}
		values = append([]float32{1}, values...)
	}

	if _, c := basis.Dims(); c != len(values) {
		return nil, fmt.Errorf("load: %d eigenvalues for %d components: %w", len(values), c, graph.ErrShape)
	}
	return &spectral.Spectrum{Values: values, Right: basis, Left: basis, Symmetric: true}, nil
}

func toDense(m graph.Matrix) *graph.Dense {
	if d, ok := m.(*graph.Dense); ok {
		return d
	}
	r, c := m.Dims()
	out := graph.NewDense(r, c, nil)
	for i := range r {
		cols, vals := m.Row(i)
		row := out.RawRow(i)
		for p, j := range cols {
			row[j] = vals[p]
		}
	}
	return out
}

func prependColumn(first, rest *graph.Dense) (*graph.Dense, error) {
	r, c := rest.Dims()
	fr, fc := first.Dims()
	if fr != r || fc != 1 {
		return nil, fmt.Errorf("load: %s is %d×%d for %d rows: %w", store.SlotDiffmap0, fr, fc, r, graph.ErrShape)
	}
	out := graph.NewDense(r, c+1, nil)
	for i := range r {
		row := out.RawRow(i)
		row[0] = first.At(i, 0)
		copy(row[1:], rest.RawRow(i))
	}
	return out, nil
}
