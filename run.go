package diffmap

import (
	"context"
	"slices"
	"time"

	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/store"
)

// Run computes the neighborhood graph of dense feature rows and writes the
// graphs listed in config.Weights to s.
func Run(ctx context.Context, data [][]float32, s store.Store, config Config) (*Neighbors, error) {
	nb := New(data, config)
	return nb, nb.run(ctx, s)
}

// RunSparse is Run for CSR feature rows.
func RunSparse(ctx context.Context, x *graph.CSR, s store.Store, config Config) (*Neighbors, error) {
	nb := NewSparse(x, config)
	return nb, nb.run(ctx, s)
}

func (nb *Neighbors) run(ctx context.Context, s store.Store) error {
	if err := nb.config.validate(); err != nil {
		return err
	}
	start := time.Now()
	nb.logger.Info("computing neighbors", "n_obs", nb.nObs, "n_neighbors", nb.config.NNeighbors)

	if err := nb.ComputeDistances(); err != nil {
		return err
	}
	if slices.Contains(nb.config.Weights, WeightDistances) {
		if err := store.PutMatrix(ctx, s, store.SlotDistances, nb.distances); err != nil {
			return err
		}
	}
	if slices.Contains(nb.config.Weights, WeightSimilarities) {
		if err := nb.ComputeSimilarities(); err != nil {
			return err
		}
		if err := store.PutMatrix(ctx, s, store.SlotSimilarities, nb.similarities); err != nil {
			return err
		}
	}

	nb.logger.Info("finished neighbors", "elapsed", time.Since(start), "slots", nb.config.Weights)
	return nil
}
