package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the stored slots",
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	slots, err := s.Slots(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tKIND\tSHAPE")
	for _, slot := range slots {
		kind, shape, err := describe(cmd, s, slot)
		if err != nil {
			return fmt.Errorf("slot %s: %w", slot, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", slot, kind, shape)
	}
	return w.Flush()
}

func describe(cmd *cobra.Command, s store.Store, slot string) (string, string, error) {
	ctx := cmd.Context()
	switch slot {
	case store.SlotDistances, store.SlotSimilarities, store.SlotDiffmap, store.SlotDiffmap0:
		m, err := store.GetMatrix(ctx, s, slot)
		if err != nil {
			return "", "", err
		}
		r, c := m.Dims()
		if m.Sparse() {
			return "sparse", fmt.Sprintf("%d×%d nnz=%d n_neighbors=%d", r, c, m.NNZ(), graph.FirstRowNNZ(m)+1), nil
		}
		return "dense", fmt.Sprintf("%d×%d", r, c), nil
	case store.SlotEvals, store.SlotPseudotime, store.SlotXRoot:
		v, err := store.GetVector(ctx, s, slot)
		if err != nil {
			return "", "", err
		}
		return "vector", fmt.Sprintf("%d", len(v)), nil
	case store.SlotIRoot:
		i, err := store.GetInt(ctx, s, slot)
		if err != nil {
			return "", "", err
		}
		return "int", fmt.Sprintf("%d", i), nil
	}
	b, err := s.Get(ctx, slot)
	if err != nil {
		return "", "", err
	}
	return "bytes", fmt.Sprintf("%d", len(b)), nil
}
