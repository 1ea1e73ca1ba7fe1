package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nozzle/diffmap"
	"github.com/nozzle/diffmap/nn"
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Compute the distance and similarity graphs",
	Long: `Compute the neighborhood graph of the rows of a CSV file and store the
graphs listed in --weights.`,
	RunE: runNeighbors,
}

var neighborsFlags struct {
	input      string
	nNeighbors int
	knn        bool
	method     string
	metric     string
	weights    []string
}

func init() {
	f := neighborsCmd.Flags()
	f.StringVarP(&neighborsFlags.input, "input", "i", "", "input CSV file (required)")
	f.IntVarP(&neighborsFlags.nNeighbors, "n-neighbors", "k", 30, "neighbor count including the point itself")
	f.BoolVar(&neighborsFlags.knn, "knn", true, "restrict the graph to the nearest neighbors")
	f.StringVar(&neighborsFlags.method, "method", string(nn.MethodExact), "neighbor search: exact or umap")
	f.StringVar(&neighborsFlags.metric, "metric", "euclidean", "metric of the approximate search")
	f.StringSliceVar(&neighborsFlags.weights, "weights", []string{diffmap.WeightDistances, diffmap.WeightSimilarities}, "graphs to store")
	neighborsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(neighborsCmd)
}

func runNeighbors(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("n-neighbors") {
		config.NNeighbors = neighborsFlags.nNeighbors
	}
	if f.Changed("knn") {
		config.KNN = neighborsFlags.knn
	}
	if f.Changed("method") {
		config.Method = nn.Method(neighborsFlags.method)
	}
	if f.Changed("metric") {
		config.Metric = neighborsFlags.metric
	}
	if f.Changed("weights") {
		config.Weights = neighborsFlags.weights
	}

	data, err := loadCSV(neighborsFlags.input)
	if err != nil {
		return err
	}
	config.Logger.Debug("loaded data", "n_obs", len(data), "n_vars", len(data[0]))

	s, err := openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	nb, err := diffmap.Run(cmd.Context(), data, s, config)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored neighbors: n_obs=%d n_neighbors=%d knn=%t\n",
		nb.NObs(), nb.NNeighbors(), nb.KNN())
	return nil
}
