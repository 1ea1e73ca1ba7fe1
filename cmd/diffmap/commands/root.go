package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nozzle/diffmap"
	"github.com/nozzle/diffmap/store"
)

var (
	// Global flags
	verbose    bool
	configFile string
	storeDir   string
	prefix     string
)

var rootCmd = &cobra.Command{
	Use:   "diffmap",
	Short: "Neighborhood graphs, diffusion maps and diffusion pseudotime",
	Long: `diffmap - compute diffusion maps of CSV data.

Results are kept in a Badger store under named slots, so each command
continues from what the previous ones computed.

Examples:
  # Distances and similarities of the 30 nearest neighbors
  diffmap --store ./run neighbors -i data.csv

  # 15 diffusion components, eigenvectors written to CSV
  diffmap --store ./run eigen --n-comps 15 -o diffmap.csv

  # Pseudotime from the first point
  diffmap --store ./run dpt -i data.csv --root 0 -o pseudotime.csv`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "diffmap.db", "Badger store directory")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "slot key prefix within the store")
}

// loadConfig returns the configuration from --config, or the defaults,
// with the logger attached.
func loadConfig() (diffmap.Config, error) {
	config := diffmap.DefaultConfig()
	if configFile != "" {
		var err error
		if config, err = diffmap.LoadConfig(configFile); err != nil {
			return config, err
		}
	}
	config.Verbose = config.Verbose || verbose
	level := slog.LevelInfo
	if config.Verbose {
		level = slog.LevelDebug
	}
	config.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return config, nil
}

func openStore(config diffmap.Config) (store.Store, error) {
	return store.NewBadger(store.BadgerOptions{
		Dir:    storeDir,
		Prefix: prefix,
		Logger: config.Logger,
	})
}

// loadNeighbors restores the stored state, attached to the data in input
// when given.
func loadNeighbors(cmd *cobra.Command, s store.Store, config diffmap.Config, input string) (*diffmap.Neighbors, error) {
	var data [][]float32
	if input != "" {
		var err error
		if data, err = loadCSV(input); err != nil {
			return nil, err
		}
	}
	nb := diffmap.New(data, config)
	if err := nb.Load(cmd.Context(), s); err != nil {
		return nil, err
	}
	return nb, nil
}
