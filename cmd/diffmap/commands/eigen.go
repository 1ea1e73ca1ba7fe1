package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nozzle/diffmap"
)

var eigenCmd = &cobra.Command{
	Use:   "eigen",
	Short: "Compute the diffusion map",
	Long: `Decompose the stored similarity graph into diffusion components. With
--input the missing stages are computed from the data first.`,
	RunE: runEigen,
}

var eigenFlags struct {
	input  string
	output string
	nComps int
}

func init() {
	f := eigenCmd.Flags()
	f.StringVarP(&eigenFlags.input, "input", "i", "", "input CSV file")
	f.StringVarP(&eigenFlags.output, "output", "o", "", "write the diffusion components to this CSV file")
	f.IntVarP(&eigenFlags.nComps, "n-comps", "n", 15, "number of diffusion components")
	rootCmd.AddCommand(eigenCmd)
}

func runEigen(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	nComps := config.NComps
	if cmd.Flags().Changed("n-comps") {
		nComps = eigenFlags.nComps
	}

	s, err := openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	nb, err := loadNeighbors(cmd, s, config, eigenFlags.input)
	if err != nil {
		return err
	}
	if eigenFlags.input != "" {
		if _, err := nb.UpdateDiffmap(nComps); err != nil {
			return err
		}
	} else {
		eigen := diffmap.DefaultEigenConfig()
		eigen.NComps = nComps
		if err := nb.ComputeEigen(eigen); err != nil {
			if errors.Is(err, diffmap.ErrNoSimilarities) {
				return fmt.Errorf("%w: run neighbors or pass --input", err)
			}
			return err
		}
	}
	if err := nb.Save(cmd.Context(), s); err != nil {
		return err
	}

	sp := nb.Spectrum()
	fmt.Fprintf(cmd.OutOrStdout(), "eigenvalues: %v\n", sp.Values)
	if eigenFlags.output != "" {
		return saveCSV(eigenFlags.output, denseRows(sp.Right.Data, sp.Len()))
	}
	return nil
}
