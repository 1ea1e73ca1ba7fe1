package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dptCmd = &cobra.Command{
	Use:   "dpt",
	Short: "Compute diffusion pseudotime from a root point",
	Long: `Compute the distance of every point from a root point in the stored
diffusion map, scaled to [0, 1]. The root is --root, the point closest to the
single row of --xroot, or the root stored by a previous run.`,
	RunE: runDPT,
}

var dptFlags struct {
	input    string
	output   string
	root     int
	xroot    string
	distance string
}

func init() {
	f := dptCmd.Flags()
	f.StringVarP(&dptFlags.input, "input", "i", "", "input CSV file")
	f.StringVarP(&dptFlags.output, "output", "o", "", "write pseudotime to this CSV file")
	f.IntVar(&dptFlags.root, "root", -1, "root point index")
	f.StringVar(&dptFlags.xroot, "xroot", "", "CSV file with the feature vector of the root")
	f.StringVar(&dptFlags.distance, "distance", "diffusion", "distance: diffusion or dpt (distances between rows of the M matrix)")
	rootCmd.AddCommand(dptCmd)
}

func runDPT(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	nb, err := loadNeighbors(cmd, s, config, dptFlags.input)
	if err != nil {
		return err
	}
	if dptFlags.input != "" {
		if _, err := nb.UpdateDiffmap(config.NComps); err != nil {
			return err
		}
	}

	switch {
	case dptFlags.root >= 0:
		if !nb.SetRoot(dptFlags.root) {
			return fmt.Errorf("root %d outside %d points", dptFlags.root, nb.NObs())
		}
	case dptFlags.xroot != "":
		rows, err := loadCSV(dptFlags.xroot)
		if err != nil {
			return err
		}
		if err := nb.SetRootFromVector(rows[0]); err != nil {
			return err
		}
	}

	switch dptFlags.distance {
	case "diffusion":
	case "dpt":
		if err := nb.ComputeDPTMatrix(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown distance %q", dptFlags.distance)
	}

	pt, err := nb.Pseudotime()
	if err != nil {
		return err
	}
	if err := nb.Save(cmd.Context(), s); err != nil {
		return err
	}
	root, _ := nb.Root()
	fmt.Fprintf(cmd.OutOrStdout(), "pseudotime from root %d over %d points\n", root, len(pt))
	if dptFlags.output != "" {
		return saveCSV(dptFlags.output, denseRows(pt, 1))
	}
	return nil
}
