// Command diffmap computes neighborhood graphs, diffusion maps and
// diffusion pseudotime for data stored as CSV.
//
// Usage:
//
//	diffmap [flags] <command> [args]
//
// Commands:
//
//	neighbors  - Compute the distance and similarity graphs
//	eigen      - Compute the diffusion map
//	dpt        - Compute diffusion pseudotime from a root point
//	inspect    - List the stored slots
package main

import (
	"fmt"
	"os"

	"github.com/nozzle/diffmap/cmd/diffmap/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
