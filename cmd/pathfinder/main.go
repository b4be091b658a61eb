// Command pathfinder runs the venue-planning service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "pathfinder",
		Short: "Ranked venue shortlists from natural-language prompts",
		Long: `pathfinder turns a free-form activity request into a ranked, explained
shortlist of real venues. A planning stage decomposes the prompt, a
discovery stage gathers candidates from venue catalogs, three analysts
score them in parallel, and a synthesis stage ranks and explains the
top results.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "optional YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newPlanCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
