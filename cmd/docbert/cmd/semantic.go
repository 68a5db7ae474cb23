package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/app"
	"github.com/cfcosta/docbert/internal/output"
	"github.com/cfcosta/docbert/internal/search"
)

func newSemanticSearchCmd() *cobra.Command {
	var count int
	var minScore float64
	var all bool

	cmd := &cobra.Command{
		Use:   "semantic-search <query>",
		Short: "Exhaustive MaxSim search over every indexed document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Open(cfg, cliModel)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			results, err := a.Orchestrator.SemanticSearch(cmd.Context(), search.SemanticParams{
				Query:    query,
				Count:    count,
				MinScore: minScore,
				All:      all,
			})
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			printResults(out, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum score threshold")
	cmd.Flags().BoolVar(&all, "all", false, "return all results above the score threshold")

	return cmd
}
