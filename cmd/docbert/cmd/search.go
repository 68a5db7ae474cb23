package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/app"
	"github.com/cfcosta/docbert/internal/output"
	"github.com/cfcosta/docbert/internal/search"
)

func newSearchCmd() *cobra.Command {
	var count int
	var collection string
	var minScore float64
	var bm25Only bool
	var noFuzzy bool
	var all bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed collections with hybrid BM25 + ColBERT ranking",
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
			results, err := a.Orchestrator.Search(cmd.Context(), search.Params{
				Query:      query,
				Count:      count,
				Collection: collection,
				MinScore:   minScore,
				BM25Only:   bm25Only,
				NoFuzzy:    noFuzzy,
				All:        all,
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
	cmd.Flags().StringVar(&collection, "collection", "", "restrict to one collection")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum score threshold")
	cmd.Flags().BoolVar(&bm25Only, "bm25-only", false, "skip ColBERT reranking")
	cmd.Flags().BoolVar(&noFuzzy, "no-fuzzy", false, "disable fuzzy term matching in stage 1")
	cmd.Flags().BoolVar(&all, "all", false, "return all results above the score threshold")

	return cmd
}

func printResults(out *output.Writer, results []search.Result) {
	if len(results) == 0 {
		out.Status("", "no results")
		return
	}
	for _, r := range results {
		out.Statusf("", "#%d  %.4f  %s:%s  %q  (%s)", r.Rank, r.Score, r.Collection, r.Path, r.Title, r.ShortDocID)
	}
}
