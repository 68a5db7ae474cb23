package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/app"
	"github.com/cfcosta/docbert/internal/output"
)

func newRebuildCmd() *cobra.Command {
	var collection string
	var embeddingsOnly bool
	var indexOnly bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Purge and fully re-ingest collections from scratch",
		Args:  cobra.NoArgs,
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

			out := output.New(cmd.OutOrStdout())
			if err := a.Orchestrator.Rebuild(cmd.Context(), collection, embeddingsOnly, indexOnly); err != nil {
				return err
			}
			out.Success("rebuild complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "limit rebuild to one collection (default: all)")
	cmd.Flags().BoolVar(&embeddingsOnly, "embeddings-only", false, "keep lexical index entries out of the purge (re-ingest still writes every store)")
	cmd.Flags().BoolVar(&indexOnly, "index-only", false, "keep embeddings out of the purge (re-ingest still writes every store)")
	return cmd
}
