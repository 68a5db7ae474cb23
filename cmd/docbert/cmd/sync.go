package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/app"
	"github.com/cfcosta/docbert/internal/output"
)

func newSyncCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reindex new and changed files, remove deleted ones",
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
			result, err := a.Orchestrator.Sync(cmd.Context(), collection)
			if err != nil {
				return err
			}
			out.Successf("synced: %d new, %d changed, %d deleted, %d indexed", result.New, result.Changed, result.Deleted, result.Indexed)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "limit sync to one collection (default: all)")
	return cmd
}
