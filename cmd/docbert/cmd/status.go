package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/app"
	"github.com/cfcosta/docbert/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-collection document counts and model settings",
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

			status, err := a.Orchestrator.Status()
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Statusf("", "model: %s", a.Model.ModelID())
			out.Statusf("", "embedding_model setting: %s", status.EmbeddingModel)
			if !status.EmbeddingsMatch {
				out.Warning("stored embeddings were produced by a different model; run 'docbert rebuild'")
			}

			names := make([]string, 0, len(status.Collections))
			for name := range status.Collections {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				c := status.Collections[name]
				out.Statusf("", "%s  %s  (%d documents)", name, c.Path, c.DocumentCount)
			}
			return nil
		},
	}
}
