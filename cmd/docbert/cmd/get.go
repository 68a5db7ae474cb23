package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/app"
	"github.com/cfcosta/docbert/internal/output"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <ref> [ref...]",
		Short: "Retrieve one or more documents by short ID, collection:path, or bare path",
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

			out := output.New(cmd.OutOrStdout())

			if len(args) == 1 {
				doc, err := a.Orchestrator.Get(args[0])
				if err != nil {
					return err
				}
				out.Statusf("", "%s:%s  %q  (#%s)", doc.Collection, doc.RelativePath, doc.Title, doc.ShortID)
				out.Code(doc.Content)
				return nil
			}

			docs, errs := a.Orchestrator.MultiGet(args)
			for _, doc := range docs {
				out.Statusf("", "%s:%s  %q  (#%s)", doc.Collection, doc.RelativePath, doc.Title, doc.ShortID)
				out.Code(doc.Content)
			}
			for _, e := range errs {
				out.Error(e.Error())
			}
			return nil
		},
	}
}
