package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/app"
	"github.com/cfcosta/docbert/internal/output"
)

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage registered collections",
	}
	cmd.AddCommand(newCollectionAddCmd())
	cmd.AddCommand(newCollectionRemoveCmd())
	cmd.AddCommand(newCollectionListCmd())
	return cmd
}

func newCollectionAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a directory as a collection",
		Args:  cobra.ExactArgs(2),
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
			if err := a.Orchestrator.CollectionAdd(args[0], args[1]); err != nil {
				return err
			}
			out.Successf("registered collection %q at %s", args[0], args[1])
			return nil
		},
	}
}

func newCollectionRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a collection and all its derived state",
		Args:  cobra.ExactArgs(1),
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
			if err := a.Orchestrator.CollectionRemove(args[0]); err != nil {
				return err
			}
			out.Successf("removed collection %q", args[0])
			return nil
		},
	}
}

func newCollectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered collections",
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

			names := make([]string, 0, len(status.Collections))
			for name := range status.Collections {
				names = append(names, name)
			}
			sort.Strings(names)

			out := output.New(cmd.OutOrStdout())
			if len(names) == 0 {
				out.Status("", "no collections registered")
				return nil
			}
			for _, name := range names {
				c := status.Collections[name]
				out.Statusf("", "%s  %s  (%d documents)", name, c.Path, c.DocumentCount)
			}
			return nil
		},
	}
}
