// Package cmd provides the CLI commands for docbert.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cfcosta/docbert/internal/config"
	"github.com/cfcosta/docbert/pkg/version"
)

var (
	cfgPath  string
	dataDir  string
	cliModel string
)

// NewRootCmd creates the root command for the docbert CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docbert",
		Short:   "Local document search: BM25 retrieval with ColBERT reranking",
		Version: version.Version,
	}
	cmd.SetVersionTemplate("docbert version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml (defaults to XDG config location)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory")
	cmd.PersistentFlags().StringVar(&cliModel, "model", "", "override the encoder model ID")

	cmd.AddCommand(newCollectionCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSemanticSearchCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}
