// Package app bootstraps docbert's three durable stores, ModelFacade, and
// Orchestrator from a resolved configuration, for reuse across the CLI and
// the MCP server.
package app

import (
	"fmt"
	"log/slog"

	"github.com/cfcosta/docbert/internal/config"
	"github.com/cfcosta/docbert/internal/datadir"
	"github.com/cfcosta/docbert/internal/fulltext"
	"github.com/cfcosta/docbert/internal/logging"
	"github.com/cfcosta/docbert/internal/model"
	"github.com/cfcosta/docbert/internal/orchestrator"
	"github.com/cfcosta/docbert/internal/store"
)

// App holds every long-lived resource the CLI/MCP surfaces share, plus the
// Orchestrator built over them.
type App struct {
	Config       *config.Config
	Metadata     *store.BoltMetadataStore
	Embeddings   *store.BoltEmbeddingStore
	FullText     *fulltext.Index
	Model        *model.Facade
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger

	logCleanup func()
}

// Open resolves the data directory, opens all three stores, resolves the
// active model ID, and wires an Orchestrator over them.
func Open(cfg *config.Config, cliModel string) (*App, error) {
	dataDir := datadir.Resolve(cfg.DataDir)
	if err := datadir.Ensure(dataDir); err != nil {
		return nil, fmt.Errorf("preparing data directory %s: %w", dataDir, err)
	}
	paths := datadir.Layout(dataDir)

	logCfg := logging.DefaultConfig(dataDir)
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}

	metadata, err := store.OpenMetadataStore(paths.MetadataDB)
	if err != nil {
		logCleanup()
		return nil, err
	}

	embeddings, err := store.OpenEmbeddingStore(paths.EmbeddingDB)
	if err != nil {
		_ = metadata.Close()
		logCleanup()
		return nil, err
	}

	ft, err := fulltext.Open(paths.FullTextDir)
	if err != nil {
		_ = metadata.Close()
		_ = embeddings.Close()
		logCleanup()
		return nil, err
	}

	resolution, err := model.ResolveModelID(metadata, cliModel)
	if err != nil {
		_ = metadata.Close()
		_ = embeddings.Close()
		_ = ft.Close()
		logCleanup()
		return nil, err
	}

	logger.Info("opened docbert data directory", slog.String("path", dataDir), slog.String("model", resolution.ModelID))

	mf := model.NewFacade(cfg.Model.Endpoint, resolution.ModelID, dataDir,
		model.WithCommand(cfg.Model.Command),
		model.WithDocumentTokenCap(cfg.Model.DocumentTokenCap),
	)
	orch := orchestrator.New(ft, embeddings, metadata, mf, cfg.Chunking.ChunkSize, cfg.Chunking.Overlap, cfg.Search.EmbedBatch, cfg.Search.CandidateCap, cfg.Search.SemanticBatch)

	return &App{
		Config:       cfg,
		Metadata:     metadata,
		Embeddings:   embeddings,
		FullText:     ft,
		Model:        mf,
		Orchestrator: orch,
		Logger:       logger,
		logCleanup:   logCleanup,
	}, nil
}

// Close releases every resource opened by Open, in reverse order.
func (a *App) Close() error {
	var errs []error
	if err := a.Model.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.FullText.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Embeddings.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Metadata.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing app resources: %v", errs)
	}
	return nil
}
