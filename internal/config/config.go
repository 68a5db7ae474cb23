// Package config loads docbert's configuration: compiled-in defaults,
// overridden by a YAML file, overridden by environment variables. The same
// layering the core itself uses for the model and data directory (explicit >
// env > persisted setting/XDG default) is mirrored here for everything else
// docbert needs at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is docbert's process-wide configuration.
type Config struct {
	// DataDir overrides the resolved data directory (see internal/datadir).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Model    ModelConfig    `yaml:"model" json:"model"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures the Chunker (spec §4.6).
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	Overlap   int `yaml:"overlap" json:"overlap"`
}

// SearchConfig configures default SearchPipeline parameters (spec §4.10).
type SearchConfig struct {
	DefaultCount  int     `yaml:"default_count" json:"default_count"`
	MinScore      float64 `yaml:"min_score" json:"min_score"`
	BM25Only      bool    `yaml:"bm25_only" json:"bm25_only"`
	NoFuzzy       bool    `yaml:"no_fuzzy" json:"no_fuzzy"`
	CandidateCap  int     `yaml:"candidate_cap" json:"candidate_cap"`
	EmbedBatch    int     `yaml:"embed_batch" json:"embed_batch"`
	SemanticBatch int     `yaml:"semantic_batch" json:"semantic_batch"`
}

// ModelConfig configures the ModelFacade (spec §4.5).
type ModelConfig struct {
	// Name is the compiled-in default encoder identifier; overridden by the
	// DOCBERT_MODEL env var and by the persisted model_name setting.
	Name string `yaml:"name" json:"name"`
	// Endpoint is the local encoder sidecar's base URL. ModelFacade treats
	// the encoder as an external collaborator reached over HTTP, not an
	// in-process library.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Command is the argv used to launch the encoder sidecar if it isn't
	// already listening on Endpoint, consumed as a black box per spec §1.
	Command []string `yaml:"command" json:"command"`
	// DocumentTokenCap, when positive, truncates each text sent to
	// encode_documents to DocumentTokenCap*chunk.CharsPerToken characters.
	// It is the only document-length cap; none is read from the sidecar.
	DocumentTokenCap int `yaml:"document_token_cap" json:"document_token_cap"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

const (
	envDataDir = "DOCBERT_DATA_DIR"
	envModel   = "DOCBERT_MODEL"
)

// Default returns docbert's compiled-in defaults. Chunk size/overlap follow
// the character-per-token approximation from the chunking design: 4
// characters per token, a 1024-token document budget.
func Default() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			ChunkSize: 4096,
			Overlap:   0,
		},
		Search: SearchConfig{
			DefaultCount:  10,
			MinScore:      0,
			CandidateCap:  1000,
			EmbedBatch:    32,
			SemanticBatch: 64,
		},
		Model: ModelConfig{
			Name:             "lightonai/ColBERT-Zero",
			Endpoint:         "http://localhost:9913",
			DocumentTokenCap: 512,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads defaults, merges a YAML file at path (if it exists), then
// applies environment variable overrides. path may be empty, in which case
// only defaults and env vars apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigPath returns ~/.config/docbert/config.yaml, honoring
// $XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docbert", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docbert", "config.yaml")
	}
	return filepath.Join(home, ".config", "docbert", "config.yaml")
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(envModel); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("DOCBERT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCBERT_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunking.ChunkSize = n
		}
	}
}

// Validate rejects configurations the core cannot act on.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap)
	}
	if c.Search.CandidateCap <= 0 {
		return fmt.Errorf("search.candidate_cap must be positive, got %d", c.Search.CandidateCap)
	}
	if c.Search.EmbedBatch <= 0 || c.Search.SemanticBatch <= 0 {
		return fmt.Errorf("search.embed_batch and search.semantic_batch must be positive")
	}
	return nil
}
