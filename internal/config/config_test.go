package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoFile_ReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Chunking.ChunkSize)
}

func TestLoad_MergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking:\n  chunk_size: 2048\n  overlap: 128\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Chunking.ChunkSize)
	assert.Equal(t, 128, cfg.Chunking.Overlap)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: file-model\n"), 0o644))

	t.Setenv("DOCBERT_MODEL", "env-model")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Model.Name)
}

func TestValidate_RejectsBadChunking(t *testing.T) {
	cfg := Default()
	cfg.Chunking.ChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Chunking.Overlap = cfg.Chunking.ChunkSize
	assert.Error(t, cfg.Validate())
}

func TestDefaultConfigPath_HonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, "/xdg/docbert/config.yaml", DefaultConfigPath())
}
