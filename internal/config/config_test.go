package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 800, cfg.MaxSegmentLength)
	assert.InDelta(t, 0.55, cfg.SimilarityThreshold, 1e-12)
	assert.Equal(t, 5, cfg.TopK)
	assert.True(t, cfg.PreserveParagraphs)
	assert.Equal(t, "mock", cfg.EmbedProviders)
	assert.Equal(t, 0, cfg.EmbedCacheSize)
	assert.Zero(t, cfg.EmbedRPS)
	assert.Equal(t, IndexPGVector, cfg.VectorIndex)
	assert.Equal(t, 6334, cfg.QdrantPort)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ECHOGRAPH_STORE", "SQLite")
	t.Setenv("ECHOGRAPH_SIMILARITY_THRESHOLD", "0.7")
	t.Setenv("ECHOGRAPH_TOP_K", "3")
	t.Setenv("ECHOGRAPH_PRESERVE_PARAGRAPHS", "false")
	t.Setenv("ECHOGRAPH_VECTOR_INDEX", "qdrant")
	t.Setenv("ECHOGRAPH_EMBED_RPS", "2.5")

	cfg := Load()
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.InDelta(t, 0.7, cfg.SimilarityThreshold, 1e-12)
	assert.Equal(t, 3, cfg.TopK)
	assert.False(t, cfg.PreserveParagraphs)
	assert.Equal(t, IndexQdrant, cfg.VectorIndex)
	assert.InDelta(t, 2.5, cfg.EmbedRPS, 1e-12)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ECHOGRAPH_TOP_K", "five")
	t.Setenv("ECHOGRAPH_SIMILARITY_THRESHOLD", "high")
	t.Setenv("ECHOGRAPH_PRESERVE_PARAGRAPHS", "maybe")

	cfg := Load()
	assert.Equal(t, 5, cfg.TopK)
	assert.InDelta(t, 0.55, cfg.SimilarityThreshold, 1e-12)
	assert.True(t, cfg.PreserveParagraphs)
}

func TestLoadFileLayersUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echograph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: SQLite
sqlite_path: /tmp/eg.db
top_k: 9
vector_index: memory
embed_providers: "openai:team|mock"
`), 0o644))
	t.Setenv("ECHOGRAPH_TOP_K", "2")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/eg.db", cfg.SQLitePath)
	assert.Equal(t, 2, cfg.TopK)
	assert.Equal(t, IndexMemory, cfg.VectorIndex)
	assert.Equal(t, "openai:team|mock", cfg.EmbedProviders)
	assert.Equal(t, 800, cfg.MaxSegmentLength)
}

func TestLoadFileMissingOrEmptyPath(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Load(), cfg)

	cfg, err = LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Load(), cfg)
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_k: [1, 2"), 0o644))
	_, err := LoadFile(path)
	require.ErrorContains(t, err, "parse config")
}
