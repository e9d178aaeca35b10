package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "database.snapshot", cfg.Persistence.SnapshotFile)
	assert.Equal(t, "commands.aof", cfg.Persistence.AOFFile)
	assert.Equal(t, 5, cfg.Persistence.AutoSaveInterval)
	assert.Equal(t, "gzip", cfg.Persistence.SnapshotCompression)
	assert.True(t, cfg.Database.AutoEmbeddingEnabled)
	assert.Equal(t, "all-minilm:22m", cfg.RAG.EmbeddingModel)
	assert.Equal(t, 0.85, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, 10, cfg.RAG.SearchDefaultTopK)
	assert.Equal(t, 10000, cfg.Cache.MaxSize)
	assert.Equal(t, "Welcome to MUMPS-like Database Server", cfg.Client.WelcomeMessage)

	require.NoError(t, cfg.Validate())
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mumpsdb.conf")
	content := `server.port: 7070
persistence.snapshot.file: /tmp/db.snapshot
persistence.auto.save.interval: 2
persistence.snapshot.compression: zstd
database.auto.embedding.enabled: false
rag.search.default.topk: 7
cache.max.size: 500
some.unknown.key: ignored
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	cfg, err := LoadFile(file)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/db.snapshot", cfg.Persistence.SnapshotFile)
	assert.Equal(t, 2, cfg.Persistence.AutoSaveInterval)
	assert.Equal(t, "zstd", cfg.Persistence.SnapshotCompression)
	assert.False(t, cfg.Database.AutoEmbeddingEnabled)
	assert.Equal(t, 7, cfg.RAG.SearchDefaultTopK)
	assert.Equal(t, 500, cfg.Cache.MaxSize)

	require.NoError(t, cfg.Validate())
}

func TestLoadFileRejectsMalformedValues(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.conf")
	require.NoError(t, os.WriteFile(file, []byte("server.port: not-a-number\n"), 0o644))

	_, err := LoadFile(file)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Persistence.SnapshotCompression = "rar"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Cache.MaxSize = 0
	assert.Error(t, cfg.Validate())
}

func TestAddressHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:9090", cfg.ListenAddr())
	assert.Equal(t, "http://localhost:11434", cfg.EmbeddingURL())
}
