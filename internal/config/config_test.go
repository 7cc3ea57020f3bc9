package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadHostAppliesDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \"0.0.0.0:9999\"\n"), 0o644))

	cfg, err := LoadHost(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9999", cfg.ListenAddr)
	require.Equal(t, 64, cfg.MaxConnections)
	require.Equal(t, 50*time.Millisecond, cfg.TickDuration)
	require.Equal(t, uint32(1024), cfg.BlobChunkSize)
}

func TestLoadHostPreservesExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_connections: 4\nblob_chunk_size: 512\n"), 0o644))

	cfg, err := LoadHost(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.MaxConnections)
	require.Equal(t, uint32(512), cfg.BlobChunkSize)
}

func TestLoadHostMissingFileIsAnError(t *testing.T) {
	_, err := LoadHost(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadClientAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host_addr: \"127.0.0.1:27050\"\n"), 0o644))

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:27050", cfg.HostAddr)
	require.Equal(t, 50*time.Millisecond, cfg.TickDuration)
}
