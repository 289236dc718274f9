package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) error {
	t.Helper()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var f runFlags
	f.register(fs)
	_, err := loadConfig(fs, &f, args)
	return err
}

func TestLoadConfig_FlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_size: 10\nsinks: [stdout]\n"), 0o644))

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var f runFlags
	f.register(fs)
	cfg, err := loadConfig(fs, &f, []string{"-config", path, "-in", "feed.txt", "-prune", "-only-changes", "200"})
	require.NoError(t, err)

	assert.Equal(t, int64(200), cfg.TargetSize)
	assert.Equal(t, "file", cfg.Source.Type, "-in implies the file source")
	assert.Equal(t, "feed.txt", cfg.Source.Path)
	assert.True(t, cfg.Engine.PruneEmptyLevels)
	assert.False(t, cfg.Engine.EvictFilledOrders)
	assert.True(t, cfg.OnlyChanges)
}

func TestLoadConfig_Errors(t *testing.T) {
	assert.Error(t, parse(t), "missing target size")
	assert.Error(t, parse(t, "abc"))
	assert.Error(t, parse(t, "0"))
	assert.Error(t, parse(t, "10", "20"))
	assert.Error(t, parse(t, "-sinks", "fax", "10"))
	assert.NoError(t, parse(t, "-source", "stdin", "10"))
}
