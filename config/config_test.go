package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvc/sigil/conflict"
	"github.com/sigilvc/sigil/config"
)

func TestDecodeRoundTrips(t *testing.T) {
	const src = `
[core]
objectsDir = "objects"
sparse = "src"
cacheMaxCost = 1000000

[user]
name = "Ada Lovelace"
email = "ada@example.com"

[merge]
conflictStyle = "diff3"

[gc]
maxAge = "72h"
`
	var cfg config.Config
	_, err := toml.Decode(src, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "objects", cfg.Core.ObjectsDir)
	assert.Equal(t, config.StringArray{"src"}, cfg.Core.SparseDirs)
	assert.Equal(t, "Ada Lovelace", cfg.User.Name)
	assert.False(t, cfg.User.Empty())

	style, err := cfg.Merge.Style()
	require.NoError(t, err)
	assert.Equal(t, conflict.StyleDiff3, style)

	assert.Equal(t, "72h0m0s", cfg.Gc.MaxAge().Duration.String())
}

func TestMergeStyleDefaultsToDiff(t *testing.T) {
	var m config.Merge
	style, err := m.Style()
	require.NoError(t, err)
	assert.Equal(t, conflict.StyleDiff, style)
}

func TestMergeStyleRejectsUnknownName(t *testing.T) {
	m := config.Merge{ConflictStyle: "bogus"}
	_, err := m.Style()
	assert.Error(t, err)
}

func TestGcMaxAgeDefaultsWhenUnset(t *testing.T) {
	var g config.Gc
	assert.Equal(t, 14*24, int(g.MaxAge().Duration.Hours()))
}

func TestCoreOverwritePrefersMoreSpecific(t *testing.T) {
	base := config.Core{ObjectsDir: "base-objects", CacheMaxCost: 10}
	override := config.Core{ObjectsDir: "repo-objects"}
	base.Overwrite(&override)
	assert.Equal(t, "repo-objects", base.ObjectsDir)
	assert.Equal(t, int64(10), base.CacheMaxCost, "unset override field keeps the base value")
}

func TestLoadFallsBackToZeroConfigWhenNoFilesExist(t *testing.T) {
	t.Setenv(config.EnvConfigSystem, filepath.Join(t.TempDir(), "nonexistent.toml"))
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.True(t, cfg.User.Empty())
}

func TestLoadLayersRepoConfigOverGlobal(t *testing.T) {
	t.Setenv(config.EnvConfigSystem, filepath.Join(t.TempDir(), "nonexistent.toml"))
	t.Setenv("HOME", t.TempDir())

	repoDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "sigil.toml"), []byte(`
[user]
name = "Repo User"
email = "repo@example.com"
`), 0644))

	cfg, err := config.Load(repoDir)
	require.NoError(t, err)
	assert.Equal(t, "Repo User", cfg.User.Name)
}
