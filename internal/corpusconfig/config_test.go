package corpusconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corpusd/fuzzcorpus/internal/corpusconfig"
)

func TestLoadDefaultsWhenNoFilesPresent(t *testing.T) {
	dir := t.TempDir()

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride: dir,
		Env:             map[string]string{},
	})
	require.NoError(t, err)
	require.Equal(t, "corpus", cfg.InputDir)
	require.Equal(t, filepath.Join(dir, "corpus"), cfg.InputDirAbs)
	require.Empty(t, cfg.Sources.Global)
	require.Empty(t, cfg.Sources.Project)
}

func TestLoadProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, corpusconfig.ConfigFileName)

	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		// project-local corpus layout
		"input_dir": "seeds",
		"max_file_size": 4096,
	}`), 0o644))

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride: dir,
		Env:             map[string]string{},
	})
	require.NoError(t, err)
	require.Equal(t, "seeds", cfg.InputDir)
	require.Equal(t, 4096, cfg.MaxFileSize)
	require.Equal(t, cfgPath, cfg.Sources.Project)
}

func TestLoadCLIOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, corpusconfig.ConfigFileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"input_dir": "seeds"}`), 0o644))

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride:  dir,
		Env:              map[string]string{},
		InputDirOverride: "cli-seeds",
	})
	require.NoError(t, err)
	require.Equal(t, "cli-seeds", cfg.InputDir)
}

func TestLoadExplicitEmptyInputDirIsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, corpusconfig.ConfigFileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"input_dir": ""}`), 0o644))

	_, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride: dir,
		Env:             map[string]string{},
	})
	require.ErrorIs(t, err, corpusconfig.ErrInputDirEmpty)
}

func TestLoadMinimizeAndWritebackOverrides(t *testing.T) {
	dir := t.TempDir()

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride:   dir,
		Env:               map[string]string{},
		MinimizeOverride:  true,
		WritebackOverride: true,
	})
	require.NoError(t, err)
	require.True(t, cfg.Minimize)
	require.True(t, cfg.Writeback)
}

func TestLoadMinimizeAndWritebackDefaultToFalse(t *testing.T) {
	dir := t.TempDir()

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride: dir,
		Env:             map[string]string{},
	})
	require.NoError(t, err)
	require.False(t, cfg.Minimize)
	require.False(t, cfg.Writeback)
}

func TestLoadProjectConfigSetsMinimizeAndWriteback(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, corpusconfig.ConfigFileName)

	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"minimize": true, "writeback": true}`), 0o644))

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride: dir,
		Env:             map[string]string{},
	})
	require.NoError(t, err)
	require.True(t, cfg.Minimize)
	require.True(t, cfg.Writeback)
}

func TestLoadMissingExplicitConfigPathFails(t *testing.T) {
	dir := t.TempDir()

	_, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride: dir,
		Env:             map[string]string{},
		ConfigPath:      "does-not-exist.json",
	})
	require.ErrorIs(t, err, corpusconfig.ErrConfigFileNotFound)
}

func TestSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.json")

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride:  dir,
		Env:              map[string]string{},
		InputDirOverride: "my-corpus",
	})
	require.NoError(t, err)

	require.NoError(t, corpusconfig.Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"input_dir": "my-corpus"`)
}
