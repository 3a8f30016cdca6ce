package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every ECFR_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvDataDir, EnvPatternDir, EnvPatternSet, EnvWorkers,
		EnvMetricsCacheSize, EnvListenAddr, EnvLogLevel, EnvLogFormat,
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, filepath.Join("data", "raw"), cfg.RawDir())
	assert.Equal(t, filepath.Join("data", "processed"), cfg.ProcessedDir())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "ecfr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/ecfr
pattern_dir: patterns
workers: 8
log_format: json
`), 0644))
	t.Setenv(EnvWorkers, "16")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/ecfr", cfg.DataDir)
	assert.Equal(t, "patterns", cfg.PatternDir)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "ecfr-default", cfg.PatternSet)
	assert.Equal(t, filepath.Join("/srv/ecfr", "processed"), cfg.ProcessedDir())
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvListenAddr)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ECFR_LISTEN_ADDR=127.0.0.1:9000\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non-numeric workers", EnvWorkers, "many"},
		{"zero workers", EnvWorkers, "0"},
		{"too many workers", EnvWorkers, "65"},
		{"negative cache", EnvMetricsCacheSize, "-1"},
		{"bad log level", EnvLogLevel, "verbose"},
		{"bad log format", EnvLogFormat, "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingOrBrokenFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("workers: [1, 2"), 0644))
	_, err = Load(broken)
	assert.Error(t, err)
}
