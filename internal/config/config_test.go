package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parse(lookupFrom(map[string]string{
		"WEALTH_DB_PATH":     "/tmp/w.db",
		"LOG_LEVEL":          "debug",
		"PRICE_API_URL":      "http://127.0.0.1:9999",
		"PRICE_TIMEOUT":      "750ms",
		"PRICE_RATE_PER_SEC": "0.5",
		"GCS_BUCKET":         "backups",
		"BQ_PROJECT":         "proj",
		"BQ_DATASET":         "",
		"REFRESH_INTERVAL":   "1h",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/w.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.PriceAPIURL)
	assert.Equal(t, 750*time.Millisecond, cfg.PriceTimeout)
	assert.Equal(t, 0.5, cfg.PriceRatePerSec)
	assert.Equal(t, "backups", cfg.GCSBucket)
	assert.Equal(t, "proj", cfg.BQProject)
	assert.Equal(t, "wealth", cfg.BQDataset, "empty values keep the default")
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"PRICE_TIMEOUT":      "soon",
		"REFRESH_INTERVAL":   "-5m",
		"PRICE_RATE_PER_SEC": "0",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := parse(lookupFrom(map[string]string{key: val}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BQ_PROJECT=from-file\nGCS_BUCKET=file-bucket\n"), 0o600))
	t.Setenv("GCS_BUCKET", "env-bucket")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.BQProject)
	assert.Equal(t, "env-bucket", cfg.GCSBucket, "process environment wins")
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DBPath)
}
