// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the binaries.
type Config struct {
	DBPath   string
	LogLevel string

	PriceAPIURL     string
	PriceTimeout    time.Duration
	PriceRatePerSec float64

	GCSBucket string
	BQProject string
	BQDataset string

	RefreshInterval time.Duration
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DBPath:          "wealth.db",
		LogLevel:        "info",
		PriceAPIURL:     "https://query1.finance.yahoo.com",
		PriceTimeout:    5 * time.Second,
		PriceRatePerSec: 4,
		BQDataset:       "wealth",
		RefreshInterval: 15 * time.Minute,
	}
}

// Load reads the given env files (".env" when none are named) and then the
// process environment. Process variables win over file values, and missing
// files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	fileVals := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := fileVals[k]; !ok {
				fileVals[k] = v
			}
		}
	}

	return parse(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	})
}

func parse(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("WEALTH_DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("PRICE_API_URL", &cfg.PriceAPIURL)
	str("GCS_BUCKET", &cfg.GCSBucket)
	str("BQ_PROJECT", &cfg.BQProject)
	str("BQ_DATASET", &cfg.BQDataset)

	for key, dst := range map[string]*time.Duration{
		"PRICE_TIMEOUT":    &cfg.PriceTimeout,
		"REFRESH_INTERVAL": &cfg.RefreshInterval,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("Load: %s: %w", key, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("Load: %s must be positive, got %s", key, v)
		}
		*dst = d
	}

	if v, ok := lookup("PRICE_RATE_PER_SEC"); ok && v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("Load: PRICE_RATE_PER_SEC: %w", err)
		}
		if rate <= 0 {
			return nil, fmt.Errorf("Load: PRICE_RATE_PER_SEC must be positive, got %s", v)
		}
		cfg.PriceRatePerSec = rate
	}

	return &cfg, nil
}
