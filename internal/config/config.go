// Package config provides run configuration for cardsync. Everything is an
// explicit value handed to component constructors; no component reads
// ambient process state on its own.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds one run's configuration.
type Config struct {
	// Source
	Dataset        string  `yaml:"dataset"`
	SourceEndpoint string  `yaml:"sourceEndpoint"`
	FetchTimeout   int     `yaml:"fetchTimeoutSecs"`
	RateLimit      float64 `yaml:"rateLimit"`

	// Versioning
	Granularity string `yaml:"granularity"` // "date" | "hour"

	// Object storage
	StoreEndpoint  string `yaml:"storeEndpoint"`
	StoreRegion    string `yaml:"storeRegion"`
	StoreAccessKey string `yaml:"storeAccessKey"`
	StoreSecretKey string `yaml:"storeSecretKey"`
	StoreBucket    string `yaml:"storeBucket"`
	ScratchDir     string `yaml:"scratchDir"`
	LakeEnabled    bool   `yaml:"lakeEnabled"`
	LakePrefix     string `yaml:"lakePrefix"`

	// Normalization
	Currency    string `yaml:"currency"`
	ParsePolicy string `yaml:"parsePolicy"` // "lenient" | "strict"

	// Warehouse
	WarehouseDSN string `yaml:"warehouseDSN"`
	Table        string `yaml:"table"`
	ChunkSize    int    `yaml:"chunkSize"`

	// Run mode
	SampleOnly bool   `yaml:"sampleOnly"`
	SamplePath string `yaml:"samplePath"`

	// Downstream build
	BuildCommand     string   `yaml:"buildCommand"`
	BuildArgs        []string `yaml:"buildArgs"`
	BuildDir         string   `yaml:"buildDir"`
	BuildTimeoutSecs int      `yaml:"buildTimeoutSecs"`
}

// Load reads configuration from the environment with defaults.
func Load() *Config {
	return &Config{
		Dataset:        getEnv("CARDSYNC_DATASET", "oracle_cards"),
		SourceEndpoint: getEnv("CARDSYNC_SOURCE_ENDPOINT", "https://api.scryfall.com/bulk-data/oracle-cards"),
		FetchTimeout:   getEnvInt("CARDSYNC_FETCH_TIMEOUT_SECS", 30),
		RateLimit:      getEnvFloat("CARDSYNC_RATE_LIMIT", 10.0),

		Granularity: getEnv("CARDSYNC_GRANULARITY", "date"),

		StoreEndpoint:  getEnv("CARDSYNC_STORE_ENDPOINT", "http://localhost:9000"),
		StoreRegion:    getEnv("CARDSYNC_STORE_REGION", ""),
		StoreAccessKey: getEnv("CARDSYNC_STORE_ACCESS_KEY", ""),
		StoreSecretKey: getEnv("CARDSYNC_STORE_SECRET_KEY", ""),
		StoreBucket:    getEnv("CARDSYNC_STORE_BUCKET", "cardsync-staging"),
		ScratchDir:     getEnv("CARDSYNC_SCRATCH_DIR", ""),
		LakeEnabled:    getEnvBool("CARDSYNC_LAKE_ENABLED", false),
		LakePrefix:     getEnv("CARDSYNC_LAKE_PREFIX", "lake"),

		Currency:    getEnv("CARDSYNC_CURRENCY", "eur"),
		ParsePolicy: getEnv("CARDSYNC_PARSE_POLICY", "lenient"),

		WarehouseDSN: getEnv("CARDSYNC_WAREHOUSE_DSN", ""),
		Table:        getEnv("CARDSYNC_TABLE", "mtg_card_data.default_cards"),
		ChunkSize:    getEnvInt("CARDSYNC_CHUNK_SIZE", 10000),

		SampleOnly: getEnvBool("CARDSYNC_SAMPLE_ONLY", false),
		SamplePath: getEnv("CARDSYNC_SAMPLE_PATH", "pq/sample_for_warehouse.parquet"),

		BuildCommand:     getEnv("CARDSYNC_BUILD_COMMAND", ""),
		BuildDir:         getEnv("CARDSYNC_BUILD_DIR", ""),
		BuildTimeoutSecs: getEnvInt("CARDSYNC_BUILD_TIMEOUT_SECS", 1800),
	}
}

// ApplyFile overlays YAML settings from path on top of the receiver.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// BuildTimeout returns the downstream build bound as a duration.
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.BuildTimeoutSecs) * time.Second
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
