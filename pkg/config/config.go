/*
Package config loads the engine's typed configuration from an optional
YAML file plus environment overrides, the way cmd/warren layers
cobra flags over config file defaults. There is no config file requirement
here — Default() supplies a workable value for every setting — but a file gives
operators a single place to pin database/storage/embedding settings
without assembling a long flag list.
*/
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig points at the durable tier and the local cache file.
type DatabaseConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	CachePath string `yaml:"cache_path"`
}

// StorageConfig controls cache capacity and the quality gate.
type StorageConfig struct {
	MaxEpisodesCache int     `yaml:"max_episodes_cache"`
	CacheTTLSeconds  int     `yaml:"cache_ttl_seconds"`
	PoolSize         int     `yaml:"pool_size"`
	QualityThreshold float64 `yaml:"quality_threshold"`
}

// EmbeddingsConfig controls the embedding provider.
type EmbeddingsConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Provider           string  `yaml:"provider"`
	Model              string  `yaml:"model"`
	Dimension          int     `yaml:"dimension"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	BatchSize          int     `yaml:"batch_size"`
	CacheEmbeddings    bool    `yaml:"cache_embeddings"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
}

// CLIConfig controls the cmd/memoryctl front-end's defaults.
type CLIConfig struct {
	DefaultFormat string `yaml:"default_format"`
	ProgressBars  bool   `yaml:"progress_bars"`
	BatchSize     int    `yaml:"batch_size"`
}

// Config is the full typed configuration tree.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	CLI        CLIConfig        `yaml:"cli"`
}

// Default returns a Config with workable defaults for local/test use.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			URL:       "file:./data/memory.db",
			CachePath: "./data/cache/memory.redb",
		},
		Storage: StorageConfig{
			MaxEpisodesCache: 5000,
			CacheTTLSeconds:  120,
			PoolSize:         10,
			QualityThreshold: 0.7,
		},
		Embeddings: EmbeddingsConfig{
			Enabled:        false,
			Provider:       "local",
			Dimension:      384,
			BatchSize:      32,
			TimeoutSeconds: 10,
		},
		CLI: CLIConfig{
			DefaultFormat: "table",
			ProgressBars:  true,
			BatchSize:     20,
		},
	}
}

// Load reads cfg from path (if non-empty and present) over Default(),
// then applies the environment overrides named in the configuration
// contract: MEMORY_DATA_DIR, MEMORY_CACHE_DIR, REDB_PATH,
// LOCAL_DATABASE_URL, TURSO_URL, TURSO_TOKEN, plus
// MEMORY_QUALITY_THRESHOLD (ignored when it does not parse as a float).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMORY_DATA_DIR"); v != "" {
		cfg.Database.URL = "file:" + v + "/memory.db"
	}
	if v := os.Getenv("MEMORY_CACHE_DIR"); v != "" {
		cfg.Database.CachePath = v + "/memory.redb"
	}
	if v := os.Getenv("REDB_PATH"); v != "" {
		cfg.Database.CachePath = v
	}
	if v := os.Getenv("LOCAL_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("TURSO_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("TURSO_TOKEN"); v != "" {
		cfg.Database.Token = v
	}
	if v := os.Getenv("MEMORY_QUALITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Storage.QualityThreshold = f
		}
	}
}
