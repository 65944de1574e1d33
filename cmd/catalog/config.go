package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/catalog"
	"gopkg.in/yaml.v3"
)

const envTMDBToken = "CATALOG_TMDB_TOKEN"

// fileConfig is the on-disk configuration.
type fileConfig struct {
	Store    storeConfig    `yaml:"store"`
	Trending trendingConfig `yaml:"trending"`
	TMDB     tmdbConfig     `yaml:"tmdb"`
}

type storeConfig struct {
	Driver        string        `yaml:"driver"`
	Prefix        string        `yaml:"prefix"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	Compression   string        `yaml:"compression"`
	MaxValueBytes int           `yaml:"max_value_bytes"`

	FileDir string `yaml:"file_dir"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	SQLDriver string `yaml:"sql_driver"`
	SQLDSN    string `yaml:"sql_dsn"`
	SQLTable  string `yaml:"sql_table"`

	NATSURL    string `yaml:"nats_url"`
	NATSBucket string `yaml:"nats_bucket"`

	DynamoEndpoint string `yaml:"dynamo_endpoint"`
	DynamoRegion   string `yaml:"dynamo_region"`
	DynamoTable    string `yaml:"dynamo_table"`
}

type trendingConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	StorageKey   string        `yaml:"storage_key"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	SnapshotTTL  time.Duration `yaml:"snapshot_ttl"`
}

type tmdbConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Store: storeConfig{
			Driver:     string(catalog.DriverFile),
			NATSBucket: "catalog",
		},
		Trending: trendingConfig{
			Endpoint:   catalog.DefaultEndpointURL,
			StorageKey: catalog.DefaultStorageKey,
		},
		TMDB: tmdbConfig{BaseURL: catalog.DefaultTMDBBaseURL},
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "catalog", "config.yaml")
}

// loadConfig layers defaults, the config file, the environment and flags.
// A missing file at the default path is not an error; a missing file
// named explicitly is.
func loadConfig(flags *globalFlags) (fileConfig, error) {
	cfg := defaultFileConfig()

	path := flags.configPath
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if token := os.Getenv(envTMDBToken); token != "" {
		cfg.TMDB.Token = token
	}
	if flags.driver != "" {
		cfg.Store.Driver = flags.driver
	}
	if flags.fileDir != "" {
		cfg.Store.FileDir = flags.fileDir
	}
	return cfg, nil
}
