package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goforj/catalog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWhenDefaultPathMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envTMDBToken, "")

	cfg, err := loadConfig(&globalFlags{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != string(catalog.DriverFile) {
		t.Fatalf("expected file driver by default, got %q", cfg.Store.Driver)
	}
	if cfg.Trending.StorageKey != catalog.DefaultStorageKey || cfg.Trending.Endpoint != catalog.DefaultEndpointURL {
		t.Fatalf("unexpected trending defaults: %+v", cfg.Trending)
	}
}

func TestLoadConfigFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: redis
  redis_addr: 127.0.0.1:6379
  default_ttl: 90s
  compression: gzip
trending:
  endpoint: http://trending.test/list
  fetch_timeout: 3s
tmdb:
  token: from-file
`)
	t.Setenv(envTMDBToken, "from-env")

	cfg, err := loadConfig(&globalFlags{configPath: path, driver: "memory"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Fatalf("expected flag to override driver, got %q", cfg.Store.Driver)
	}
	if cfg.Store.DefaultTTL != 90*time.Second || cfg.Trending.FetchTimeout != 3*time.Second {
		t.Fatalf("unexpected durations: ttl=%s timeout=%s", cfg.Store.DefaultTTL, cfg.Trending.FetchTimeout)
	}
	if cfg.Store.Compression != "gzip" || cfg.Store.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Trending.Endpoint != "http://trending.test/list" {
		t.Fatalf("unexpected endpoint %q", cfg.Trending.Endpoint)
	}
	if cfg.Trending.StorageKey != catalog.DefaultStorageKey {
		t.Fatalf("expected default storage key to survive partial file, got %q", cfg.Trending.StorageKey)
	}
	if cfg.TMDB.Token != "from-env" {
		t.Fatalf("expected env token to win, got %q", cfg.TMDB.Token)
	}
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	_, err := loadConfig(&globalFlags{configPath: filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "store: [unterminated")
	if _, err := loadConfig(&globalFlags{configPath: path}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpenStoreRedisRequiresAddr(t *testing.T) {
	_, closeFn, err := openStore(context.Background(), storeConfig{Driver: "redis"}, newLogger(os.Stderr, false))
	defer closeFn()
	if err == nil {
		t.Fatalf("expected error without redis_addr")
	}
}
