package catalog

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/catalog/catalogcore"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultStorageKey is the key the trending snapshot is persisted under.
	DefaultStorageKey = "trendingMovies"

	// DefaultEndpointURL is the trending endpoint used when none is configured.
	DefaultEndpointURL = "http://localhost:3000/api/trendingMovieData"
)

const (
	defaultStorePrefix   = "catalog"
	defaultFetchTimeout  = 15 * time.Second
	defaultMemoryCleanup = 10 * time.Minute
	defaultSQLTable      = "catalog_snapshots"
	defaultDynamoTable   = "catalog_snapshots"
	defaultDynamoRegion  = "us-east-1"
	defaultTracerName    = "github.com/goforj/catalog"
	maxResponseBodyBytes = 8 << 20
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "catalog-store")
}

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	catalogcore.BaseConfig

	Driver Driver

	// MemoryCleanupInterval controls in-process eviction of expired entries.
	MemoryCleanupInterval time.Duration

	// FileDir controls where the file driver keeps entries.
	FileDir string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// SQLDriverName is one of sqlite, mysql, pgx, postgres.
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue
	// NATSBucketTTL stores raw values and relies on bucket-level expiry.
	NATSBucketTTL bool

	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL < 0 {
		c.DefaultTTL = 0
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanup
	}
	if c.Prefix == "" {
		c.Prefix = defaultStorePrefix
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.Compression == "" {
		c.Compression = catalogcore.CompressionNone
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	return c
}

// TrendingConfig configures a Trending cache.
type TrendingConfig struct {
	// StorageKey is the snapshot key. Defaults to DefaultStorageKey.
	StorageKey string

	// EndpointURL is fetched by the default HTTP source. Defaults to DefaultEndpointURL.
	EndpointURL string

	// Source overrides the HTTP source built from EndpointURL.
	Source TrendingSource

	// HTTPClient is used by the default HTTP source. Defaults to a client
	// with FetchTimeout as its timeout.
	HTTPClient *http.Client

	// SnapshotTTL bounds how long a persisted snapshot stays readable.
	// Zero keeps it until the next successful refresh overwrites it.
	SnapshotTTL time.Duration

	// FetchTimeout bounds one network refresh including persistence.
	FetchTimeout time.Duration

	// Logger receives diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Observer receives per-phase events.
	Observer Observer

	// TracerProvider creates the tracer for load spans. If nil, the global
	// provider is used.
	TracerProvider trace.TracerProvider
}

func (c TrendingConfig) withDefaults() TrendingConfig {
	if c.StorageKey == "" {
		c.StorageKey = DefaultStorageKey
	}
	if c.EndpointURL == "" {
		c.EndpointURL = DefaultEndpointURL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.SnapshotTTL < 0 {
		c.SnapshotTTL = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.FetchTimeout}
	}
	return c
}
