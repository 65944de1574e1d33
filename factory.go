package catalog

import (
	"context"
	"fmt"
)

// NewStore returns a concrete store for the requested driver.
// Caller is responsible for providing any driver-specific dependencies.
// Drivers that fail to initialize return a store that reports the
// construction error on every call.
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := catalog.NewStore(ctx, catalog.StoreConfig{
//		Driver: catalog.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case DriverNull:
		store = newNullStore()
	case DriverFile:
		store = newFileStore(cfg.FileDir, cfg.DefaultTTL)
	case DriverRedis:
		store = newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverSQL:
		store, err = newSQLStore(cfg)
	case DriverNATS:
		store = newNATSStore(cfg.NATSKeyValue, cfg.DefaultTTL, cfg.Prefix, cfg.NATSBucketTTL)
	case DriverDynamo:
		store, err = newDynamoStore(ctx, cfg)
	case DriverMemory:
		store = newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval)
	default:
		err = fmt.Errorf("catalog: unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	return newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
}

// NewStoreWith builds a store using a driver and a set of functional options.
//
// Example: redis store (options)
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := catalog.NewStoreWith(ctx, catalog.DriverRedis,
//		catalog.WithRedisClient(redisClient),
//		catalog.WithPrefix("mobile"),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store.
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewFileStore is a convenience for a filesystem-backed store, the closest
// analogue of on-device storage.
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisStore is a convenience for a redis-backed store. Redis client is required.
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewSQLStore is a convenience for a database/sql-backed store.
func NewSQLStore(ctx context.Context, driverName, dsn, table string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn, table)}, opts...)...)
}

// NewNATSStore is a convenience for a NATS JetStream key-value store.
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store.
func NewDynamoStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverDynamo, opts...)
}

// NewNullStore returns a store that never keeps anything.
func NewNullStore(ctx context.Context) Store {
	return NewStoreWith(ctx, DriverNull)
}
