package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goforj/catalog"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// openStore builds the snapshot store for cfg. The returned close func
// releases any client connections opened here.
func openStore(ctx context.Context, cfg storeConfig, logger *slog.Logger) (catalog.Store, func(), error) {
	sc := catalog.StoreConfig{
		Driver:         catalog.Driver(cfg.Driver),
		FileDir:        cfg.FileDir,
		SQLDriverName:  cfg.SQLDriver,
		SQLDSN:         cfg.SQLDSN,
		SQLTable:       cfg.SQLTable,
		DynamoEndpoint: cfg.DynamoEndpoint,
		DynamoRegion:   cfg.DynamoRegion,
		DynamoTable:    cfg.DynamoTable,
	}
	sc.Prefix = cfg.Prefix
	sc.DefaultTTL = cfg.DefaultTTL
	sc.Compression = catalog.CompressionCodec(cfg.Compression)
	sc.MaxValueBytes = cfg.MaxValueBytes

	closeFn := func() {}
	switch sc.Driver {
	case catalog.DriverRedis:
		if cfg.RedisAddr == "" {
			return nil, closeFn, errors.New("store.redis_addr is required for the redis driver")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		sc.RedisClient = client
		closeFn = func() { _ = client.Close() }
	case catalog.DriverNATS:
		kv, nc, err := openNATSKeyValue(cfg)
		if err != nil {
			return nil, closeFn, err
		}
		sc.NATSKeyValue = kv
		closeFn = func() { _ = nc.Drain() }
	}

	logger.Debug("opening snapshot store", "driver", sc.Driver)
	return catalog.NewStore(ctx, sc), closeFn, nil
}

func openNATSKeyValue(cfg storeConfig) (nats.KeyValue, *nats.Conn, error) {
	url := cfg.NATSURL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("catalog"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.KeyValue(cfg.NATSBucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.NATSBucket})
	}
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("key-value bucket %q: %w", cfg.NATSBucket, err)
	}
	return kv, nc, nil
}
