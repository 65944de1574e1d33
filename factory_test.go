package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewStoreSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  StoreConfig
		want Driver
	}{
		{"default", StoreConfig{}, DriverMemory},
		{"null", StoreConfig{Driver: DriverNull}, DriverNull},
		{"file", StoreConfig{Driver: DriverFile, FileDir: t.TempDir()}, DriverFile},
		{"redis", StoreConfig{Driver: DriverRedis, RedisClient: newStubRedisClient()}, DriverRedis},
		{"nats", StoreConfig{Driver: DriverNATS, NATSKeyValue: newStubNATSKeyValue()}, DriverNATS},
		{"dynamo", StoreConfig{Driver: DriverDynamo, DynamoClient: newDynStub()}, DriverDynamo},
		{"sql", StoreConfig{Driver: DriverSQL, SQLDriverName: "sqlite", SQLDSN: filepath.Join(t.TempDir(), "f.db")}, DriverSQL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewStore(ctx, tc.cfg)
			if store.Driver() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, store.Driver())
			}
			if _, ok := store.(*errorStore); ok {
				t.Fatalf("expected a working store, got error store: %v", store.(*errorStore).err)
			}
		})
	}
}

func TestNewStoreUnknownDriverReturnsErrorStore(t *testing.T) {
	store := NewStore(context.Background(), StoreConfig{Driver: "carrier-pigeon"})
	if _, _, err := store.Get(context.Background(), "k"); err == nil || !strings.Contains(err.Error(), "unknown store driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
	if err := store.Set(context.Background(), "k", nil, 0); err == nil {
		t.Fatalf("expected set error")
	}
	if err := store.Delete(context.Background(), "k"); err == nil {
		t.Fatalf("expected delete error")
	}
}

func TestNewStoreSQLInitFailureReturnsErrorStore(t *testing.T) {
	store := NewSQLStore(context.Background(), "sqlite", "", "")
	if store.Driver() != DriverSQL {
		t.Fatalf("expected sql driver label, got %s", store.Driver())
	}
	if _, ok := store.(*errorStore); !ok {
		t.Fatalf("expected error store, got %T", store)
	}
}

func TestNewStoreWithOptions(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	store := NewRedisStore(ctx, client, WithPrefix("mobile"), WithDefaultTTL(time.Minute), WithCompression(CompressionGzip))
	if _, ok := store.(*shapingStore); !ok {
		t.Fatalf("expected shaping wrapper, got %T", store)
	}
	if err := store.Set(ctx, "k", []byte("[]"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if client.ttl["mobile:k"] != time.Minute {
		t.Fatalf("expected prefix and ttl applied, have %v", client.ttl)
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(body) != "[]" {
		t.Fatalf("expected decompressed value, ok=%v err=%v body=%q", ok, err, body)
	}
}

func TestNewStoreMaxValueBytes(t *testing.T) {
	store := NewMemoryStore(context.Background(), WithMaxValueBytes(4))
	if err := store.Set(context.Background(), "k", []byte("too long"), 0); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	ctx := context.Background()
	if NewNullStore(ctx).Driver() != DriverNull {
		t.Fatalf("expected null store")
	}
	if NewFileStore(ctx, t.TempDir()).Driver() != DriverFile {
		t.Fatalf("expected file store")
	}
	if NewNATSStore(ctx, newStubNATSKeyValue(), WithNATSBucketTTL(true)).Driver() != DriverNATS {
		t.Fatalf("expected nats store")
	}
	if NewDynamoStore(ctx, WithDynamoClient(newDynStub()), WithDynamoTable("t")).Driver() != DriverDynamo {
		t.Fatalf("expected dynamo store")
	}
}

func TestStoreConfigDefaults(t *testing.T) {
	var cfg StoreConfig
	cfg.DefaultTTL = -time.Second
	cfg = cfg.withDefaults()
	if cfg.Driver != DriverMemory || cfg.Prefix != defaultStorePrefix || cfg.DefaultTTL != 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SQLTable != defaultSQLTable || cfg.DynamoTable != defaultDynamoTable || cfg.DynamoRegion != defaultDynamoRegion {
		t.Fatalf("unexpected table defaults %+v", cfg)
	}
	if cfg.Compression != CompressionNone || cfg.FileDir == "" {
		t.Fatalf("unexpected shaping defaults %+v", cfg)
	}
}
