package catalogcore

import "time"

// BaseConfig contains shared, backend-agnostic store configuration.
type BaseConfig struct {
	// DefaultTTL applies when Set receives ttl <= 0. Zero keeps values forever.
	DefaultTTL    time.Duration
	Prefix        string
	Compression   CompressionCodec
	MaxValueBytes int
}
