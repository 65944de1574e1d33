package catalog

import "github.com/goforj/catalog/catalogcore"

// Driver identifies the snapshot storage backend.
type Driver = catalogcore.Driver

// Store is the persisted key-value contract the trending snapshot lives in.
type Store = catalogcore.Store

// Stamped is a stored value with its write and expiry times.
type Stamped = catalogcore.Stamped

// StampedReader is implemented by stores that record write times.
type StampedReader = catalogcore.StampedReader

const (
	DriverNull   = catalogcore.DriverNull
	DriverFile   = catalogcore.DriverFile
	DriverMemory = catalogcore.DriverMemory
	DriverDynamo = catalogcore.DriverDynamo
	DriverSQL    = catalogcore.DriverSQL
	DriverRedis  = catalogcore.DriverRedis
	DriverNATS   = catalogcore.DriverNATS
)
