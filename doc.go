// Package catalog loads the data behind a media catalog home screen.
//
// Resource runs any producer and tracks Data, Loading and Err with
// last-call-wins ordering. Trending serves the trending list
// stale-while-revalidate: it publishes the snapshot persisted in a Store,
// refreshes it from the network, and writes the result back.
//
// Stores are pluggable (memory, file, redis, sql, nats, dynamodb, null)
// and share the catalogcore.Store contract.
package catalog
