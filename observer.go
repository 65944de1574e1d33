package catalog

import (
	"context"
	"time"
)

// Observer receives events for loader and snapshot operations.
// Ops are "fetch" (resource producer), "load", "hydrate", "refresh" and
// "persist"; hit reports whether the operation produced usable data.
type Observer interface {
	OnOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnOp implements Observer.
func (f ObserverFunc) OnOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}

func observe(ctx context.Context, o Observer, op, key string, hit bool, err error, start time.Time, driver Driver) {
	if o == nil {
		return
	}
	o.OnOp(ctx, op, key, hit, err, time.Since(start), driver)
}
