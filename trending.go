package catalog

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// TrendingSource fetches the current trending list from a remote service.
type TrendingSource interface {
	FetchTrending(ctx context.Context) ([]TrendingEntry, error)
}

// TrendingSourceFunc adapts a function to TrendingSource.
type TrendingSourceFunc func(ctx context.Context) ([]TrendingEntry, error)

// FetchTrending implements TrendingSource.
func (f TrendingSourceFunc) FetchTrending(ctx context.Context) ([]TrendingEntry, error) {
	return f(ctx)
}

// refreshFlights coalesces network refreshes process-wide per store and
// storage key. The winning flight also persists, so one key of one store
// has at most one writer.
var (
	refreshFlights singleflight.Group
	flightSeq      atomic.Uint64
)

// refreshFlightKey scopes a flight to store and key. Stores without a
// stable address (values, zero-size types) get a key of their own and only
// coalesce within one Trending.
func refreshFlightKey(store Store, key string) string {
	v := reflect.ValueOf(store)
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().Size() > 0 {
		return fmt.Sprintf("%x/%s", v.Pointer(), key)
	}
	return fmt.Sprintf("#%d/%s", flightSeq.Add(1), key)
}

// Trending serves the trending list stale-while-revalidate: the persisted
// snapshot is published first, then replaced by a network refresh which
// is written back to the store.
type Trending struct {
	store     Store
	cfg       TrendingConfig
	source    TrendingSource
	tracer    trace.Tracer
	flightKey string

	mu        sync.Mutex
	state     TrendingState
	version   uint64
	inflight  *trendingCall
	disposed  bool
	subs      []trendingSub
	nextSubID int

	notifyMu  sync.Mutex
	delivered uint64
}

type trendingCall struct {
	done   chan struct{}
	result TrendingState
}

type trendingSub struct {
	id int
	fn func(TrendingState)
}

// NewTrending creates a Trending cache persisting into store. A nil store
// behaves like the null driver: every load misses and nothing is kept.
func NewTrending(store Store, cfg TrendingConfig) *Trending {
	cfg = cfg.withDefaults()
	if store == nil {
		store = newNullStore()
	}
	source := cfg.Source
	if source == nil {
		source = NewHTTPTrendingSource(cfg.EndpointURL, cfg.HTTPClient)
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Trending{
		store:     store,
		cfg:       cfg,
		source:    source,
		tracer:    tp.Tracer(defaultTracerName),
		flightKey: refreshFlightKey(store, cfg.StorageKey),
	}
}

// StorageKey returns the key the snapshot is persisted under.
func (t *Trending) StorageKey() string { return t.cfg.StorageKey }

// State returns a copy of the current state.
func (t *Trending) State() TrendingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Ranked returns the current entries with Rank filled in.
func (t *Trending) Ranked() []TrendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneEntries(t.state.Data)
}

// Rank returns the 1-based rank of title in the current entries, or 0.
func (t *Trending) Rank(title string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Rank(t.state.Data, title)
}

// Snapshot reads the persisted snapshot without touching the state.
// A corrupt value is returned as a *StorageReadError.
func (t *Trending) Snapshot(ctx context.Context) ([]TrendingEntry, bool, error) {
	key := t.cfg.StorageKey
	body, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return nil, false, &StorageReadError{Key: key, Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	entries, err := decodeEntries(key, body)
	if err != nil {
		return nil, false, &StorageReadError{Key: key, Err: err}
	}
	return withRanks(entries), true, nil
}

// SnapshotWrittenAt reports when the persisted snapshot was written. The
// bool is false when nothing is stored or the store does not record write
// times.
func (t *Trending) SnapshotWrittenAt(ctx context.Context) (time.Time, bool, error) {
	sr, ok := t.store.(StampedReader)
	if !ok {
		return time.Time{}, false, nil
	}
	st, ok, err := sr.GetStamped(ctx, t.cfg.StorageKey)
	if err != nil {
		return time.Time{}, false, &StorageReadError{Key: t.cfg.StorageKey, Err: err}
	}
	if !ok || st.WrittenAt.IsZero() {
		return time.Time{}, false, nil
	}
	return st.WrittenAt, true, nil
}

// ClearSnapshot deletes the persisted snapshot.
func (t *Trending) ClearSnapshot(ctx context.Context) error {
	if err := t.store.Delete(ctx, t.cfg.StorageKey); err != nil {
		return &StorageWriteError{Key: t.cfg.StorageKey, Err: err}
	}
	return nil
}

// Load runs one hydrate-then-refresh cycle and returns the final state.
//
// A Load issued while another is running on the same instance waits for
// that cycle instead of starting a new one; if ctx ends first it returns
// the state as of that moment. The network refresh runs detached from ctx,
// bounded by FetchTimeout, because other callers may be joined to it.
func (t *Trending) Load(ctx context.Context) TrendingState {
	t.mu.Lock()
	if t.disposed {
		s := t.snapshotLocked()
		t.mu.Unlock()
		return s
	}
	if c := t.inflight; c != nil {
		t.mu.Unlock()
		select {
		case <-c.done:
			return c.result
		case <-ctx.Done():
			return t.State()
		}
	}
	c := &trendingCall{done: make(chan struct{})}
	t.inflight = c
	t.mu.Unlock()

	result := t.run(ctx)

	t.mu.Lock()
	t.inflight = nil
	c.result = result
	t.mu.Unlock()
	close(c.done)
	return result
}

// Dispose detaches the cache. A running cycle still refreshes and persists
// but no longer changes the state; subscribers are removed.
func (t *Trending) Dispose() {
	t.mu.Lock()
	t.disposed = true
	t.subs = nil
	t.mu.Unlock()
}

// Subscribe registers fn to receive every published state, in order.
// fn must not call Load synchronously.
func (t *Trending) Subscribe(fn func(TrendingState)) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || fn == nil {
		return func() {}
	}
	t.nextSubID++
	id := t.nextSubID
	t.subs = append(t.subs, trendingSub{id: id, fn: fn})
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

func (t *Trending) run(ctx context.Context) TrendingState {
	key := t.cfg.StorageKey
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "catalog.trending.load",
		trace.WithAttributes(
			attribute.String("catalog.storage_key", key),
			attribute.String("catalog.driver", string(t.store.Driver())),
		),
	)
	defer span.End()

	t.apply(func(s *TrendingState) {
		s.Phase = PhaseHydrating
		s.Loading = true
		s.Err = nil
	})

	if entries, ok := t.hydrate(ctx); ok {
		t.apply(func(s *TrendingState) {
			s.Phase = PhaseHydratedShowingStale
			s.Data = withRanks(entries)
			s.HasData = true
			s.Loading = false
		})
	} else {
		t.apply(func(s *TrendingState) {
			s.Phase = PhaseNoLocalData
			s.Loading = false
		})
	}

	t.apply(func(s *TrendingState) {
		s.Phase = PhaseRefreshing
		s.Loading = true
		s.Err = nil
	})

	entries, err := t.refresh(ctx)
	final := t.apply(func(s *TrendingState) {
		s.Loading = false
		if err != nil {
			s.Err = err
			if s.HasData {
				s.Phase = PhaseFailedKeepStale
			} else {
				s.Phase = PhaseFailedNoData
			}
			return
		}
		s.Phase = PhaseFresh
		s.Data = withRanks(entries)
		s.HasData = true
	})

	span.SetAttributes(
		attribute.String("catalog.phase", final.Phase.String()),
		attribute.Int("catalog.entries", len(final.Data)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observe(ctx, t.cfg.Observer, "load", key, err == nil, err, start, t.store.Driver())
	return final
}

// hydrate reads the persisted snapshot. Read failures and corrupt values
// are logged and reported as a miss.
func (t *Trending) hydrate(ctx context.Context) ([]TrendingEntry, bool) {
	key := t.cfg.StorageKey
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "catalog.trending.hydrate")
	defer span.End()

	body, ok, err := t.store.Get(ctx, key)
	var entries []TrendingEntry
	if err == nil && ok {
		entries, err = decodeEntries(key, body)
	}
	if err != nil {
		readErr := &StorageReadError{Key: key, Err: err}
		t.cfg.Logger.Warn("trending snapshot unreadable, treating as miss",
			"key", key,
			"driver", t.store.Driver(),
			"error", readErr,
		)
		span.RecordError(readErr)
		observe(ctx, t.cfg.Observer, "hydrate", key, false, readErr, start, t.store.Driver())
		return nil, false
	}
	span.SetAttributes(attribute.Bool("catalog.hit", ok))
	observe(ctx, t.cfg.Observer, "hydrate", key, ok, nil, start, t.store.Driver())
	if !ok {
		t.cfg.Logger.Debug("no trending snapshot", "key", key)
		return nil, false
	}
	t.cfg.Logger.Debug("hydrated trending snapshot", "key", key, "entries", len(entries))
	return entries, true
}

func (t *Trending) refresh(ctx context.Context) ([]TrendingEntry, error) {
	detached := context.WithoutCancel(ctx)
	ch := refreshFlights.DoChan(t.flightKey, func() (v any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("catalog: trending refresh panicked: %v", rec)
				t.cfg.Logger.Error("trending refresh panicked", "key", t.cfg.StorageKey, "panic", rec)
			}
		}()
		fctx, cancel := context.WithTimeout(detached, t.cfg.FetchTimeout)
		defer cancel()
		return t.fetchAndPersist(fctx)
	})
	res := <-ch
	if res.Err != nil {
		return nil, res.Err
	}
	entries, _ := res.Val.([]TrendingEntry)
	return cloneEntries(entries), nil
}

func (t *Trending) fetchAndPersist(ctx context.Context) ([]TrendingEntry, error) {
	key := t.cfg.StorageKey
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "catalog.trending.refresh")
	defer span.End()

	entries, err := t.source.FetchTrending(ctx)
	if err == nil && entries == nil {
		entries = []TrendingEntry{}
	}
	observe(ctx, t.cfg.Observer, "refresh", key, err == nil, err, start, t.store.Driver())
	if err != nil {
		t.cfg.Logger.Warn("trending refresh failed", "key", key, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.entries", len(entries)))

	if err := t.persist(ctx, entries); err != nil {
		t.cfg.Logger.Warn("trending snapshot not persisted", "key", key, "error", err)
		span.RecordError(err)
	}
	return entries, nil
}

// persist writes entries under the storage key. The returned error is
// informational; callers keep the fetched entries regardless.
func (t *Trending) persist(ctx context.Context, entries []TrendingEntry) error {
	key := t.cfg.StorageKey
	start := time.Now()
	body, err := encodeEntries(entries)
	if err == nil {
		err = t.store.Set(ctx, key, body, t.cfg.SnapshotTTL)
	}
	if err != nil {
		err = &StorageWriteError{Key: key, Err: err}
	}
	observe(ctx, t.cfg.Observer, "persist", key, err == nil, err, start, t.store.Driver())
	return err
}

// apply mutates the state under the lock, publishes it, and returns a copy.
// Once disposed the state is frozen; the copy returned is the mutated one
// so a running Load still reports its own outcome.
func (t *Trending) apply(mutate func(*TrendingState)) TrendingState {
	t.mu.Lock()
	if t.disposed {
		s := t.snapshotLocked()
		t.mu.Unlock()
		mutate(&s)
		return s
	}
	mutate(&t.state)
	t.version++
	s := t.snapshotLocked()
	t.mu.Unlock()
	t.publish()
	return s
}

func (t *Trending) snapshotLocked() TrendingState {
	s := t.state
	s.Data = cloneEntries(t.state.Data)
	return s
}

func (t *Trending) publish() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	if t.version == t.delivered || len(t.subs) == 0 {
		t.delivered = t.version
		t.mu.Unlock()
		return
	}
	t.delivered = t.version
	state := t.snapshotLocked()
	subs := make([]trendingSub, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, s := range subs {
		s.fn(state)
	}
}
