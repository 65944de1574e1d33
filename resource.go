package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Producer produces the value of a Resource. Inputs are captured by the
// closure; a new set of inputs is a new Producer (see SetProducer).
type Producer[T any] func(ctx context.Context) (T, error)

// ResourceOption configures a Resource.
type ResourceOption func(resourceConfig) resourceConfig

type resourceConfig struct {
	autoStart bool
	name      string
	logger    *slog.Logger
	observer  Observer
}

// WithAutoStart controls whether NewResource issues the first fetch.
// Defaults to true.
func WithAutoStart(on bool) ResourceOption {
	return func(c resourceConfig) resourceConfig {
		c.autoStart = on
		return c
	}
}

// WithResourceName labels log lines and observer events.
func WithResourceName(name string) ResourceOption {
	return func(c resourceConfig) resourceConfig {
		c.name = name
		return c
	}
}

// WithResourceLogger sets the logger. Defaults to slog.Default().
func WithResourceLogger(logger *slog.Logger) ResourceOption {
	return func(c resourceConfig) resourceConfig {
		c.logger = logger
		return c
	}
}

// WithResourceObserver reports every applied fetch as a "fetch" op.
func WithResourceObserver(o Observer) ResourceOption {
	return func(c resourceConfig) resourceConfig {
		c.observer = o
		return c
	}
}

// Resource runs a Producer and tracks the outcome as a State.
//
// Each call to Refetch or Fetch takes the next generation number when it
// starts. A result is applied only if its generation is still the latest
// when it completes, so the state always reflects the most recently
// issued call no matter what order producers finish in.
type Resource[T any] struct {
	cfg resourceConfig

	mu        sync.Mutex
	producer  Producer[T]
	state     State[T]
	gen       uint64
	version   uint64
	disposed  bool
	subs      []resourceSub[T]
	nextSubID int

	notifyMu  sync.Mutex
	delivered uint64
}

type resourceSub[T any] struct {
	id int
	fn func(State[T])
}

// NewResource creates a Resource for producer. Unless WithAutoStart(false)
// is given, the first fetch is issued immediately with ctx.
func NewResource[T any](ctx context.Context, producer Producer[T], opts ...ResourceOption) *Resource[T] {
	cfg := resourceConfig{autoStart: true, name: "resource"}
	for _, opt := range opts {
		if opt != nil {
			cfg = opt(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	r := &Resource[T]{cfg: cfg, producer: producer}
	if cfg.autoStart {
		r.Refetch(ctx)
	}
	return r
}

// State returns the current state.
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Generation returns the number of fetches issued so far.
func (r *Resource[T]) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// SetProducer replaces the producer used by subsequent fetches. Fetches
// already running keep the producer they started with.
func (r *Resource[T]) SetProducer(p Producer[T]) {
	r.mu.Lock()
	r.producer = p
	r.mu.Unlock()
}

// Refetch starts a fetch in the background. Loading is set and Err cleared
// before it returns. The returned channel is closed once the fetch has
// finished, whether its result was applied or discarded.
func (r *Resource[T]) Refetch(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	gen, producer, ok := r.begin()
	if !ok {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		r.run(ctx, gen, producer)
	}()
	return done
}

// Fetch runs a fetch on the calling goroutine and returns the state after
// it. A newer fetch issued meanwhile wins, in which case the returned
// state may still be loading.
func (r *Resource[T]) Fetch(ctx context.Context) State[T] {
	gen, producer, ok := r.begin()
	if ok {
		r.run(ctx, gen, producer)
	}
	return r.State()
}

// Reset clears Data and Err without fetching. A fetch already running is
// not cancelled and will still apply its result.
func (r *Resource[T]) Reset() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	var zero T
	r.state.Data = zero
	r.state.HasData = false
	r.state.Err = nil
	r.version++
	r.mu.Unlock()
	r.publish()
}

// Dispose detaches the resource. Results arriving afterwards are dropped
// and subscribers are removed. Dispose is idempotent.
func (r *Resource[T]) Dispose() {
	r.mu.Lock()
	r.disposed = true
	r.subs = nil
	r.mu.Unlock()
}

// Subscribe registers fn to receive every published state. Delivery is
// serialized and in order; a state superseded before delivery is skipped.
// fn must not call Refetch, Fetch or Reset synchronously.
func (r *Resource[T]) Subscribe(fn func(State[T])) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed || fn == nil {
		return func() {}
	}
	r.nextSubID++
	id := r.nextSubID
	r.subs = append(r.subs, resourceSub[T]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

func (r *Resource[T]) begin() (uint64, Producer[T], bool) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return 0, nil, false
	}
	r.gen++
	gen := r.gen
	producer := r.producer
	r.state.Loading = true
	r.state.Err = nil
	r.version++
	r.mu.Unlock()
	r.publish()
	return gen, producer, true
}

func (r *Resource[T]) run(ctx context.Context, gen uint64, producer Producer[T]) {
	start := time.Now()
	value, err := callProducer(ctx, producer)

	r.mu.Lock()
	if r.disposed || gen != r.gen {
		latest := r.gen
		r.mu.Unlock()
		r.cfg.logger.Debug("discarding superseded result",
			"resource", r.cfg.name,
			"generation", gen,
			"latest", latest,
		)
		return
	}
	if err != nil {
		r.state.Err = err
	} else {
		r.state.Data = value
		r.state.HasData = true
	}
	r.state.Loading = false
	r.version++
	r.mu.Unlock()

	if err != nil {
		r.cfg.logger.Warn("resource fetch failed", "resource", r.cfg.name, "error", err)
	}
	observe(ctx, r.cfg.observer, "fetch", r.cfg.name, err == nil, err, start, "")
	r.publish()
}

func (r *Resource[T]) publish() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if r.version == r.delivered || len(r.subs) == 0 {
		r.delivered = r.version
		r.mu.Unlock()
		return
	}
	r.delivered = r.version
	state := r.state
	subs := make([]resourceSub[T], len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		s.fn(state)
	}
}

func callProducer[T any](ctx context.Context, producer Producer[T]) (value T, err error) {
	if producer == nil {
		return value, ErrNoProducer
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("catalog: producer panicked: %v", rec)
		}
	}()
	return producer(ctx)
}
