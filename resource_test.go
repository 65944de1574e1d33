package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type result struct {
	value string
	err   error
}

func newGatedResource() *Resource[string] {
	return NewResource[string](context.Background(), nil, WithAutoStart(false), WithResourceLogger(discardLogger()))
}

// gatedRefetch starts a fetch whose producer returns what is sent on the
// returned channel. Refetch captures the producer before it returns, so
// the channel belongs to that generation whatever order goroutines run in.
func gatedRefetch(r *Resource[string]) (chan<- result, <-chan struct{}) {
	ch := make(chan result, 1)
	r.SetProducer(func(context.Context) (string, error) {
		res := <-ch
		return res.value, res.err
	})
	return ch, r.Refetch(context.Background())
}

func awaitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch to finish")
	}
}

func TestResourceOutOfOrderCompletionKeepsLatest(t *testing.T) {
	r := newGatedResource()

	firstCh, first := gatedRefetch(r)
	secondCh, second := gatedRefetch(r)
	if r.Generation() != 2 {
		t.Fatalf("expected generation 2, got %d", r.Generation())
	}

	secondCh <- result{value: "second"}
	awaitDone(t, second)
	firstCh <- result{value: "first"}
	awaitDone(t, first)

	st := r.State()
	if st.Data != "second" || st.Loading || !st.HasData {
		t.Fatalf("expected latest call to win, got %+v", st)
	}
}

func TestResourceSupersededErrorDiscarded(t *testing.T) {
	r := newGatedResource()

	firstCh, first := gatedRefetch(r)
	secondCh, second := gatedRefetch(r)
	firstCh <- result{err: errors.New("stale failure")}
	awaitDone(t, first)
	if st := r.State(); !st.Loading || st.Err != nil {
		t.Fatalf("expected still loading with no error, got %+v", st)
	}
	secondCh <- result{value: "ok"}
	awaitDone(t, second)
	if st := r.State(); st.Data != "ok" || st.Err != nil {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestResourceFailureKeepsPreviousData(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	r := NewResource(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 42, nil
		}
		return 0, boom
	}, WithAutoStart(false), WithResourceLogger(discardLogger()))

	if st := r.Fetch(context.Background()); st.Data != 42 || st.Err != nil {
		t.Fatalf("unexpected first state %+v", st)
	}
	st := r.Fetch(context.Background())
	if st.Data != 42 || !st.HasData || !errors.Is(st.Err, boom) || st.Loading {
		t.Fatalf("expected data retained with error, got %+v", st)
	}
	if st.Failed() {
		t.Fatalf("expected Failed() false with retained data")
	}
}

func TestResourceRefetchClearsErrorWhileLoading(t *testing.T) {
	r := newGatedResource()
	ch, done := gatedRefetch(r)
	ch <- result{err: errors.New("first")}
	awaitDone(t, done)
	if r.State().Err == nil {
		t.Fatalf("expected error")
	}

	ch, done = gatedRefetch(r)
	if st := r.State(); !st.Loading || st.Err != nil || !st.Spinner() {
		t.Fatalf("expected loading without error, got %+v", st)
	}
	ch <- result{value: "v"}
	awaitDone(t, done)
}

func TestResourceAutoStart(t *testing.T) {
	var calls atomic.Int32
	r := NewResource(context.Background(), func(context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}, WithResourceLogger(discardLogger()))
	waitFor(t, "autostart fetch", func() bool { return r.State().HasData })
	if calls.Load() != 1 || r.Generation() != 1 {
		t.Fatalf("expected one automatic fetch, calls=%d gen=%d", calls.Load(), r.Generation())
	}
}

func TestResourceReset(t *testing.T) {
	r := NewResource(context.Background(), func(context.Context) (string, error) {
		return "v", nil
	}, WithAutoStart(false), WithResourceLogger(discardLogger()))
	r.Fetch(context.Background())
	r.Reset()
	st := r.State()
	if st.HasData || st.Data != "" || st.Err != nil {
		t.Fatalf("expected cleared state, got %+v", st)
	}
	if r.Generation() != 1 {
		t.Fatalf("expected reset not to fetch")
	}
}

func TestResourceNilProducer(t *testing.T) {
	r := NewResource[string](context.Background(), nil, WithAutoStart(false), WithResourceLogger(discardLogger()))
	if st := r.Fetch(context.Background()); !errors.Is(st.Err, ErrNoProducer) {
		t.Fatalf("expected ErrNoProducer, got %v", st.Err)
	}
}

func TestResourceProducerPanicBecomesError(t *testing.T) {
	r := NewResource(context.Background(), func(context.Context) (string, error) {
		panic("kaboom")
	}, WithAutoStart(false), WithResourceLogger(discardLogger()))
	if st := r.Fetch(context.Background()); st.Err == nil || st.Loading {
		t.Fatalf("expected panic converted to error, got %+v", st)
	}
}

func TestResourceSetProducer(t *testing.T) {
	r := NewResource(context.Background(), func(context.Context) (string, error) {
		return "popular", nil
	}, WithAutoStart(false), WithResourceLogger(discardLogger()))
	r.Fetch(context.Background())
	r.SetProducer(func(context.Context) (string, error) { return "search", nil })
	if st := r.Fetch(context.Background()); st.Data != "search" {
		t.Fatalf("expected new producer result, got %q", st.Data)
	}
}

func TestResourceDisposeDropsResults(t *testing.T) {
	r := newGatedResource()
	var notified atomic.Int32
	r.Subscribe(func(State[string]) { notified.Add(1) })

	ch, done := gatedRefetch(r)
	r.Dispose()
	before := notified.Load()
	ch <- result{value: "late"}
	awaitDone(t, done)

	if st := r.State(); st.HasData {
		t.Fatalf("expected late result dropped, got %+v", st)
	}
	if notified.Load() != before {
		t.Fatalf("expected no notifications after dispose")
	}
	closed := r.Refetch(context.Background())
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("expected refetch after dispose to complete immediately")
	}
	if r.Generation() != 1 {
		t.Fatalf("expected no new generation after dispose")
	}
}

func TestResourceSubscribeAndCancel(t *testing.T) {
	r := NewResource(context.Background(), func(context.Context) (string, error) {
		return "v", nil
	}, WithAutoStart(false), WithResourceLogger(discardLogger()))

	var mu sync.Mutex
	var seen []State[string]
	cancel := r.Subscribe(func(st State[string]) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})
	r.Fetch(context.Background())
	cancel()
	r.Fetch(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected loading and ready notifications, got %d", len(seen))
	}
	if !seen[0].Loading || seen[1].Loading || seen[1].Data != "v" {
		t.Fatalf("unexpected notification sequence %+v", seen)
	}
}

func TestResourceObserver(t *testing.T) {
	var ops []string
	obs := ObserverFunc(func(_ context.Context, op, key string, hit bool, err error, _ time.Duration, _ Driver) {
		ops = append(ops, op+":"+key)
	})
	r := NewResource(context.Background(), func(context.Context) (string, error) {
		return "v", nil
	}, WithAutoStart(false), WithResourceName("popular"), WithResourceObserver(obs), WithResourceLogger(discardLogger()))
	r.Fetch(context.Background())
	if len(ops) != 1 || ops[0] != "fetch:popular" {
		t.Fatalf("unexpected observed ops %v", ops)
	}
}
