package catalog

import (
	"context"
	"errors"
	"sync"
)

// Home loads the popular and trending lists side by side. The two are
// independent; Home only merges their flags for display.
type Home struct {
	Popular  *Resource[[]Movie]
	Trending *Trending

	mu   sync.Mutex
	done chan struct{}
}

// NewHome starts loading both lists. Options apply to the popular resource;
// WithAutoStart is ignored.
func NewHome(ctx context.Context, movies *MovieSource, trending *Trending, opts ...ResourceOption) *Home {
	opts = append(append([]ResourceOption{WithResourceName("popular")}, opts...), WithAutoStart(false))
	h := &Home{
		Popular:  NewResource(ctx, movies.Producer(MovieQuery{}), opts...),
		Trending: trending,
	}
	h.start(ctx)
	return h
}

// Refresh reloads both lists and returns a channel closed when both are done.
func (h *Home) Refresh(ctx context.Context) <-chan struct{} {
	return h.start(ctx)
}

// Done is closed when the most recent load of both lists has finished.
func (h *Home) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Loading reports whether either list is loading.
func (h *Home) Loading() bool {
	return h.Popular.State().Loading || h.Trending.State().Loading
}

// Err joins the current errors of both lists, or returns nil.
func (h *Home) Err() error {
	return errors.Join(h.Popular.State().Err, h.Trending.State().Err)
}

// Dispose disposes both lists.
func (h *Home) Dispose() {
	h.Popular.Dispose()
	h.Trending.Dispose()
}

func (h *Home) start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	h.mu.Lock()
	h.done = done
	h.mu.Unlock()

	popular := h.Popular.Refetch(ctx)
	trending := make(chan struct{})
	go func() {
		defer close(trending)
		h.Trending.Load(ctx)
	}()
	go func() {
		<-popular
		<-trending
		close(done)
	}()
	return done
}
