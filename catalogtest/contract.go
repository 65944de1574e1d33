package catalogtest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goforj/catalog/catalogcore"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName is used to namespace keys. Defaults to t.Name().
	CaseName string
	// NullSemantics expects every read to miss.
	NullSemantics bool
	// SkipCloneCheck disables the "get returns a cloned value" assertion.
	SkipCloneCheck bool
	// SkipTTL disables expiry checks for backends whose expiry is enforced
	// out of process (redis stubs, bucket-level NATS TTL).
	SkipTTL bool
	// TTL controls the expiry duration used in TTL tests.
	TTL time.Duration
	// TTLWait is how long the harness waits for expiry to occur.
	TTLWait time.Duration
}

// Store is the minimal contract required by RunStoreContract.
type Store = catalogcore.Store

// RunStoreContract runs a backend-agnostic store contract suite.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 250 * time.Millisecond
	}

	ctx := context.Background()
	key := func(s string) string {
		return sanitize(caseName) + ":" + s
	}

	// Missing keys miss without error.
	if _, ok, err := store.Get(ctx, key("missing")); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	// Set/Get round-trip.
	if err := store.Set(ctx, key("alpha"), []byte(`[{"title":"A"}]`), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, key("alpha"))
	if err != nil {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
	} else {
		if !ok || string(body) != `[{"title":"A"}]` {
			t.Fatalf("unexpected get result: ok=%v body=%q", ok, string(body))
		}
		if !opts.SkipCloneCheck {
			body[0] = 'X'
			body2, ok2, err2 := store.Get(ctx, key("alpha"))
			if err2 != nil || !ok2 || string(body2) != `[{"title":"A"}]` {
				t.Fatalf("expected stored value unchanged, got ok=%v body=%q err=%v", ok2, string(body2), err2)
			}
		}
	}

	// Overwrite replaces the whole value.
	if err := store.Set(ctx, key("alpha"), []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if !opts.NullSemantics {
		body, ok, err = store.Get(ctx, key("alpha"))
		if err != nil || !ok || string(body) != `[]` {
			t.Fatalf("expected overwritten value, got ok=%v body=%q err=%v", ok, string(body), err)
		}
	}

	// Zero TTL keeps the value.
	if err := store.Set(ctx, key("forever"), []byte("v"), 0); err != nil {
		t.Fatalf("set zero ttl failed: %v", err)
	}
	if !opts.NullSemantics {
		time.Sleep(ttl)
		if _, ok, err := store.Get(ctx, key("forever")); err != nil || !ok {
			t.Fatalf("expected zero-ttl value to persist, got ok=%v err=%v", ok, err)
		}
	}

	// TTL expiry.
	if !opts.SkipTTL {
		if err := store.Set(ctx, key("ttl"), []byte("v"), ttl); err != nil {
			t.Fatalf("set ttl failed: %v", err)
		}
		if err := waitForMiss(ctx, store, key("ttl"), wait); err != nil {
			t.Fatalf("expected ttl expiry: %v", err)
		}
	}

	// Delete removes; deleting again is not an error.
	if err := store.Delete(ctx, key("alpha")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, key("alpha")); err != nil || ok {
		t.Fatalf("expected miss after delete, got ok=%v err=%v", ok, err)
	}
	if err := store.Delete(ctx, key("alpha")); err != nil {
		t.Fatalf("delete of missing key failed: %v", err)
	}
}

func waitForMiss(ctx context.Context, store Store, key string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		_, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, ok, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("key %q still present after %s", key, wait)
	}
	return nil
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(s)
}
