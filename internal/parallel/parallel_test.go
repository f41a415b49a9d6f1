package parallel

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroupResolvesAllFutures(t *testing.T) {
	g := NewGroup(4)
	defer g.Close()

	futures := make([]*Future, 10)
	for i := 0; i < 10; i++ {
		i := i
		futures[i] = g.Submit(func() (interface{}, error) {
			return i * 2, nil
		})
	}

	ctx := context.Background()
	for i, f := range futures {
		v, err := f.Result(ctx)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if v.(int) != i*2 {
			t.Errorf("Future %d: expected %d, got %v", i, i*2, v)
		}
	}
}

func TestGroupBoundedConcurrency(t *testing.T) {
	g := NewGroup(2)
	defer g.Close()

	var current, peak atomic.Int32
	var futures []*Future
	for i := 0; i < 8; i++ {
		futures = append(futures, g.Submit(func() (interface{}, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return nil, nil
		}))
	}

	ctx := context.Background()
	for _, f := range futures {
		if _, err := f.Result(ctx); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent calls, saw %d", peak.Load())
	}
}

func TestGroupErrorPropagation(t *testing.T) {
	g := NewGroup(2)
	defer g.Close()

	wantErr := errors.New("pricing api unavailable")
	failed := g.Submit(func() (interface{}, error) { return nil, wantErr })

	var siblingRan atomic.Bool
	sibling := g.Submit(func() (interface{}, error) {
		siblingRan.Store(true)
		return "ok", nil
	})

	ctx := context.Background()
	if _, err := failed.Result(ctx); !errors.Is(err, wantErr) {
		t.Errorf("Expected %v, got %v", wantErr, err)
	}
	// A failure must not cancel already-submitted siblings.
	if v, err := sibling.Result(ctx); err != nil || v != "ok" {
		t.Errorf("Sibling should complete normally, got %v, %v", v, err)
	}
	if !siblingRan.Load() {
		t.Error("Sibling call did not run")
	}
}

func TestGroupRecoversPanic(t *testing.T) {
	g := NewGroup(2)
	defer g.Close()

	panicked := g.Submit(func() (interface{}, error) { panic("catalog decode blew up") })
	sibling := g.Submit(func() (interface{}, error) { return "ok", nil })

	ctx := context.Background()
	_, err := panicked.Result(ctx)
	if err == nil || !strings.Contains(err.Error(), "catalog decode blew up") {
		t.Errorf("Expected panic surfaced as error, got %v", err)
	}
	if v, err := sibling.Result(ctx); err != nil || v != "ok" {
		t.Errorf("Sibling should complete normally, got %v, %v", v, err)
	}
}

func TestFutureContextCancellation(t *testing.T) {
	g := NewGroup(1)
	defer g.Close()

	release := make(chan struct{})
	f := g.Submit(func() (interface{}, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Result(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestMemoDeduplicates(t *testing.T) {
	m := NewMemo(time.Minute)

	var calls atomic.Int32
	fn := func() (interface{}, error) {
		calls.Add(1)
		return "region-map", nil
	}

	for i := 0; i < 5; i++ {
		v, err := m.Do("aws:region_map", fn)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if v != "region-map" {
			t.Errorf("Expected region-map, got %v", v)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 underlying call, got %d", calls.Load())
	}
}

func TestMemoExpiry(t *testing.T) {
	m := NewMemo(20 * time.Millisecond)

	var calls atomic.Int32
	fn := func() (interface{}, error) {
		calls.Add(1)
		return nil, nil
	}

	m.Do("key", fn)
	time.Sleep(40 * time.Millisecond)
	m.Do("key", fn)

	if calls.Load() != 2 {
		t.Errorf("Expected refetch after TTL, got %d calls", calls.Load())
	}
}

func TestMemoCachesErrors(t *testing.T) {
	m := NewMemo(time.Minute)

	wantErr := errors.New("boom")
	var calls atomic.Int32
	fn := func() (interface{}, error) {
		calls.Add(1)
		return nil, wantErr
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Do("key", fn); !errors.Is(err, wantErr) {
			t.Errorf("Expected cached error, got %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}
