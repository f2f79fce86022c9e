package preview_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"practicelab/internal/preview"
)

func TestScopeKey(t *testing.T) {
	cases := []struct {
		exercise, subject, question string
		want                        string
	}{
		{"e1", "s1", "q1", "exercise:e1"},
		{"", "s1", "q1", "subject:s1"},
		{"", "", "q1", "question:q1"},
	}
	for _, tc := range cases {
		if got := preview.ScopeKey(tc.exercise, tc.subject, tc.question); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestCacheResolvesOncePerScope(t *testing.T) {
	ctx := context.Background()
	c := preview.NewCache()
	c.SetScope("exercise:1")

	var calls atomic.Int32
	resolve := func(context.Context) (preview.Preview, error) {
		calls.Add(1)
		return preview.Preview{Columns: []string{"a"}, Rows: [][]any{{int64(1)}}}, nil
	}
	for i := 0; i < 3; i++ {
		p, err := c.GetOrResolve(ctx, "k", resolve)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if len(p.Rows) != 1 {
			t.Fatalf("unexpected preview: %+v", p)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one resolution, got %d", calls.Load())
	}

	if c.SetScope("exercise:1") {
		t.Fatalf("same scope must not reset")
	}
	if c.Len() != 1 {
		t.Fatalf("expected entry to survive")
	}
	if !c.SetScope("exercise:2") {
		t.Fatalf("expected scope change")
	}
	if c.Len() != 0 {
		t.Fatalf("expected cleared cache")
	}
	if _, err := c.GetOrResolve(ctx, "k", resolve); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected resolution after scope change, got %d", calls.Load())
	}
}

func TestCacheWriteOnce(t *testing.T) {
	c := preview.NewCache()
	c.SetScope("s")
	c.Put("s", "k", preview.Preview{Columns: []string{"first"}})
	c.Put("s", "k", preview.Preview{Columns: []string{"second"}})
	c.Put("other", "x", preview.Preview{Columns: []string{"stale"}})

	p, ok := c.Get("k")
	if !ok || p.Columns[0] != "first" {
		t.Fatalf("expected first write to stick, got %+v", p)
	}
	if _, ok := c.Get("x"); ok {
		t.Fatalf("write for an old scope must be dropped")
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	ctx := context.Background()
	c := preview.NewCache()
	c.SetScope("s")
	if _, err := c.GetOrResolve(ctx, "k", func(context.Context) (preview.Preview, error) {
		return preview.Preview{}, errors.New("nope")
	}); err == nil {
		t.Fatalf("expected error")
	}
	if c.Len() != 0 {
		t.Fatalf("failure was cached")
	}
}

func TestCacheConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	c := preview.NewCache()
	c.SetScope("s")

	release := make(chan struct{})
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrResolve(ctx, "k", func(context.Context) (preview.Preview, error) {
				calls.Add(1)
				<-release
				return preview.Preview{Columns: []string{"a"}}, nil
			})
		}()
	}
	close(release)
	wg.Wait()
	if calls.Load() < 1 {
		t.Fatalf("expected at least one resolution")
	}
	if p, ok := c.Get("k"); !ok || p.Columns[0] != "a" {
		t.Fatalf("expected cached preview")
	}
}
