package grid

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newCache(name string) *CacheContext {
	return &CacheContext{ID: CacheID(name), Name: name, Store: NewStoreDescriptor(false, false)}
}

func TestAddCacheContext_Distinct(t *testing.T) {
	f := newFixture()
	a, b := newCache("alpha"), newCache("beta")
	if err := f.sc.AddCacheContext(a); err != nil {
		t.Fatalf("add alpha: %v", err)
	}
	if err := f.sc.AddCacheContext(b); err != nil {
		t.Fatalf("add beta: %v", err)
	}
	if got := len(f.sc.CacheContexts()); got != 2 {
		t.Fatalf("got %d contexts, want 2", got)
	}
	if c, ok := f.sc.CacheContext(a.ID); !ok || c != a {
		t.Fatalf("lookup of alpha returned %v, %v", c, ok)
	}
}

func TestAddCacheContext_Conflict(t *testing.T) {
	f := newFixture()
	a := &CacheContext{ID: 5, Name: "a"}
	b := &CacheContext{ID: 5, Name: "b"}
	if err := f.sc.AddCacheContext(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	err := f.sc.AddCacheContext(b)
	if !IsCode(err, CacheIDConflict) {
		t.Fatalf("expected CacheIDConflict, got %v", err)
	}
	var ge Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected grid Error, got %T", err)
	}
	info, ok := ge.UserData.(CacheIDConflictInfo)
	if !ok || info.CacheName != "b" || info.ConflictingName != "a" {
		t.Fatalf("unexpected conflict info: %#v", ge.UserData)
	}
	if !strings.Contains(err.Error(), "[cacheName=b, conflictingCacheName=a]") {
		t.Fatalf("message does not name both caches: %v", err)
	}
	if c, _ := f.sc.CacheContext(5); c != a {
		t.Fatalf("registry changed on conflict")
	}
	if got := len(f.sc.CacheContexts()); got != 1 {
		t.Fatalf("got %d contexts, want 1", got)
	}
	if err := f.sc.AddCacheContext(nil); err == nil {
		t.Fatalf("expected error for nil context")
	}
}

func TestRemoveCacheContext_CompareAndRemove(t *testing.T) {
	f := newFixture()
	a := &CacheContext{ID: 5, Name: "a"}
	if err := f.sc.AddCacheContext(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if f.sc.Closed(a) {
		t.Fatalf("live cache reported closed")
	}
	f.sc.RemoveCacheContext(a)
	if !f.sc.Closed(a) {
		t.Fatalf("removed cache not reported closed")
	}

	a2 := &CacheContext{ID: 5, Name: "a"}
	if err := f.sc.AddCacheContext(a2); err != nil {
		t.Fatalf("add restarted a: %v", err)
	}
	// Removing the stale reference leaves the restarted cache alone.
	f.sc.RemoveCacheContext(a)
	if c, ok := f.sc.CacheContext(5); !ok || c != a2 {
		t.Fatalf("stale removal evicted the live context")
	}
	if got := f.io.removedIDs(); !slices.Equal(got, []int32{5}) {
		t.Fatalf("handlers removed for %v, want [5]", got)
	}

	// Never registered: no-op.
	f.sc.RemoveCacheContext(&CacheContext{ID: 77})
	f.sc.RemoveCacheContext(nil)
	if got := f.io.removedIDs(); !slices.Equal(got, []int32{5}) {
		t.Fatalf("handlers removed for %v, want [5]", got)
	}
}

func TestAddCacheContext_ConcurrentSameID(t *testing.T) {
	f := newFixture()
	const workers = 32
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := f.sc.AddCacheContext(&CacheContext{ID: 9, Name: fmt.Sprintf("c%d", i)})
			switch {
			case err == nil:
				succeeded.Add(1)
			case IsCode(err, CacheIDConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if succeeded.Load() != 1 || conflicts.Load() != workers-1 {
		t.Fatalf("got %d successes and %d conflicts", succeeded.Load(), conflicts.Load())
	}
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	f := newFixture()
	const n = 200
	caches := make([]*CacheContext, n)
	for i := range caches {
		caches[i] = &CacheContext{ID: int32(i + 1), Name: fmt.Sprintf("cache-%d", i)}
	}
	var wg sync.WaitGroup
	for _, c := range caches {
		wg.Add(1)
		go func(c *CacheContext) {
			defer wg.Done()
			if err := f.sc.AddCacheContext(c); err != nil {
				t.Errorf("add %s: %v", c.Name, err)
			}
		}(c)
	}
	wg.Wait()

	for i, c := range caches {
		if i%2 == 0 {
			continue
		}
		wg.Add(1)
		go func(c *CacheContext) {
			defer wg.Done()
			f.sc.RemoveCacheContext(c)
		}(c)
	}
	wg.Wait()

	if got := len(f.sc.CacheContexts()); got != n/2 {
		t.Fatalf("got %d contexts, want %d", got, n/2)
	}
	if got := len(f.io.removedIDs()); got != n/2 {
		t.Fatalf("got %d handler removals, want %d", got, n/2)
	}
}

func TestDataCenterID(t *testing.T) {
	f := newFixture()
	if _, ok := f.sc.DataCenterID(); ok {
		t.Fatalf("expected no data center without caches")
	}
	if err := f.sc.AddCacheContext(&CacheContext{ID: 3, Name: "x", DataCenterID: 7}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if id, ok := f.sc.DataCenterID(); !ok || id != 7 {
		t.Fatalf("got %d, %v want 7, true", id, ok)
	}
}

func TestPreloadExchangeTimeout(t *testing.T) {
	l := &callLog{}
	sc, err := NewSharedContext(SharedContextOptions{
		NetworkTimeout: time.Second,
		Managers: Managers{
			Mvcc:     &fakeMvcc{fakeManager: newFakeManager("mvcc", l)},
			Tx:       &fakeTxManager{fakeManager: newFakeManager("tx", l)},
			Exchange: newFakeExchange(l),
			Io:       &fakeIo{fakeManager: newFakeManager("io", l)},
		},
		NewExchangeManager: func() ExchangeManager { return newFakeExchange(l) },
	})
	if err != nil {
		t.Fatalf("NewSharedContext failed: %v", err)
	}
	if got := sc.PreloadExchangeTimeout(); got != 4*time.Second {
		t.Fatalf("no caches: got %v want 4s", got)
	}
	for i := 0; i < 3; i++ {
		if err := sc.AddCacheContext(&CacheContext{ID: int32(i + 1), Name: fmt.Sprint(i)}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if got := sc.PreloadExchangeTimeout(); got != 6*time.Second {
		t.Fatalf("three caches: got %v want 6s", got)
	}
}
