package future

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_ResolvesOnce(t *testing.T) {
	f := New[int]()
	if f.IsDone() {
		t.Fatalf("new future should not be done")
	}
	if !f.Complete(1) {
		t.Fatalf("first Complete should win")
	}
	if f.Complete(2) || f.Fail(errors.New("late")) {
		t.Fatalf("second resolution should be rejected")
	}
	v, err := f.Get(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("got (%v, %v), want (1, nil)", v, err)
	}
}

func TestFuture_LateListenerFires(t *testing.T) {
	f := Finished("ok")
	var got string
	f.Listen(func(v string, err error) { got = v })
	if got != "ok" {
		t.Fatalf("late listener got %q", got)
	}
}

func TestFuture_ListenersFireOnResolution(t *testing.T) {
	f := New[int]()
	calls := 0
	f.OnDone(func(err error) { calls++ })
	f.OnDone(func(err error) { calls++ })
	if calls != 0 {
		t.Fatalf("listeners fired before resolution")
	}
	f.Fail(errors.New("boom"))
	if calls != 2 {
		t.Fatalf("listeners fired %d times, want 2", calls)
	}
}

func TestFuture_FailNilIsStillFailure(t *testing.T) {
	f := Failed[int](nil)
	if !errors.Is(f.Err(), ErrNilFailure) {
		t.Fatalf("got %v, want ErrNilFailure", f.Err())
	}
}

func TestFuture_GetHonorsContext(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}

func TestAwait_Nil(t *testing.T) {
	if err := Await(context.Background(), nil); err != nil {
		t.Fatalf("await nil waiter: %v", err)
	}
}
