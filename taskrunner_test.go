package grid

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestForEach_Limit(t *testing.T) {
	var inFlight, peak atomic.Int32
	err := ForEach(context.Background(), 2, []int{1, 2, 3, 4, 5, 6}, func(ctx context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds limit", peak.Load())
	}
}

func TestTaskRunner_FirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	tr := NewTaskRunner(context.Background(), 0)
	tr.Go(func(ctx context.Context) error { return boom })
	tr.Go(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("context not cancelled")
		}
	})
	if err := tr.Wait(); !errors.Is(err, boom) {
		t.Fatalf("got %v want %v", err, boom)
	}
}
