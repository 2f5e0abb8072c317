package countdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	ticks []int
}

func (r *recorder) BroadcastCountdown(tick int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, tick)
}

func (r *recorder) got() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.ticks))
	copy(out, r.ticks)
	return out
}

func TestRun_TicksDownToZero(t *testing.T) {
	rec := &recorder{}
	r := New(rec, time.Millisecond, 10)

	if err := r.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := rec.got()
	want := []int{3, 2, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("ticks: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tick %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRun_ZeroDuration(t *testing.T) {
	rec := &recorder{}
	r := New(rec, time.Hour, 10)

	start := time.Now()
	if err := r.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run(0) waited %v; no wait expected after the final tick", elapsed)
	}
	if got := rec.got(); len(got) != 1 || got[0] != 0 {
		t.Errorf("ticks: got %v, want [0]", got)
	}
}

func TestRun_OutOfRange(t *testing.T) {
	r := New(&recorder{}, time.Millisecond, 5)
	for _, d := range []int{-1, 6} {
		if err := r.Run(context.Background(), d); err == nil {
			t.Errorf("Run(%d): expected error", d)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	rec := &recorder{}
	r := New(rec, time.Hour, 10)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 5) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := rec.got(); len(got) != 1 || got[0] != 5 {
		t.Errorf("ticks before cancel: got %v, want [5]", got)
	}
}
