package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInArrivalOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(16)
	go l.Run(ctx)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	for i := range got {
		if got[i] != i {
			t.Fatalf("out of order: %v", got)
		}
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 callbacks, got %d", len(got))
	}
}

func TestLoopSerializesConcurrentSubmitters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(0)
	go l.Run(ctx)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(ctx, func() { counter++ })
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
}

func TestDoAfterStop(t *testing.T) {
	l := New(1)
	go l.Run(context.Background())
	l.Stop()
	l.Stop()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	l.Post(func() { t.Errorf("posted callback ran after stop") })
}
