package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestSubmitReturnsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(ctx, 2, 8)

	got, err := Submit(ctx, p, func() (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestSubmitPropagatesError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(ctx, 2, 8)

	wantErr := errors.New("boom")
	_, err := Submit(ctx, p, func() (int, error) { return 0, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestSubmitConcurrentJobsAllComplete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(ctx, 4, 64)

	const n = 100
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Submit(ctx, p, func() (int, error) { return i * 2, nil })
			if err != nil {
				t.Errorf("submit %d: %v", i, err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		if v != i*2 {
			t.Fatalf("results[%d] = %d, want %d", i, v, i*2)
		}
	}
}
