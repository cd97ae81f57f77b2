// Package dispatch provides a bounded worker pool that transport handlers
// submit ledger calls through, rather than calling internal/ledger
// directly off the HTTP goroutine. It is the named "worker-pool dispatch"
// collaborator of spec §6.
//
// Grounded on the teacher's trade.WSHub: a fixed-size goroutine pool reads
// off a buffered jobs channel rather than a channel-per-request fan-out, so
// a burst of requests queues instead of spawning unbounded goroutines.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/atmx/ledgercore/internal/metrics"
)

// ErrQueueFull is returned by Submit when the pool's own context is done
// (the pool is shutting down) before the job could be enqueued.
var ErrQueueFull = errors.New("dispatch: queue full")

// job is one unit of work: a thunk that touches the ledger and a channel to
// deliver its single result on.
type job struct {
	run    func() (any, error)
	result chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Pool is a fixed-size pool of workers draining a buffered job queue.
type Pool struct {
	jobs  chan job
	group *errgroup.Group
	ctx   context.Context
}

// New starts n workers bound to ctx's lifetime; they exit when ctx is
// canceled. queueDepth bounds how many submitted-but-not-yet-run jobs may
// be outstanding before Submit starts blocking until room frees up, the
// caller's ctx is done, or the pool shuts down (ErrQueueFull).
func New(ctx context.Context, n, queueDepth int) *Pool {
	group, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		jobs:  make(chan job, queueDepth),
		group: group,
		ctx:   gctx,
	}
	for i := 0; i < n; i++ {
		group.Go(p.worker)
	}
	return p
}

func (p *Pool) worker() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case j := <-p.jobs:
			metrics.DispatchQueueDepth.Set(float64(len(p.jobs)))
			value, err := j.run()
			j.result <- jobResult{value: value, err: err}
		}
	}
}

// Submit enqueues fn and blocks until a worker has run it and produced a
// result, ctx is canceled, or the pool itself is shutting down.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	result := make(chan jobResult, 1)
	j := job{
		run: func() (any, error) {
			v, err := fn()
			return v, err
		},
		result: result,
	}

	select {
	case p.jobs <- j:
		metrics.DispatchQueueDepth.Set(float64(len(p.jobs)))
	case <-ctx.Done():
		return zero, fmt.Errorf("dispatch: submit: %w", ctx.Err())
	case <-p.ctx.Done():
		return zero, ErrQueueFull
	}

	select {
	case r := <-result:
		if r.err != nil {
			return zero, r.err
		}
		return r.value.(T), nil
	case <-ctx.Done():
		return zero, fmt.Errorf("dispatch: await result: %w", ctx.Err())
	}
}

// Wait blocks until every worker has exited, e.g. after the pool's context
// is canceled during shutdown.
func (p *Pool) Wait() error {
	return p.group.Wait()
}
