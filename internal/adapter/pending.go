package adapter

import (
	"context"
	"sync"
	"sync/atomic"
)

// outcome is what a partner callback delivers to a waiting operation
type outcome[T any] struct {
	value T
	err   error
}

// Settlement states of a pending operation
const (
	pendingOpen int32 = iota
	pendingDelivered
	pendingAbandoned
)

// pending bridges a partner callback to a blocked caller. Only the first resolution is
// delivered; later calls are dropped. A caller that gives up claims the slot, so a
// callback arriving afterwards learns its result went nowhere.
type pending[T any] struct {
	once  sync.Once
	ch    chan outcome[T]
	state atomic.Int32
}

func newPending[T any]() *pending[T] {
	return &pending[T]{ch: make(chan outcome[T], 1)}
}

// resolve delivers a value and reports whether this call was the one that resumed the caller
func (p *pending[T]) resolve(value T) bool {
	return p.complete(outcome[T]{value: value})
}

// reject delivers an error and reports whether this call was the one that resumed the caller
func (p *pending[T]) reject(err error) bool {
	return p.complete(outcome[T]{err: err})
}

func (p *pending[T]) complete(o outcome[T]) bool {
	resumed := false
	p.once.Do(func() {
		p.state.Store(pendingDelivered)
		p.ch <- o
		resumed = true
	})
	return resumed
}

// delivered reports whether a callback outcome reached the caller
func (p *pending[T]) delivered() bool {
	return p.state.Load() == pendingDelivered
}

// abandoned reports whether the caller stopped waiting before any outcome arrived
func (p *pending[T]) abandoned() bool {
	return p.state.Load() == pendingAbandoned
}

// wait blocks until the operation is resolved or ctx is done. Abandoning the wait does not
// cancel the partner request. If an outcome lands at the same moment ctx ends, the outcome wins.
func (p *pending[T]) wait(ctx context.Context) (T, error) {
	select {
	case o := <-p.ch:
		return o.value, o.err
	case <-ctx.Done():
		claimed := false
		p.once.Do(func() {
			p.state.Store(pendingAbandoned)
			claimed = true
		})
		if !claimed {
			o := <-p.ch
			return o.value, o.err
		}
		var zero T
		return zero, ctx.Err()
	}
}
