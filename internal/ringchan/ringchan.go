// Package ringchan provides a bounded channel that overwrites its oldest
// element instead of blocking the producer.
package ringchan

import "sync/atomic"

// Ring is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Writers never block: when the buffer is full the oldest value is discarded.
// Readers use C() like a normal channel.
//
//	r := ringchan.New[[]byte](4)
//	r.Send(payload)      // never blocks
//	for v := range r.C() {
//	    deliver(v)
//	}
//
// A Ring expects a single producer. Concurrent producers are safe but may
// discard more than one value when racing on a full buffer.
type Ring[T any] struct {
	ch    chan T
	stats Stats
}

// Stats are lock-free counters describing Ring traffic
type Stats struct {
	Written     int64
	Overwritten int64
}

// New creates a Ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the receive side.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Send inserts v, discarding the oldest element when full.
// Reports whether a value was discarded.
func (r *Ring[T]) Send(v T) (dropped bool) {
	for {
		select {
		case r.ch <- v:
			atomic.AddInt64(&r.stats.Written, 1)
			return dropped
		default:
		}

		select {
		case <-r.ch:
			atomic.AddInt64(&r.stats.Overwritten, 1)
			dropped = true
		default:
			// a reader drained it in between; retry the send
		}
	}
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return cap(r.ch)
}

// Close closes the channel. Send panics afterwards.
func (r *Ring[T]) Close() {
	close(r.ch)
}

// Stats returns a snapshot of the counters.
func (r *Ring[T]) Stats() Stats {
	return Stats{
		Written:     atomic.LoadInt64(&r.stats.Written),
		Overwritten: atomic.LoadInt64(&r.stats.Overwritten),
	}
}
