// Package ringchan provides a bounded channel that drops the oldest element
// instead of blocking the producer.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel. Producers never block: when the
// buffer is full the oldest element is discarded to make room.
//
//	rc := ringchan.New[Event](16)
//	rc.Send(ev)
//	for ev := range rc.C() {
//	    ...
//	}
type RingChannel[T any] struct {
	ch    chan T
	stats counters
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Reads through C are not counted in Stats.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, dropping the oldest element when full. It reports
// whether an element was dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	for {
		select {
		case rc.ch <- v:
			rc.stats.written.Add(1)
			return false
		default:
		}
		select {
		case <-rc.ch:
			rc.stats.dropped.Add(1)
			// a concurrent reader may have freed a slot meanwhile; retrying
			// keeps the newest value either way
			select {
			case rc.ch <- v:
				rc.stats.written.Add(1)
				return true
			default:
			}
		default:
		}
	}
}

// TrySend inserts v only when there is room.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		rc.stats.written.Add(1)
		return true
	default:
		return false
	}
}

// Receive blocks until a value is available. ok is false once the channel
// is closed and drained.
func (rc *RingChannel[T]) Receive() (v T, ok bool) {
	v, ok = <-rc.ch
	if ok {
		rc.stats.received.Add(1)
	}
	return
}

// TryReceive returns immediately with ok false when nothing is buffered.
func (rc *RingChannel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		if ok {
			rc.stats.received.Add(1)
		}
		return
	default:
		var zero T
		return zero, false
	}
}

func (rc *RingChannel[T]) Len() int { return len(rc.ch) }
func (rc *RingChannel[T]) Cap() int { return cap(rc.ch) }

// Close closes the channel. Sending afterwards panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Stats is a snapshot of the channel counters.
type Stats struct {
	Written  int64
	Dropped  int64
	Received int64
}

func (rc *RingChannel[T]) Stats() Stats {
	return Stats{
		Written:  rc.stats.written.Load(),
		Dropped:  rc.stats.dropped.Load(),
		Received: rc.stats.received.Load(),
	}
}

type counters struct {
	written  atomic.Int64
	dropped  atomic.Int64
	received atomic.Int64
}
