// Package bus implements the internal MPSC message bus that carries
// OrderBookUpdate values from every venue adapter to the single
// OrderBookManager consumer. Capacity is bounded; a full bus drops the
// newest message and reports the drop to the producer (which logs the
// warning) rather than blocking it or growing without limit.
package bus

import "sync"

const defaultCapacity = 5000

// Bus is a many-producer, single-consumer channel wrapper. Its Sender
// method hands out producer handles, any number of them and safe for
// concurrent producers; its Receiver method hands out the single
// consuming end, which may only be taken once: this models
// the take-once channel-endpoint convention used throughout the service
// (the MPSC write queue in wsconsumer follows the same rule). A second
// call to Receiver after the first is a programming error and panics
// immediately rather than silently creating a second, starving consumer.
type Bus[T any] struct {
	ch       chan T
	takeOnce sync.Once
	taken    bool
}

// New constructs a Bus with the default bounded capacity (5000), the value
// spec.md mandates for the internal message bus.
func New[T any]() *Bus[T] {
	return NewWithCapacity[T](defaultCapacity)
}

// NewWithCapacity constructs a Bus with an explicit bounded capacity,
// mainly for tests that want to exercise overflow behaviour without
// pushing thousands of messages.
func NewWithCapacity[T any](capacity int) *Bus[T] {
	return &Bus[T]{ch: make(chan T, capacity)}
}

// Sender returns a handle producers use to publish messages. It may be
// called any number of times and from any goroutine.
func (b *Bus[T]) Sender() *Sender[T] {
	return &Sender[T]{ch: b.ch}
}

// Receiver returns the single consuming handle for this bus. Calling it a
// second time panics: the bus has exactly one consumer by construction,
// and a second take almost always indicates a wiring bug rather than a
// legitimate second reader.
func (b *Bus[T]) Receiver() *Receiver[T] {
	var r *Receiver[T]
	b.takeOnce.Do(func() {
		b.taken = true
		r = &Receiver[T]{ch: b.ch}
	})
	if r == nil {
		panic("bus: Receiver already taken")
	}
	return r
}

// Sender publishes messages onto a Bus without blocking. A full bus drops
// the message; callers should log at the call site if they want to
// surface the drop (check Send's return value).
type Sender[T any] struct {
	ch chan<- T
}

// Send attempts to enqueue msg, returning false if the bus is full. It
// never blocks.
func (s *Sender[T]) Send(msg T) (delivered bool) {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Receiver is the single consuming end of a Bus.
type Receiver[T any] struct {
	ch <-chan T
}

// C exposes the underlying channel for use in a select statement
// alongside a shutdown signal.
func (r *Receiver[T]) C() <-chan T {
	return r.ch
}
