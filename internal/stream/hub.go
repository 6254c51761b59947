// Package stream implements the lossy fan-out publisher and the single
// /stream/v1 outbound WebSocket endpoint, grounded on the hub/client
// broadcast pattern used for dashboard push elsewhere in the ecosystem,
// adapted to retain only the most recent items for a lagging subscriber
// instead of disconnecting it.
package stream

import (
	"encoding/json"
	"sync"

	"crossspread-arb/internal/book"
	"crossspread-arb/internal/metrics"

	"github.com/rs/zerolog/log"
)

// retainedPerSubscriber bounds how many of the most recent opportunities
// a lagging subscriber's buffer holds before the oldest is dropped to
// make room for the newest.
const retainedPerSubscriber = 256

// Hub is the fan-out publisher: every detected ArbitrageOpportunity
// passed to Publish is forwarded to every current subscriber. A
// subscriber that cannot keep up never blocks the hub — the hub drops
// its oldest buffered item and keeps going, so subscribers observe a gap
// ("lagged") rather than the hub stalling.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ch     chan []byte
	lagged bool
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

// Subscribe registers a new subscriber and returns a handle to receive
// from and a function to unregister it. Every inbound /stream/v1
// connection calls this once.
func (h *Hub) Subscribe() (*subscriber, func()) {
	s := &subscriber{ch: make(chan []byte, retainedPerSubscriber)}

	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()
	metrics.StreamSubscribers.Inc()

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subscribers, s)
		h.mu.Unlock()
		metrics.StreamSubscribers.Dec()
	}
	return s, unsubscribe
}

// C returns the channel a subscriber's serving goroutine should select on
// alongside the connection's close signal.
func (s *subscriber) C() <-chan []byte {
	return s.ch
}

// Publish implements book.OpportunitySink: it serializes opp to JSON and
// forwards it to every current subscriber, returning false if there were
// none to receive it (the manager logs that at warn level and otherwise
// ignores it).
func (h *Hub) Publish(opp book.ArbitrageOpportunity) bool {
	payload, err := json.Marshal(toWireOpportunity(opp))
	if err != nil {
		log.Error().Err(err).Msg("stream: failed to marshal arbitrage opportunity")
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subscribers) == 0 {
		return false
	}

	for s := range h.subscribers {
		h.deliver(s, payload)
	}
	return true
}

// deliver pushes payload to s without ever blocking: if s's buffer is
// full, the oldest buffered item is dropped to make room, so s only ever
// sees the most recent retainedPerSubscriber items.
func (h *Hub) deliver(s *subscriber, payload []byte) {
	select {
	case s.ch <- payload:
		return
	default:
	}

	select {
	case <-s.ch:
	default:
	}

	if !s.lagged {
		s.lagged = true
		log.Warn().Msg("stream: subscriber is lagging, dropping oldest buffered opportunity")
	}

	select {
	case s.ch <- payload:
	default:
	}
}
