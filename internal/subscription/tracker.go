// Package subscription tracks per-adapter subscription state: the
// declared set of products to subscribe, which ones are confirmed
// subscribed, and which have a subscribe request in flight. State is
// reset on every disconnect so a reconnect resubscribes cleanly.
package subscription

import "sync"

// Tracker holds ProductSubscription state for one adapter instance. It is
// safe for concurrent use since OnConnect/OnMessage/OnDisconnect can run
// from different points in the consumer's lifecycle relative to each
// other (OnMessage is sequential, but Reset from OnDisconnect must not
// race a delayed ack).
type Tracker struct {
	mu         sync.Mutex
	declared   []string
	subscribed map[string]bool
	inFlight   map[string]bool
}

// NewTracker declares the fixed set of product ids (Okex instrument ids
// or Deribit channel names) this adapter subscribes to. The declared set
// never changes at runtime; only subscribed/in-flight state does.
func NewTracker(declared []string) *Tracker {
	return &Tracker{
		declared:   append([]string(nil), declared...),
		subscribed: make(map[string]bool),
		inFlight:   make(map[string]bool),
	}
}

// PendingProducts returns every declared product that is neither
// subscribed nor already in flight, and marks nothing — callers must call
// MarkInFlight themselves once they've sent the request.
func (t *Tracker) PendingProducts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := make([]string, 0, len(t.declared))
	for _, id := range t.declared {
		if !t.subscribed[id] && !t.inFlight[id] {
			pending = append(pending, id)
		}
	}
	return pending
}

// MarkInFlight records that a subscribe request was just sent for ids.
func (t *Tracker) MarkInFlight(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		t.inFlight[id] = true
	}
}

// MarkSubscribed flips id to subscribed and clears its in-flight marker,
// called when the venue acknowledges the subscribe request.
func (t *Tracker) MarkSubscribed(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed[id] = true
	delete(t.inFlight, id)
}

// Reset clears both subscribed and in-flight state, called on every
// disconnect so the next connect cycle resubscribes from scratch.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed = make(map[string]bool)
	t.inFlight = make(map[string]bool)
}
