package book

import (
	"crossspread-arb/internal/appctx"
	"crossspread-arb/internal/bus"
	"crossspread-arb/internal/metrics"
	"crossspread-arb/internal/product"

	"github.com/rs/zerolog/log"
)

// OpportunitySink is the fan-out publisher's receiving side. Publish
// reports false when there are no current subscribers; the manager logs
// that at warn level and otherwise ignores it, per the no-subscribers
// handling rule.
type OpportunitySink interface {
	Publish(ArbitrageOpportunity) (delivered bool)
}

// Manager is the single writer of every OrderBook: it owns the book map
// outright, so no locking is needed around book mutation. It consumes
// OrderBookUpdate values from the internal bus and, after applying each
// one, re-evaluates arbitrage for the affected product.
type Manager struct {
	books map[product.ExchangeProduct]*OrderBook
	sink  OpportunitySink
}

// NewManager constructs a Manager publishing detected opportunities to sink.
func NewManager(sink OpportunitySink) *Manager {
	return &Manager{
		books: make(map[product.ExchangeProduct]*OrderBook),
		sink:  sink,
	}
}

// bookFor returns the book for key, creating an empty one on first use.
func (m *Manager) bookFor(key product.ExchangeProduct) *OrderBook {
	b, ok := m.books[key]
	if !ok {
		b = newOrderBook()
		m.books[key] = b
	}
	return b
}

// ApplyUpdate applies one update and re-evaluates arbitrage for its
// product. It is not safe for concurrent use: callers must only invoke it
// from the manager's single consuming goroutine (see Run).
func (m *Manager) ApplyUpdate(upd OrderBookUpdate) {
	m.bookFor(upd.ExchangeProduct).Apply(upd)
	m.checkAndPublish(upd.ExchangeProduct.Product)
}

// checkAndPublish re-evaluates the two-venue arbitrage condition for p and
// forwards any detected opportunity to the sink.
func (m *Manager) checkAndPublish(p product.Product) {
	okexBook := m.bookFor(product.ExchangeProduct{Exchange: product.Okex, Product: p})
	deribitBook := m.bookFor(product.ExchangeProduct{Exchange: product.Deribit, Product: p})

	opp, found := checkArbitrage(p, okexBook, deribitBook)
	if !found {
		return
	}

	metrics.ArbitrageOpportunitiesDetected.WithLabelValues(string(opp.BuyExchange), string(opp.SellExchange)).Inc()

	if !m.sink.Publish(opp) {
		metrics.ArbitrageOpportunitiesDroppedNoSubscribers.WithLabelValues().Inc()
		log.Warn().
			Str("underlying", string(p.Underlying)).
			Str("strike", p.Strike).
			Msg("arbitrage opportunity detected but no subscribers to receive it")
	}
}

// Run consumes updates from receiver until shutdown is signalled. This is
// the manager's single consuming goroutine; ApplyUpdate must never be
// called from anywhere else.
func (m *Manager) Run(ctx *appctx.Context, receiver *bus.Receiver[OrderBookUpdate]) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-receiver.C():
			if !ok {
				return
			}
			m.ApplyUpdate(upd)
		}
	}
}
