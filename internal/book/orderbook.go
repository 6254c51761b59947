// Package book owns the single-writer OrderBookManager: the only
// component that ever mutates per-(venue, product) order book state. It
// applies inbound updates and re-evaluates arbitrage after every update.
package book

import (
	"crossspread-arb/internal/product"
	"crossspread-arb/pkg/money"
)

// Level is one price/size pair on a side of a book.
type Level struct {
	Price money.Decimal
	Size  money.Decimal
}

// OrderBookUpdate carries a batch of bid/ask level changes for a single
// ExchangeProduct. A zero size at a price means delete that level; any
// other size means upsert. Within one batch, a repeated price is
// last-write-wins (later entries in the slice override earlier ones).
type OrderBookUpdate struct {
	ExchangeProduct product.ExchangeProduct
	Bids            []Level
	Asks            []Level
}

// OrderBook is the order book for one product on one venue: bid/ask maps
// keyed by canonical price, zero-size levels never stored. The maps are
// unordered; BestBid/BestAsk find the best level by scanning.
type OrderBook struct {
	bids map[string]Level // keyed by canonical price
	asks map[string]Level
}

func newOrderBook() *OrderBook {
	return &OrderBook{
		bids: make(map[string]Level),
		asks: make(map[string]Level),
	}
}

// priceKey canonicalizes a price to a map key independent of how the
// originating wire token was formatted (e.g. "0.018" and "0.0180" must
// collide), by reducing to the underlying rational value.
func priceKey(p money.Decimal) string {
	return p.Rat().RatString()
}

func (b *OrderBook) applySide(side map[string]Level, levels []Level) {
	for _, lvl := range levels {
		key := priceKey(lvl.Price)
		if money.IsZero(lvl.Size) {
			delete(side, key)
			continue
		}
		side[key] = lvl
	}
}

// Apply upserts/deletes the levels in upd onto this book.
func (b *OrderBook) Apply(upd OrderBookUpdate) {
	b.applySide(b.bids, upd.Bids)
	b.applySide(b.asks, upd.Asks)
}

// BestBid returns the highest bid level and true, or the zero Level and
// false if the bid side is empty.
func (b *OrderBook) BestBid() (Level, bool) {
	return bestOf(b.bids, true)
}

// BestAsk returns the lowest ask level and true, or the zero Level and
// false if the ask side is empty.
func (b *OrderBook) BestAsk() (Level, bool) {
	return bestOf(b.asks, false)
}

// bestOf scans the side for its best level. wantMax selects bid semantics
// (highest price wins); otherwise the lowest price wins (ask semantics).
// A linear scan is enough at the depths these feeds carry.
func bestOf(side map[string]Level, wantMax bool) (Level, bool) {
	var best Level
	found := false
	for _, lvl := range side {
		if !found {
			best = lvl
			found = true
			continue
		}
		if wantMax && money.GreaterThan(lvl.Price, best.Price) {
			best = lvl
		} else if !wantMax && money.GreaterThan(best.Price, lvl.Price) {
			best = lvl
		}
	}
	return best, found
}

// BidCount and AskCount report the number of resting levels on each side,
// used by tests asserting no zero-size level is ever stored.
func (b *OrderBook) BidCount() int { return len(b.bids) }
func (b *OrderBook) AskCount() int { return len(b.asks) }
