package book

import (
	"crossspread-arb/internal/product"
	"crossspread-arb/pkg/money"
)

// ArbitrageOpportunity describes a detected cross-venue mispricing: buying
// on buy_exchange and selling on sell_exchange locks in sell_price -
// buy_price per unit, up to size units. sell_price is always strictly
// greater than buy_price and size is always strictly positive; both are
// invariants of every value this package emits, never of input data.
type ArbitrageOpportunity struct {
	Product      product.Product `json:"product"`
	BuyExchange  product.Exchange `json:"buy_exchange"`
	SellExchange product.Exchange `json:"sell_exchange"`
	BuyPrice     money.Decimal    `json:"buy_price"`
	SellPrice    money.Decimal    `json:"sell_price"`
	Size         money.Decimal    `json:"size"`
}

// checkArbitrage compares the Okex and Deribit books for one product and
// returns the single opportunity to report, if any. Two candidate
// directions are possible (buy Okex/sell Deribit, or buy Deribit/sell
// Okex); at most one is reported even if both are technically valid,
// with candidate1 (buy Okex, sell Deribit) taking priority, exactly as
// the tie-break rule requires.
func checkArbitrage(p product.Product, okexBook, deribitBook *OrderBook) (ArbitrageOpportunity, bool) {
	okexAsk, hasOkexAsk := okexBook.BestAsk()
	okexBid, hasOkexBid := okexBook.BestBid()
	deribitAsk, hasDeribitAsk := deribitBook.BestAsk()
	deribitBid, hasDeribitBid := deribitBook.BestBid()

	// candidate1: buy Okex ask, sell Deribit bid.
	if hasOkexAsk && hasDeribitBid && money.GreaterThan(deribitBid.Price, okexAsk.Price) {
		return ArbitrageOpportunity{
			Product:      p,
			BuyExchange:  product.Okex,
			SellExchange: product.Deribit,
			BuyPrice:     okexAsk.Price,
			SellPrice:    deribitBid.Price,
			Size:         money.Min(okexAsk.Size, deribitBid.Size),
		}, true
	}

	// candidate2: buy Deribit ask, sell Okex bid.
	if hasDeribitAsk && hasOkexBid && money.GreaterThan(okexBid.Price, deribitAsk.Price) {
		return ArbitrageOpportunity{
			Product:      p,
			BuyExchange:  product.Deribit,
			SellExchange: product.Okex,
			BuyPrice:     deribitAsk.Price,
			SellPrice:    okexBid.Price,
			Size:         money.Min(deribitAsk.Size, okexBid.Size),
		}, true
	}

	return ArbitrageOpportunity{}, false
}
