package stream

import (
	"fmt"

	"crossspread-arb/internal/book"
	"crossspread-arb/internal/product"
)

// wireProduct is the JSON-serialized form of a canonical Product sent
// over /stream/v1.
type wireProduct struct {
	Underlying string `json:"underlying"`
	Settlement string `json:"settlement"`
	Strike     string `json:"strike"`
	Expiration string `json:"expiration"`
	OptionType string `json:"option_type"`
}

// wireOpportunity is the JSON frame pushed to every /stream/v1
// subscriber, matching spec.md §6's field list exactly.
type wireOpportunity struct {
	Product      wireProduct `json:"product"`
	BuyExchange  string      `json:"buy_exchange"`
	SellExchange string      `json:"sell_exchange"`
	BuyPrice     string      `json:"buy_price"`
	SellPrice    string      `json:"sell_price"`
	Size         string      `json:"size"`
}

func toWireOpportunity(opp book.ArbitrageOpportunity) wireOpportunity {
	return wireOpportunity{
		Product:      toWireProduct(opp.Product),
		BuyExchange:  string(opp.BuyExchange),
		SellExchange: string(opp.SellExchange),
		BuyPrice:     opp.BuyPrice.String(),
		SellPrice:    opp.SellPrice.String(),
		Size:         opp.Size.String(),
	}
}

func toWireProduct(p product.Product) wireProduct {
	return wireProduct{
		Underlying: string(p.Underlying),
		Settlement: string(p.Settlement),
		Strike:     p.Strike,
		Expiration: fmt.Sprintf("%04d-%02d-%02d", p.Expiration.Year, int(p.Expiration.Month), p.Expiration.Day),
		OptionType: string(p.OptionType),
	}
}
