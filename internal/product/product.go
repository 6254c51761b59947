// Package product defines the canonical option-contract identity shared
// across venues and the two venue-specific instrument-id formats that
// parse into it.
package product

import (
	"fmt"
	"time"

	"crossspread-arb/pkg/money"
)

// CryptoAsset is an underlying deliverable asset.
type CryptoAsset string

const (
	BTC CryptoAsset = "BTC"
	ETH CryptoAsset = "ETH"
)

func parseCryptoAsset(s string) (CryptoAsset, error) {
	switch CryptoAsset(s) {
	case BTC, ETH:
		return CryptoAsset(s), nil
	default:
		return "", fmt.Errorf("product: unknown underlying asset %q", s)
	}
}

// SettlementAsset is the currency an option settles in.
type SettlementAsset string

// USD is the only settlement asset this service understands.
const USD SettlementAsset = "USD"

func parseSettlementAsset(s string) (SettlementAsset, error) {
	if SettlementAsset(s) != USD {
		return "", fmt.Errorf("product: unknown settlement asset %q", s)
	}
	return USD, nil
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "C"
	Put  OptionType = "P"
)

func parseOptionType(s string) (OptionType, error) {
	switch OptionType(s) {
	case Call, Put:
		return OptionType(s), nil
	default:
		return "", fmt.Errorf("product: unknown option type %q", s)
	}
}

// Date is a calendar date with no time-of-day or location component, the
// comparable reduction of an expiration that both venues quote without a
// clock time.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func dateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func monthOf(n int) time.Month {
	return time.Month(n)
}

// Product is the canonical, venue-independent identity of an option
// contract. It is a comparable struct (strike held as a decimal string so
// two Products are `==`-comparable and usable as a map key) so it can be
// used directly as part of an ExchangeProduct map key.
type Product struct {
	Underlying  CryptoAsset
	Settlement  SettlementAsset
	Strike      string // canonical decimal.Decimal.String() form
	Expiration  Date
	OptionType  OptionType
}

// NewProduct builds a Product, canonicalizing strike to its decimal
// string form so two Products built from differently-formatted strike
// tokens (e.g. "66000" vs "66000.00") still compare equal.
func NewProduct(underlying CryptoAsset, settlement SettlementAsset, strike money.Decimal, expiration Date, optionType OptionType) Product {
	return Product{
		Underlying: underlying,
		Settlement: settlement,
		Strike:     strike.String(),
		Expiration: expiration,
		OptionType: optionType,
	}
}

// StrikeDecimal parses the canonical strike string back into a
// money.Decimal for arithmetic.
func (p Product) StrikeDecimal() (money.Decimal, error) {
	return money.ParseToken(p.Strike)
}

// Exchange identifies a venue.
type Exchange string

const (
	Okex    Exchange = "okex"
	Deribit Exchange = "deribit"
)

// ExchangeProduct is the hashable key into the order book store: a
// product as quoted on a specific venue.
type ExchangeProduct struct {
	Exchange Exchange
	Product  Product
}
