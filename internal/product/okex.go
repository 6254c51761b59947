package product

import (
	"fmt"
	"strings"
	"time"

	"crossspread-arb/pkg/money"
)

// ParseOkexID parses an Okex instrument id of the form
// UND-SET-YYMMDD-STRIKE-C|P (5 dash-separated fields, date as %y%m%d) into
// a canonical Product. Any malformed id returns an error; callers must
// drop the update and log the error rather than panic.
func ParseOkexID(id string) (Product, error) {
	fields := strings.Split(id, "-")
	if len(fields) != 5 {
		return Product{}, fmt.Errorf("product: okex id %q: expected 5 fields, got %d", id, len(fields))
	}

	underlying, err := parseCryptoAsset(fields[0])
	if err != nil {
		return Product{}, fmt.Errorf("product: okex id %q: %w", id, err)
	}
	settlement, err := parseSettlementAsset(fields[1])
	if err != nil {
		return Product{}, fmt.Errorf("product: okex id %q: %w", id, err)
	}
	expiration, err := parseOkexDate(fields[2])
	if err != nil {
		return Product{}, fmt.Errorf("product: okex id %q: %w", id, err)
	}
	strike, err := money.ParseToken(fields[3])
	if err != nil {
		return Product{}, fmt.Errorf("product: okex id %q: %w", id, err)
	}
	optionType, err := parseOptionType(fields[4])
	if err != nil {
		return Product{}, fmt.Errorf("product: okex id %q: %w", id, err)
	}

	return NewProduct(underlying, settlement, strike, expiration, optionType), nil
}

// FormatOkexID reformats a Product back into Okex's instrument-id
// convention. Used by tests asserting parse<->format round-trips.
func FormatOkexID(p Product) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		p.Underlying, p.Settlement, formatOkexDate(p.Expiration), p.Strike, p.OptionType)
}

func parseOkexDate(s string) (Date, error) {
	if len(s) != 6 {
		return Date{}, fmt.Errorf("expected YYMMDD date, got %q", s)
	}
	t, err := time.Parse("060102", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid YYMMDD date %q: %w", s, err)
	}
	return dateOf(t), nil
}

func formatOkexDate(d Date) string {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Format("060102")
}
