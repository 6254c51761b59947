package product

import (
	"fmt"
	"strconv"
	"strings"

	"crossspread-arb/pkg/money"
)

var deribitMonths = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

var deribitMonthNames = [13]string{
	"", "JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

// ParseDeribitID parses a Deribit instrument id of the form
// UND-DDMMMYY-STRIKE-C|P (4 dash-separated fields, date as %d%b%y with a
// 3-letter month) into a canonical Product. Deribit always settles
// options in USD, so settlement is not a field in its id. Any malformed
// id returns an error; the bad-date case in particular must drop the
// update and log the error rather than panic.
func ParseDeribitID(id string) (Product, error) {
	fields := strings.Split(id, "-")
	if len(fields) != 4 {
		return Product{}, fmt.Errorf("product: deribit id %q: expected 4 fields, got %d", id, len(fields))
	}

	underlying, err := parseCryptoAsset(fields[0])
	if err != nil {
		return Product{}, fmt.Errorf("product: deribit id %q: %w", id, err)
	}
	expiration, err := parseDeribitDate(fields[1])
	if err != nil {
		return Product{}, fmt.Errorf("product: deribit id %q: %w", id, err)
	}
	strike, err := money.ParseToken(fields[2])
	if err != nil {
		return Product{}, fmt.Errorf("product: deribit id %q: %w", id, err)
	}
	optionType, err := parseOptionType(fields[3])
	if err != nil {
		return Product{}, fmt.Errorf("product: deribit id %q: %w", id, err)
	}

	return NewProduct(underlying, USD, strike, expiration, optionType), nil
}

// FormatDeribitID reformats a Product back into Deribit's instrument-id
// convention.
func FormatDeribitID(p Product) string {
	return fmt.Sprintf("%s-%s-%s-%s", p.Underlying, formatDeribitDate(p.Expiration), p.Strike, p.OptionType)
}

func parseDeribitDate(s string) (Date, error) {
	if len(s) < 5 {
		return Date{}, fmt.Errorf("invalid DDMMMYY date %q", s)
	}
	day, err := strconv.Atoi(s[:len(s)-5])
	if err != nil {
		return Date{}, fmt.Errorf("invalid day in date %q: %w", s, err)
	}
	monthStr := strings.ToUpper(s[len(s)-5 : len(s)-2])
	month, ok := deribitMonths[monthStr]
	if !ok {
		return Date{}, fmt.Errorf("invalid month in date %q", s)
	}
	yearStr := s[len(s)-2:]
	yy, err := strconv.Atoi(yearStr)
	if err != nil {
		return Date{}, fmt.Errorf("invalid year in date %q: %w", s, err)
	}
	year := 2000 + yy

	if day < 1 || day > 31 {
		return Date{}, fmt.Errorf("invalid day in date %q", s)
	}

	return Date{Year: year, Month: monthOf(month), Day: day}, nil
}

func formatDeribitDate(d Date) string {
	yy := d.Year % 100
	return fmt.Sprintf("%d%s%02d", d.Day, deribitMonthNames[int(d.Month)], yy)
}
