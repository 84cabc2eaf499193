package parser

import (
	"regexp"
	"strings"
)

var (
	priceNumberPattern   = regexp.MustCompile(`\d[\d.,]*`)
	priceCurrencyPattern = regexp.MustCompile(`(?:^|[^A-Za-z])([A-Z]{3})(?:[^A-Za-z]|$)`)
)

// NormalizePrice keeps the leading numeric run and the first three-letter
// currency code found anywhere in the value, including codes touching the
// number: "12.00 USD USD", "USD 12.00" and "12.00USD" all become "12.00 USD".
// Values without digits are returned trimmed.
func NormalizePrice(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	number := priceNumberPattern.FindString(raw)
	if number == "" {
		return raw
	}
	number = strings.TrimRight(number, ".,")

	currency := priceCurrencyPattern.FindStringSubmatch(raw)
	if currency == nil {
		return number
	}

	return number + " " + currency[1]
}
