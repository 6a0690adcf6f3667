package service

import "fmt"

// TaxPercent is the flat tax applied to every booking subtotal.
const TaxPercent = 10

// Pricing holds the monetary fields of a booking, in cents.
type Pricing struct {
	UnitCents     int64
	SubtotalCents int64
	TaxCents      int64
	DiscountCents int64
	TotalCents    int64
}

// ComputePricing derives pricing from the unit price and ticket count.
// Tax is rounded half up to the nearest cent.  No discounts exist, so
// DiscountCents is always zero.
func ComputePricing(unitCents int64, tickets int) Pricing {
	subtotal := unitCents * int64(tickets)
	tax := (subtotal*TaxPercent + 50) / 100
	return Pricing{
		UnitCents:     unitCents,
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
	}
}

// FormatCents renders cents as a decimal amount, e.g. 3300 -> "33.00".
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// CentsToAmount converts cents to currency units for JSON responses.
func CentsToAmount(c int64) float64 { return float64(c) / 100 }
