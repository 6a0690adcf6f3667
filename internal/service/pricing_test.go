package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePricing(t *testing.T) {
	for i := 0; i < 3; i++ {
		p := ComputePricing(1000, 3)
		assert.Equal(t, Pricing{UnitCents: 1000, SubtotalCents: 3000, TaxCents: 300, TotalCents: 3300}, p)
	}
}

func TestComputePricingRoundsTaxHalfUp(t *testing.T) {
	// 3 x 0.15 = 0.45, tax 0.045 rounds to 0.05
	p := ComputePricing(15, 3)
	assert.Equal(t, int64(45), p.SubtotalCents)
	assert.Equal(t, int64(5), p.TaxCents)
	assert.Equal(t, int64(50), p.TotalCents)
	assert.Zero(t, p.DiscountCents)

	free := ComputePricing(0, 4)
	assert.Zero(t, free.TotalCents)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "33.00", FormatCents(3300))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-1.20", FormatCents(-120))
	assert.Equal(t, 33.0, CentsToAmount(3300))
}
