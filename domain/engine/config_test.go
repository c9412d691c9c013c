package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteAmountFloors(t *testing.T) {
	c := Config{BaseDecimals: 2}
	assert.Equal(t, int64(1000), c.QuoteAmount(500, 200))
	// 500 * 33 = 16500, / 100 floors to 165.
	assert.Equal(t, int64(165), c.QuoteAmount(500, 33))
	assert.Equal(t, int64(0), c.QuoteAmount(3, 33))
}

func TestQuoteAmountSurvivesWideIntermediates(t *testing.T) {
	// 18-decimal pairs: the raw price*qty product exceeds int64 while the
	// quote amount itself is perfectly representable.
	c := Config{BaseDecimals: 18}
	price := int64(1_000_000_000_000_000_000)
	qty := int64(2_000_000_000_000_000_000)
	assert.Equal(t, int64(2_000_000_000_000_000_000), c.QuoteAmount(price, qty))

	// Amounts that genuinely exceed int64 saturate instead of wrapping
	// negative, so the max trade amount check rejects them.
	c = Config{BaseDecimals: 0}
	assert.Equal(t, int64(math.MaxInt64), c.QuoteAmount(math.MaxInt64, math.MaxInt64))
	assert.Greater(t, c.QuoteAmount(math.MaxInt64, 2), int64(0))
}

func TestFeeFloorsAndSurvivesWideIntermediates(t *testing.T) {
	assert.Equal(t, int64(2), fee(1000, 25))
	assert.Equal(t, int64(0), fee(399, 25))

	// quoteAmt*bps overflows int64; the fee itself does not.
	big := int64(1_000_000_000_000_000_000)
	assert.Equal(t, int64(2_500_000_000_000_000), fee(big, 25))
}
