package engine

import (
	"fmt"
	"math"
	"math/bits"
)

// Config is the static trade pair configuration. Prices and amounts are
// fixed-point integers: prices carry QuoteDecimals, quantities carry
// BaseDecimals. Min/Max trade amounts bound the quote value of an order,
// fee rates are in basis points.
type Config struct {
	ID    string
	Base  string
	Quote string

	BaseDecimals  int
	QuoteDecimals int

	TickSize       int64
	MinTradeAmount int64
	MaxTradeAmount int64

	MakerFeeBps int64
	TakerFeeBps int64
}

func (c Config) Validate() error {
	if c.ID == "" || c.Base == "" || c.Quote == "" {
		return fmt.Errorf("pair %q: id and assets are required", c.ID)
	}
	if c.BaseDecimals < 0 || c.BaseDecimals > 18 || c.QuoteDecimals < 0 || c.QuoteDecimals > 18 {
		return fmt.Errorf("pair %s: decimals out of range", c.ID)
	}
	if c.TickSize <= 0 {
		return fmt.Errorf("pair %s: tick size must be positive", c.ID)
	}
	if c.MinTradeAmount <= 0 || c.MaxTradeAmount < c.MinTradeAmount {
		return fmt.Errorf("pair %s: bad trade amount bounds", c.ID)
	}
	if c.MakerFeeBps < 0 || c.TakerFeeBps < 0 {
		return fmt.Errorf("pair %s: negative fee rate", c.ID)
	}
	return nil
}

func (c Config) baseScale() int64 {
	return pow10(c.BaseDecimals)
}

// QuoteAmount converts a (price, qty) pair into quote units, flooring.
// High-decimal pairs can overflow the raw product for values whose
// quotient still fits, so the multiply runs at 128 bits. Results beyond
// int64 saturate and fail the max trade amount check downstream.
func (c Config) QuoteAmount(price, qty int64) int64 {
	return mulDiv(price, qty, c.baseScale())
}

// fee floors so that rounding never manufactures value.
func fee(quoteAmt, bps int64) int64 {
	return mulDiv(quoteAmt, bps, 10000)
}

// mulDiv computes a*b/den for non-negative inputs with a 128-bit
// intermediate, saturating at MaxInt64.
func mulDiv(a, b, den int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(den) {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uint64(den))
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
