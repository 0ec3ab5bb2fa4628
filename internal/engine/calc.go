package engine

import (
	"github.com/shopspring/decimal"

	"github.com/seenimoa/cryptoverlay/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// ChangePct returns the percentage change of price against the reference
// open: (price - reference) / reference * 100. It is nil unless both values
// are present and reference is positive.
func ChangePct(price, reference *float64) *float64 {
	if price == nil || reference == nil || *reference <= 0 {
		return nil
	}
	p := decimal.NewFromFloat(*price)
	r := decimal.NewFromFloat(*reference)
	pct, _ := p.Sub(r).Div(r).Mul(hundred).Float64()
	return models.Float(pct)
}

// PremiumPct returns the premium of the secondary price over the primary
// price converted to local currency:
//
//	local = price * rate
//	(secondary - local) / local * 100
//
// It is nil when price or secondary is absent, when rate is not positive, or
// when the converted price is zero.
func PremiumPct(price *float64, rate float64, secondary *float64) *float64 {
	if price == nil || secondary == nil || rate <= 0 {
		return nil
	}
	local := decimal.NewFromFloat(*price).Mul(decimal.NewFromFloat(rate))
	if local.Sign() <= 0 {
		return nil
	}
	s := decimal.NewFromFloat(*secondary)
	pct, _ := s.Sub(local).Div(local).Mul(hundred).Float64()
	return models.Float(pct)
}
