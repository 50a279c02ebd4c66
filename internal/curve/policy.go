package curve

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unit conversions between human-readable curve config and the integer
// values stored on the curve account.
var (
	LamportsPerSOL = decimal.NewFromInt(1_000_000_000)
	SlopeScale     = thousand
)

// Policy holds the fee and caller-side slippage defaults.
type Policy struct {
	// SellFee is deducted from non-linear sell quotes.
	SellFee decimal.Decimal `yaml:"sell_fee"`
	// BuySlippage widens a buy quote into a default maxPrice.
	BuySlippage decimal.Decimal `yaml:"buy_slippage"`
	// SellSlippage narrows a sell quote into a default minPrice.
	SellSlippage decimal.Decimal `yaml:"sell_slippage"`
}

// DefaultPolicy matches the reference client: 1% sell fee, 5% slippage both ways.
var DefaultPolicy = Policy{
	SellFee:      decimal.RequireFromString("0.01"),
	BuySlippage:  decimal.RequireFromString("0.05"),
	SellSlippage: decimal.RequireFromString("0.05"),
}

// Validate checks that every rate lies in [0, 1).
func (p Policy) Validate() error {
	one := decimal.NewFromInt(1)
	for name, v := range map[string]decimal.Decimal{
		"sell_fee":      p.SellFee,
		"buy_slippage":  p.BuySlippage,
		"sell_slippage": p.SellSlippage,
	} {
		if v.IsNegative() || v.GreaterThanOrEqual(one) {
			return fmt.Errorf("%s must be in [0, 1), got %s", name, v)
		}
	}
	return nil
}

// MaxPrice returns the default buy bound for a quoted cost.
func (p Policy) MaxPrice(quote decimal.Decimal) decimal.Decimal {
	return quote.Mul(decimal.NewFromInt(1).Add(p.BuySlippage))
}

// MinPrice returns the default sell bound for quoted proceeds.
func (p Policy) MinPrice(quote decimal.Decimal) decimal.Decimal {
	return quote.Mul(decimal.NewFromInt(1).Sub(p.SellSlippage))
}
