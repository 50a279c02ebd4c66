// Package curve implements bonding curve pricing.
//
// Every function here is pure: given the curve shape, the current supply and
// an amount, it returns the definite price integral over [supply, supply+amount).
// Bounds checking (max supply, available supply) is the caller's job.
package curve

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Type identifies the marginal price function of a curve.
type Type string

const (
	TypeLinear      Type = "linear"
	TypeExponential Type = "exponential"
	TypeSigmoid     Type = "sigmoid"
)

// String returns the string representation of Type.
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the type is a known curve shape.
func (t Type) IsValid() bool {
	return t == TypeLinear || t == TypeExponential || t == TypeSigmoid
}

// ParseType parses a curve type name, case-insensitive.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown curve type %q", s)
	}
	return t, nil
}

var (
	two      = decimal.NewFromInt(2)
	ten      = decimal.NewFromInt(10)
	half     = decimal.NewFromInt(500)
	thousand = decimal.NewFromInt(1000)
)

// ExponentialScale normalizes slope·supply in the exponential multiplier.
var ExponentialScale = thousand

// Shape is the pricing variant of a curve. Only sigmoid curves use
// Midpoint and Growth.
type Shape struct {
	Type     Type
	Midpoint decimal.Decimal
	Growth   decimal.Decimal
}

// NewShape builds the shape for a curve type. The sigmoid midpoint sits at
// half the migration threshold and its growth parameter is the slope.
func NewShape(t Type, migrationThreshold int64, slope decimal.Decimal) Shape {
	s := Shape{Type: t}
	if t == TypeSigmoid {
		s.Midpoint = decimal.NewFromInt(migrationThreshold).Div(two)
		s.Growth = slope
	}
	return s
}

// BuyPrice returns the total cost of buying amount tokens starting at supply.
// An amount of zero costs nothing.
func BuyPrice(shape Shape, supply, amount int64, basePrice, slope decimal.Decimal) decimal.Decimal {
	if amount == 0 {
		return decimal.Zero
	}
	s := decimal.NewFromInt(supply)
	a := decimal.NewFromInt(amount)

	switch shape.Type {
	case TypeLinear:
		return linearPrice(s, a, basePrice, slope)
	case TypeExponential:
		return exponentialPrice(s, a, basePrice, slope)
	case TypeSigmoid:
		return sigmoidPrice(s, a, basePrice, shape)
	default:
		return decimal.Zero
	}
}

// SellPrice returns the proceeds of selling amount tokens when the curve is at
// supply. Linear curves integrate the same curve over [supply-amount, supply).
// Other shapes take the buy cost from supply and deduct sellFee (0.01 = 1%).
func SellPrice(shape Shape, supply, amount int64, basePrice, slope, sellFee decimal.Decimal) decimal.Decimal {
	if amount == 0 {
		return decimal.Zero
	}
	if shape.Type == TypeLinear {
		return BuyPrice(shape, supply-amount, amount, basePrice, slope)
	}
	return BuyPrice(shape, supply, amount, basePrice, slope).Mul(decimal.NewFromInt(1).Sub(sellFee))
}

// MarginalPrice returns the cost of the next single token.
func MarginalPrice(shape Shape, supply int64, basePrice, slope decimal.Decimal) decimal.Decimal {
	return BuyPrice(shape, supply, 1, basePrice, slope)
}

// linearPrice is the trapezoid rule over a linear marginal price, exact for
// this shape.
func linearPrice(supply, amount, basePrice, slope decimal.Decimal) decimal.Decimal {
	start := basePrice.Add(slope.Mul(supply))
	end := basePrice.Add(slope.Mul(supply.Add(amount)))
	return start.Add(end).Mul(amount).Div(two)
}

// exponentialPrice is a midpoint approximation: the multiplier is evaluated
// at supply + amount/2 and applied to the whole amount.
func exponentialPrice(supply, amount, basePrice, slope decimal.Decimal) decimal.Decimal {
	mid := supply.Add(amount.Div(two))
	multiplier := decimal.NewFromInt(1).Add(slope.Mul(mid).Div(ExponentialScale))
	return basePrice.Mul(multiplier).Mul(amount)
}

func sigmoidPrice(supply, amount, basePrice decimal.Decimal, shape Shape) decimal.Decimal {
	current := SigmoidFactor(supply, shape.Midpoint, shape.Growth)
	future := SigmoidFactor(supply.Add(amount), shape.Midpoint, shape.Growth)
	return basePrice.Mul(ten).Mul(future.Sub(current))
}

// SigmoidFactor is the piecewise S-curve used by sigmoid pricing. It is 0 at
// x = 0, 500 at the midpoint and approaches 500 + 500·growth far past it.
//
// A growth of zero is evaluated as its limit: a step from 0 to 500 at the
// midpoint. A zero midpoint is rejected when the curve is created.
func SigmoidFactor(x, midpoint, growth decimal.Decimal) decimal.Decimal {
	if growth.Sign() == 0 {
		if x.GreaterThanOrEqual(midpoint) {
			return half
		}
		return decimal.Zero
	}
	if x.GreaterThanOrEqual(midpoint) {
		over := x.Sub(midpoint)
		denom := midpoint.Add(over.Div(growth))
		if denom.Sign() == 0 {
			return half
		}
		return half.Add(half.Mul(over).Div(denom))
	}
	under := midpoint.Sub(x)
	denom := midpoint.Add(under.Div(growth))
	return half.Mul(x).Div(denom)
}
