// Package trade validates and applies buys and sells against a curve.
package trade

import (
	"time"

	"github.com/shopspring/decimal"

	"agent-pump/internal/curve"
	"agent-pump/internal/domain"
	"agent-pump/internal/idhash"
)

// Executor applies trades to a CurveState. It performs every check before
// touching the curve, so a rejected trade leaves the state unchanged.
//
// Executor does not serialize access; callers must hold the curve exclusively
// for the duration of a call.
type Executor struct {
	sellFee decimal.Decimal
	nowFn   func() int64
}

// NewExecutor creates an executor using the sell fee from policy.
func NewExecutor(policy curve.Policy) *Executor {
	return &Executor{
		sellFee: policy.SellFee,
		nowFn:   func() int64 { return time.Now().UnixMilli() },
	}
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Executor) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().UnixMilli() }
		return
	}
	e.nowFn = now
}

// Execute dispatches a request to Buy or Sell.
func (e *Executor) Execute(c *domain.CurveState, req domain.TradeRequest) (*domain.TradeResult, error) {
	switch req.Side {
	case domain.SideBuy:
		return e.Buy(c, req.Amount, req.LimitPrice)
	case domain.SideSell:
		return e.Sell(c, req.Amount, req.LimitPrice)
	default:
		return nil, domain.NewTradeError(domain.KindInvalidAmount, c.Mint, "unknown side %q", req.Side)
	}
}

// Buy issues amount tokens. If maxPrice is set the trade is rejected when the
// quoted cost exceeds it. Crossing the migration threshold marks the curve
// migrated in the same step.
func (e *Executor) Buy(c *domain.CurveState, amount int64, maxPrice *decimal.Decimal) (*domain.TradeResult, error) {
	if c.IsMigrated {
		return nil, domain.NewTradeError(domain.KindCurveMigrated, c.Mint, "trading has moved off the curve")
	}
	if amount <= 0 {
		return nil, domain.NewTradeError(domain.KindInvalidAmount, c.Mint, "amount must be positive, got %d", amount)
	}
	if amount > c.Params.MaxSupply-c.CurrentSupply {
		return nil, domain.NewTradeError(domain.KindSupplyExceeded, c.Mint,
			"supply %d + amount %d exceeds max %d", c.CurrentSupply, amount, c.Params.MaxSupply)
	}

	cost := c.QuoteBuy(amount)
	if maxPrice != nil && cost.GreaterThan(*maxPrice) {
		return nil, domain.NewTradeError(domain.KindSlippageExceeded, c.Mint, "cost %s above max %s", cost, *maxPrice)
	}

	prev := c.CurrentSupply
	c.CurrentSupply += amount
	threshold := c.Params.MigrationThreshold
	migrated := prev < threshold && threshold <= c.CurrentSupply
	if migrated {
		c.IsMigrated = true
	}

	return e.record(c, domain.SideBuy, amount, cost, prev, migrated), nil
}

// Sell burns amount tokens. If minPrice is set the trade is rejected when the
// quoted proceeds fall below it. Selling never clears the migrated flag.
func (e *Executor) Sell(c *domain.CurveState, amount int64, minPrice *decimal.Decimal) (*domain.TradeResult, error) {
	if c.IsMigrated {
		return nil, domain.NewTradeError(domain.KindCurveMigrated, c.Mint, "trading has moved off the curve")
	}
	if amount <= 0 {
		return nil, domain.NewTradeError(domain.KindInvalidAmount, c.Mint, "amount must be positive, got %d", amount)
	}
	if amount > c.CurrentSupply {
		return nil, domain.NewTradeError(domain.KindInsufficientSupply, c.Mint,
			"amount %d exceeds supply %d", amount, c.CurrentSupply)
	}

	proceeds := c.QuoteSellWithFee(amount, e.sellFee)
	if minPrice != nil && proceeds.LessThan(*minPrice) {
		return nil, domain.NewTradeError(domain.KindSlippageExceeded, c.Mint, "proceeds %s below min %s", proceeds, *minPrice)
	}

	prev := c.CurrentSupply
	c.CurrentSupply -= amount

	return e.record(c, domain.SideSell, amount, proceeds, prev, false), nil
}

func (e *Executor) record(c *domain.CurveState, side domain.Side, amount int64, total decimal.Decimal, prev int64, migrated bool) *domain.TradeResult {
	now := e.nowFn()
	c.TradeSeq++
	c.UpdatedAt = now

	return &domain.TradeResult{
		Mint:           c.Mint,
		Side:           side,
		FilledAmount:   amount,
		TotalPrice:     total,
		PreviousSupply: prev,
		NewSupply:      c.CurrentSupply,
		Migrated:       migrated,
		Seq:            c.TradeSeq,
		FillID:         idhash.ComputeFillID(c.Mint, c.TradeSeq),
		ExecutedAt:     now,
	}
}
