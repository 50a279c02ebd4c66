package domain

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade against the curve.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// TradeRequest is a buy or sell order against a single curve. LimitPrice is
// the maximum total cost for buys and the minimum total proceeds for sells;
// nil means unbounded.
type TradeRequest struct {
	Mint       string
	Side       Side
	Amount     int64
	LimitPrice *decimal.Decimal
}

// TradeResult is the outcome of an executed trade. Trades are all-or-nothing,
// so FilledAmount always equals the requested amount.
type TradeResult struct {
	Mint           string          `json:"mint"`
	Side           Side            `json:"side"`
	FilledAmount   int64           `json:"filled_amount"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	PreviousSupply int64           `json:"previous_supply"`
	NewSupply      int64           `json:"new_supply"`
	Migrated       bool            `json:"migrated"` // this trade crossed the migration threshold
	Seq            int64           `json:"seq"`
	FillID         string          `json:"fill_id"`
	ExecutedAt     int64           `json:"executed_at"` // Unix ms
}

// Fill is the append-only record of an executed trade.
// Corresponds to trade_fills table in ClickHouse.
type Fill struct {
	FillID       string          // SHA256(mint|seq)
	Mint         string          // token mint address
	AgentID      string          // launching agent credited with the volume
	Side         Side            // buy | sell
	Amount       int64           // tokens filled
	TotalPrice   decimal.Decimal // SOL paid or received
	SupplyBefore int64
	SupplyAfter  int64
	Migrated     bool
	Seq          int64 // per-mint sequence, starting at 1
	Timestamp    int64 // Unix timestamp in milliseconds
}

// NewFill builds the fill record for a result on the given curve.
func NewFill(c *CurveState, r *TradeResult) *Fill {
	return &Fill{
		FillID:       r.FillID,
		Mint:         r.Mint,
		AgentID:      c.AgentID,
		Side:         r.Side,
		Amount:       r.FilledAmount,
		TotalPrice:   r.TotalPrice,
		SupplyBefore: r.PreviousSupply,
		SupplyAfter:  r.NewSupply,
		Migrated:     r.Migrated,
		Seq:          r.Seq,
		Timestamp:    r.ExecutedAt,
	}
}

// VolumeBucket aggregates fills of one mint over a fixed interval.
type VolumeBucket struct {
	Mint            string          `json:"mint"`
	TimestampMs     int64           `json:"timestamp_ms"` // bucket start
	IntervalSeconds int             `json:"interval_seconds"`
	Volume          decimal.Decimal `json:"volume"`
	BuyVolume       decimal.Decimal `json:"buy_volume"`
	SellVolume      decimal.Decimal `json:"sell_volume"`
	TradeCount      int             `json:"trade_count"`
}
