package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"agent-pump/internal/curve"
)

// CurveConfig is the caller-facing curve definition in human units.
type CurveConfig struct {
	Type               curve.Type      `json:"type"`
	BasePrice          decimal.Decimal `json:"base_price"` // SOL per token at supply 0
	Slope              decimal.Decimal `json:"slope"`
	MaxSupply          int64           `json:"max_supply"`
	MigrationThreshold int64           `json:"migration_threshold"`
}

// Params converts the config to stored curve params. Base price is scaled to
// lamports and slope to thousandths; finer precision is truncated, and a
// non-zero value that truncates to zero is rejected.
func (c CurveConfig) Params() (CurveParams, error) {
	if c.BasePrice.IsNegative() {
		return CurveParams{}, NewTradeError(KindInvalidCurveParams, "", "base price %s is negative", c.BasePrice)
	}
	if c.Slope.IsNegative() {
		return CurveParams{}, NewTradeError(KindInvalidCurveParams, "", "slope %s is negative", c.Slope)
	}
	lamports := c.BasePrice.Mul(curve.LamportsPerSOL).IntPart()
	if c.BasePrice.IsPositive() && lamports == 0 {
		return CurveParams{}, NewTradeError(KindInvalidCurveParams, "", "base price %s is below one lamport", c.BasePrice)
	}
	slopeMilli := c.Slope.Mul(curve.SlopeScale).IntPart()
	if c.Slope.IsPositive() && slopeMilli == 0 {
		return CurveParams{}, NewTradeError(KindInvalidCurveParams, "", "slope %s is below the 0.001 step", c.Slope)
	}
	p := CurveParams{
		Type:               c.Type,
		BasePriceLamports:  lamports,
		SlopeMilli:         slopeMilli,
		MaxSupply:          c.MaxSupply,
		MigrationThreshold: c.MigrationThreshold,
	}
	return p, p.Validate()
}

// CurveParams are the immutable parameters of a launched curve, in the
// integer units stored on the curve account.
type CurveParams struct {
	Type               curve.Type
	BasePriceLamports  int64
	SlopeMilli         int64 // slope × 1000
	MaxSupply          int64
	MigrationThreshold int64
}

// BasePrice returns the base price in SOL.
func (p CurveParams) BasePrice() decimal.Decimal {
	return decimal.NewFromInt(p.BasePriceLamports).Div(curve.LamportsPerSOL)
}

// Slope returns the unscaled slope.
func (p CurveParams) Slope() decimal.Decimal {
	return decimal.NewFromInt(p.SlopeMilli).Div(curve.SlopeScale)
}

// Shape returns the pricing variant for these params.
func (p CurveParams) Shape() curve.Shape {
	return curve.NewShape(p.Type, p.MigrationThreshold, p.Slope())
}

// Validate rejects params a curve cannot be launched with.
func (p CurveParams) Validate() error {
	switch {
	case !p.Type.IsValid():
		return NewTradeError(KindInvalidCurveParams, "", "unknown curve type %q", p.Type)
	case p.MaxSupply <= 0:
		return NewTradeError(KindInvalidCurveParams, "", "max supply must be positive, got %d", p.MaxSupply)
	case p.MigrationThreshold <= 0 || p.MigrationThreshold > p.MaxSupply:
		return NewTradeError(KindInvalidCurveParams, "", "migration threshold %d outside (0, %d]", p.MigrationThreshold, p.MaxSupply)
	case p.BasePriceLamports < 0:
		return NewTradeError(KindInvalidCurveParams, "", "base price is negative")
	case p.SlopeMilli < 0:
		return NewTradeError(KindInvalidCurveParams, "", "slope is negative")
	}
	return nil
}

// LaunchMetadata is free-form token presentation data.
type LaunchMetadata struct {
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Twitter     string `json:"twitter,omitempty"`
	Discord     string `json:"discord,omitempty"`
}

// LaunchParams describes a token launch request.
type LaunchParams struct {
	Name     string
	Symbol   string
	AgentID  string
	Curve    CurveConfig
	Metadata LaunchMetadata
}

// Validate checks identity fields. Curve params are checked by CurveConfig.Params.
func (p LaunchParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewTradeError(KindInvalidCurveParams, "", "name is required")
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return NewTradeError(KindInvalidCurveParams, "", "symbol is required")
	}
	if strings.TrimSpace(p.AgentID) == "" {
		return NewTradeError(KindInvalidCurveParams, "", "agent id is required")
	}
	return nil
}

// CurveState is the mutable state of one token's curve.
// Corresponds to curves table in PostgreSQL.
type CurveState struct {
	Mint          string // token mint address, primary key
	Address       string // derived curve account address
	AgentID       string // launching agent
	Name          string
	Symbol        string
	Metadata      LaunchMetadata
	Params        CurveParams
	CurrentSupply int64 // 0 <= CurrentSupply <= Params.MaxSupply
	IsMigrated    bool  // sticky once set
	TradeSeq      int64 // number of fills applied
	CreatedAt     int64 // Unix timestamp in milliseconds
	UpdatedAt     int64 // Unix timestamp in milliseconds
}

// NewCurveState creates the initial state of a freshly launched curve.
func NewCurveState(mint, address string, p LaunchParams, params CurveParams, now int64) *CurveState {
	return &CurveState{
		Mint:      mint,
		Address:   address,
		AgentID:   p.AgentID,
		Name:      p.Name,
		Symbol:    p.Symbol,
		Metadata:  p.Metadata,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PriceDecimals is the fractional precision of quotes and fill prices. It
// matches the NUMERIC(38,18) and Decimal(38,18) storage columns.
const PriceDecimals int32 = 18

// QuoteBuy returns the cost of buying amount tokens at the current supply.
func (c *CurveState) QuoteBuy(amount int64) decimal.Decimal {
	return curve.BuyPrice(c.Params.Shape(), c.CurrentSupply, amount, c.Params.BasePrice(), c.Params.Slope()).
		Round(PriceDecimals)
}

// QuoteSell returns the proceeds of selling amount tokens under the default sell fee.
func (c *CurveState) QuoteSell(amount int64) decimal.Decimal {
	return c.QuoteSellWithFee(amount, curve.DefaultPolicy.SellFee)
}

// QuoteSellWithFee returns sell proceeds with an explicit non-linear sell fee.
func (c *CurveState) QuoteSellWithFee(amount int64, fee decimal.Decimal) decimal.Decimal {
	return curve.SellPrice(c.Params.Shape(), c.CurrentSupply, amount, c.Params.BasePrice(), c.Params.Slope(), fee).
		Round(PriceDecimals)
}

// CurrentPrice returns the cost of the next single token.
func (c *CurveState) CurrentPrice() decimal.Decimal {
	return c.QuoteBuy(1)
}

// Validate checks the supply invariants against the params.
func (c *CurveState) Validate() error {
	if c.CurrentSupply < 0 || c.CurrentSupply > c.Params.MaxSupply {
		return NewTradeError(KindInvalidCurveParams, c.Mint, "supply %d outside [0, %d]", c.CurrentSupply, c.Params.MaxSupply)
	}
	return c.Params.Validate()
}

// TokenInfo is the read-only view of a launched token.
type TokenInfo struct {
	Mint               string          `json:"mint"`
	CurveAddress       string          `json:"curve_address"`
	AgentID            string          `json:"agent_id"`
	Name               string          `json:"name"`
	Symbol             string          `json:"symbol"`
	CurveType          curve.Type      `json:"curve_type"`
	Supply             int64           `json:"supply"`
	MaxSupply          int64           `json:"max_supply"`
	MigrationThreshold int64           `json:"migration_threshold"`
	Price              decimal.Decimal `json:"price"`
	IsMigrated         bool            `json:"is_migrated"`
	Metadata           LaunchMetadata  `json:"metadata"`
}

// Info builds the TokenInfo view of the curve.
func (c *CurveState) Info() TokenInfo {
	return TokenInfo{
		Mint:               c.Mint,
		CurveAddress:       c.Address,
		AgentID:            c.AgentID,
		Name:               c.Name,
		Symbol:             c.Symbol,
		CurveType:          c.Params.Type,
		Supply:             c.CurrentSupply,
		MaxSupply:          c.Params.MaxSupply,
		MigrationThreshold: c.Params.MigrationThreshold,
		Price:              c.CurrentPrice(),
		IsMigrated:         c.IsMigrated,
		Metadata:           c.Metadata,
	}
}
