package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"agent-pump/internal/curve"
)

func linearConfig() CurveConfig {
	return CurveConfig{
		Type:               curve.TypeLinear,
		BasePrice:          decimal.NewFromInt(1),
		Slope:              decimal.RequireFromString("0.001"),
		MaxSupply:          1_000_000,
		MigrationThreshold: 500_000,
	}
}

func TestCurveConfig_Params(t *testing.T) {
	p, err := linearConfig().Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if p.BasePriceLamports != 1_000_000_000 {
		t.Errorf("BasePriceLamports = %d, want 1000000000", p.BasePriceLamports)
	}
	if p.SlopeMilli != 1 {
		t.Errorf("SlopeMilli = %d, want 1", p.SlopeMilli)
	}
	if !p.BasePrice().Equal(decimal.NewFromInt(1)) {
		t.Errorf("BasePrice = %s, want 1", p.BasePrice())
	}
	if !p.Slope().Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("Slope = %s, want 0.001", p.Slope())
	}
}

func TestCurveConfig_ParamsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CurveConfig)
	}{
		{"zero max supply", func(c *CurveConfig) { c.MaxSupply = 0 }},
		{"zero threshold", func(c *CurveConfig) { c.MigrationThreshold = 0 }},
		{"threshold above max", func(c *CurveConfig) { c.MigrationThreshold = c.MaxSupply + 1 }},
		{"negative base", func(c *CurveConfig) { c.BasePrice = decimal.NewFromInt(-1) }},
		{"negative slope", func(c *CurveConfig) { c.Slope = decimal.RequireFromString("-0.5") }},
		{"unknown type", func(c *CurveConfig) { c.Type = "cubic" }},
		{"slope below step", func(c *CurveConfig) { c.Slope = decimal.RequireFromString("0.0005") }},
		{"base below one lamport", func(c *CurveConfig) { c.BasePrice = decimal.RequireFromString("0.0000000001") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := linearConfig()
			tt.mutate(&cfg)
			_, err := cfg.Params()
			if !errors.Is(err, ErrInvalidCurveParams) {
				t.Errorf("expected ErrInvalidCurveParams, got %v", err)
			}
			if kind, ok := KindOf(err); !ok || kind != KindInvalidCurveParams {
				t.Errorf("KindOf = %v, %v", kind, ok)
			}
		})
	}
}

func TestCurveConfig_ParamsTruncation(t *testing.T) {
	cfg := linearConfig()
	cfg.Slope = decimal.RequireFromString("0.0019")
	cfg.BasePrice = decimal.Zero

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if p.SlopeMilli != 1 || p.BasePriceLamports != 0 {
		t.Errorf("SlopeMilli = %d, BasePriceLamports = %d, want 1, 0", p.SlopeMilli, p.BasePriceLamports)
	}

	cfg.Slope = decimal.Zero
	if _, err := cfg.Params(); err != nil {
		t.Errorf("flat zero-priced curve must be accepted: %v", err)
	}
}

func TestCurveState_QuotePrecision(t *testing.T) {
	cfg := linearConfig()
	cfg.Type = curve.TypeSigmoid
	cfg.BasePrice = decimal.RequireFromString("0.000000007")
	cfg.Slope = decimal.RequireFromString("0.003")
	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	c := NewCurveState("mint1", "addr1", LaunchParams{Name: "A", Symbol: "A", AgentID: "agent"}, params, 1704067200000)
	c.CurrentSupply = 123_457

	raw := curve.BuyPrice(params.Shape(), c.CurrentSupply, 333, params.BasePrice(), params.Slope())
	buy := c.QuoteBuy(333)
	if !buy.Equal(raw.Round(PriceDecimals)) {
		t.Errorf("QuoteBuy = %s, want %s rounded to %d places", buy, raw, PriceDecimals)
	}
	if buy.Exponent() < -PriceDecimals {
		t.Errorf("QuoteBuy %s has more than %d fractional digits", buy, PriceDecimals)
	}
	if sell := c.QuoteSell(333); sell.Exponent() < -PriceDecimals {
		t.Errorf("QuoteSell %s has more than %d fractional digits", sell, PriceDecimals)
	}
}

func TestCurveState_Quotes(t *testing.T) {
	params, err := linearConfig().Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	c := NewCurveState("mint1", "addr1", LaunchParams{Name: "A", Symbol: "A", AgentID: "agent"}, params, 1704067200000)

	if got := c.QuoteBuy(1000); !got.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("QuoteBuy(1000) = %s, want 1500", got)
	}
	if got := c.CurrentPrice(); !got.Equal(decimal.RequireFromString("1.0005")) {
		t.Errorf("CurrentPrice = %s, want 1.0005", got)
	}

	c.CurrentSupply = 1000
	if got := c.QuoteSell(1000); !got.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("QuoteSell(1000) = %s, want 1500", got)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}

	c.CurrentSupply = params.MaxSupply + 1
	if err := c.Validate(); err == nil {
		t.Error("expected error for supply above max")
	}
}

func TestTradeError(t *testing.T) {
	err := NewTradeError(KindSlippageExceeded, "mintX", "cost %s above %s", "10", "9")

	if !errors.Is(err, ErrSlippageExceeded) {
		t.Error("errors.Is(ErrSlippageExceeded) = false")
	}
	if errors.Is(err, ErrCurveMigrated) {
		t.Error("errors.Is(ErrCurveMigrated) = true")
	}
	want := "slippage exceeded (mintX): cost 10 above 9"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if _, ok := KindOf(errors.New("other")); ok {
		t.Error("KindOf(plain error) reported a kind")
	}
}
