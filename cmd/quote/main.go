// Package main prints an offline quote table for a curve configuration.
//
// Usage:
//
//	quote -type linear -base 1 -slope 0.001 -max-supply 1000000 -threshold 500000 -amount 1000 -steps 10
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"agent-pump/internal/curve"
	"agent-pump/internal/domain"
)

func main() {
	curveType := flag.String("type", "linear", "Curve type: linear, exponential, sigmoid")
	base := flag.String("base", "1", "Base price in SOL")
	slope := flag.String("slope", "0.001", "Curve slope")
	maxSupply := flag.Int64("max-supply", 1_000_000, "Maximum supply")
	threshold := flag.Int64("threshold", 500_000, "Migration threshold")
	amount := flag.Int64("amount", 1000, "Trade size quoted at each row")
	steps := flag.Int("steps", 10, "Number of supply rows")
	sellFee := flag.String("sell-fee", curve.DefaultPolicy.SellFee.String(), "Sell fee for non-linear curves")
	flag.Parse()

	if err := run(*curveType, *base, *slope, *maxSupply, *threshold, *amount, *steps, *sellFee); err != nil {
		fmt.Fprintf(os.Stderr, "quote: %v\n", err)
		os.Exit(1)
	}
}

func run(typ, base, slope string, maxSupply, threshold, amount int64, steps int, sellFee string) error {
	t, err := curve.ParseType(typ)
	if err != nil {
		return err
	}
	basePrice, err := decimal.NewFromString(base)
	if err != nil {
		return fmt.Errorf("invalid -base: %w", err)
	}
	slopeDec, err := decimal.NewFromString(slope)
	if err != nil {
		return fmt.Errorf("invalid -slope: %w", err)
	}
	fee, err := decimal.NewFromString(sellFee)
	if err != nil {
		return fmt.Errorf("invalid -sell-fee: %w", err)
	}
	if amount <= 0 || steps <= 0 {
		return fmt.Errorf("-amount and -steps must be positive")
	}

	params, err := domain.CurveConfig{
		Type:               t,
		BasePrice:          basePrice,
		Slope:              slopeDec,
		MaxSupply:          maxSupply,
		MigrationThreshold: threshold,
	}.Params()
	if err != nil {
		return err
	}

	c := domain.NewCurveState("", "", domain.LaunchParams{}, params, 0)

	fmt.Printf("%s curve: base=%s SOL slope=%s max_supply=%d threshold=%d\n\n",
		params.Type, params.BasePrice(), params.Slope(), params.MaxSupply, params.MigrationThreshold)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "supply\tprice\tbuy %d\tsell %d\tmigrated\t\n", amount, amount)

	stride := maxSupply / int64(steps)
	if stride == 0 {
		stride = 1
	}
	for s := int64(0); s <= maxSupply; s += stride {
		c.CurrentSupply = s

		buy := "-"
		if amount <= maxSupply-s {
			buy = c.QuoteBuy(amount).StringFixed(6)
		}
		sell := "-"
		if amount <= s {
			sell = c.QuoteSellWithFee(amount, fee).StringFixed(6)
		}
		migrated := ""
		if s >= threshold {
			migrated = "yes"
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", s, c.CurrentPrice().StringFixed(9), buy, sell, migrated)
	}
	return w.Flush()
}
