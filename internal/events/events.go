// Package events fans executed fills out to subscribers after commit.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"

	"agent-pump/internal/domain"
	"agent-pump/internal/observability"
)

// FillEvent is the wire form of an executed fill.
type FillEvent struct {
	Type         string          `json:"type"`
	FillID       string          `json:"fill_id"`
	Mint         string          `json:"mint"`
	AgentID      string          `json:"agent_id"`
	Side         domain.Side     `json:"side"`
	Amount       int64           `json:"amount"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	SupplyBefore int64           `json:"supply_before"`
	SupplyAfter  int64           `json:"supply_after"`
	Migrated     bool            `json:"migrated"`
	Seq          int64           `json:"seq"`
	Timestamp    int64           `json:"timestamp"`
}

// NewFillEvent converts a fill to its wire form.
func NewFillEvent(f *domain.Fill) FillEvent {
	return FillEvent{
		Type:         "fill",
		FillID:       f.FillID,
		Mint:         f.Mint,
		AgentID:      f.AgentID,
		Side:         f.Side,
		Amount:       f.Amount,
		TotalPrice:   f.TotalPrice,
		SupplyBefore: f.SupplyBefore,
		SupplyAfter:  f.SupplyAfter,
		Migrated:     f.Migrated,
		Seq:          f.Seq,
		Timestamp:    f.Timestamp,
	}
}

// Encode marshals the fill event as JSON.
func Encode(f *domain.Fill) ([]byte, error) {
	return json.Marshal(NewFillEvent(f))
}

// Publisher delivers fills to one sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, f *domain.Fill) error
}

// Fanout publishes each fill to every sink. Delivery is best-effort: a failing
// sink is logged and counted and never affects the others.
type Fanout struct {
	sinks  []Publisher
	logger *slog.Logger
}

// NewFanout creates a Fanout over sinks. Nil sinks are skipped.
func NewFanout(logger *slog.Logger, sinks ...Publisher) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{logger: logger.With("component", "events")}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Publish delivers fill to all sinks.
func (f *Fanout) Publish(ctx context.Context, fill *domain.Fill) {
	for _, s := range f.sinks {
		err := s.Publish(ctx, fill)
		observability.RecordEventPublished(s.Name(), err)
		if err != nil {
			f.logger.Warn("publish fill failed", "sink", s.Name(), "fill_id", fill.FillID, "error", err)
		}
	}
}
