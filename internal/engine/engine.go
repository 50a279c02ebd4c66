// Package engine launches tokens and executes trades against their curves.
//
// A trade runs inside CurveStore.Update, so validation and the supply change
// are applied as one unit per curve. Fills, ledger credit and event
// publishing follow the commit and never roll it back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"agent-pump/internal/address"
	"agent-pump/internal/curve"
	"agent-pump/internal/domain"
	"agent-pump/internal/events"
	"agent-pump/internal/ledger"
	"agent-pump/internal/observability"
	"agent-pump/internal/storage"
	"agent-pump/internal/trade"
)

// ErrEngineNotReady is returned when a required dependency is missing.
var ErrEngineNotReady = errors.New("engine: not ready")

// Options configures an Engine. Curves, Ledger and Deriver are required.
type Options struct {
	Curves    storage.CurveStore
	Fills     storage.FillStore // optional
	Ledger    *ledger.Ledger
	Deriver   *address.Deriver
	Policy    *curve.Policy // defaults to curve.DefaultPolicy
	Publisher *events.Fanout // optional
	Logger    *slog.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	curves    storage.CurveStore
	fills     storage.FillStore
	ledger    *ledger.Ledger
	deriver   *address.Deriver
	policy    curve.Policy
	executor  *trade.Executor
	publisher *events.Fanout
	logger    *slog.Logger

	nowFn  func() int64
	mintFn func() (string, error)
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Curves == nil || opts.Ledger == nil || opts.Deriver == nil {
		return nil, ErrEngineNotReady
	}
	policy := curve.DefaultPolicy
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("engine policy: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		curves:    opts.Curves,
		fills:     opts.Fills,
		ledger:    opts.Ledger,
		deriver:   opts.Deriver,
		policy:    policy,
		executor:  trade.NewExecutor(policy),
		publisher: opts.Publisher,
		logger:    logger.With("component", "engine"),
		nowFn:     func() int64 { return time.Now().UnixMilli() },
		mintFn:    address.NewMint,
	}, nil
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		return
	}
	e.nowFn = now
	e.executor.SetNowFunc(now)
}

// SetMintFunc overrides mint generation used for deterministic testing.
func (e *Engine) SetMintFunc(fn func() (string, error)) {
	if fn != nil {
		e.mintFn = fn
	}
}

// Policy returns the trade policy the engine was built with.
func (e *Engine) Policy() curve.Policy {
	return e.policy
}

// Launch creates a new curve with zero supply for a registered agent.
// Invalid params fail with domain.ErrInvalidCurveParams; an unknown agent
// fails with storage.ErrNotFound.
func (e *Engine) Launch(ctx context.Context, p domain.LaunchParams) (*domain.CurveState, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	params, err := p.Curve.Params()
	if err != nil {
		return nil, err
	}
	if _, err := e.ledger.Get(ctx, p.AgentID); err != nil {
		return nil, fmt.Errorf("launch agent %s: %w", p.AgentID, err)
	}

	mint, err := e.mintFn()
	if err != nil {
		return nil, fmt.Errorf("generate mint: %w", err)
	}
	addr, err := e.deriver.CurveAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive curve address: %w", err)
	}

	c := domain.NewCurveState(mint, addr, p, params, e.nowFn())
	if err := e.curves.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("insert curve %s: %w", mint, err)
	}

	if _, err := e.ledger.RecordLaunch(ctx, p.AgentID); err != nil {
		e.logger.Error("record launch failed", "mint", mint, "agent_id", p.AgentID, "error", err)
	}
	observability.RecordLaunch()

	e.logger.Info("token launched",
		"mint", mint,
		"symbol", p.Symbol,
		"agent_id", p.AgentID,
		"curve_type", params.Type.String(),
	)
	return c, nil
}

// Execute runs a buy or sell request against its curve.
func (e *Engine) Execute(ctx context.Context, req domain.TradeRequest) (*domain.TradeResult, error) {
	start := time.Now()
	side := req.Side.String()

	var (
		res  *domain.TradeResult
		fill *domain.Fill
	)
	_, err := e.curves.Update(ctx, req.Mint, func(c *domain.CurveState) error {
		r, err := e.executor.Execute(c, req)
		if err != nil {
			return err
		}
		res = r
		fill = domain.NewFill(c, r)
		return nil
	})
	if err != nil {
		if kind, ok := domain.KindOf(err); ok {
			observability.RecordTradeRejected(side, kind.String())
			e.logger.Debug("trade rejected", "mint", req.Mint, "side", side, "amount", req.Amount, "kind", kind.String())
			return nil, err
		}
		return nil, fmt.Errorf("%s %s: %w", side, req.Mint, err)
	}

	e.afterFill(ctx, fill)

	volume, _ := res.TotalPrice.Float64()
	observability.RecordTradeExecuted(side, volume, time.Since(start).Seconds())
	if res.Migrated {
		observability.RecordMigration()
		e.logger.Info("curve migrated", "mint", res.Mint, "supply", res.NewSupply)
	}
	return res, nil
}

// Buy issues amount tokens. A nil maxPrice leaves the cost unbounded.
func (e *Engine) Buy(ctx context.Context, mint string, amount int64, maxPrice *decimal.Decimal) (*domain.TradeResult, error) {
	return e.Execute(ctx, domain.TradeRequest{Mint: mint, Side: domain.SideBuy, Amount: amount, LimitPrice: maxPrice})
}

// Sell burns amount tokens. A nil minPrice leaves the proceeds unbounded.
func (e *Engine) Sell(ctx context.Context, mint string, amount int64, minPrice *decimal.Decimal) (*domain.TradeResult, error) {
	return e.Execute(ctx, domain.TradeRequest{Mint: mint, Side: domain.SideSell, Amount: amount, LimitPrice: minPrice})
}

// afterFill stores the fill, credits the launching agent and publishes the
// event. Failures are logged; the trade is already committed.
func (e *Engine) afterFill(ctx context.Context, fill *domain.Fill) {
	if e.fills != nil {
		if err := e.fills.Insert(ctx, fill); err != nil {
			e.logger.Error("store fill failed", "fill_id", fill.FillID, "mint", fill.Mint, "error", err)
		}
	}
	if _, err := e.ledger.RecordTrade(ctx, fill.AgentID, fill.TotalPrice); err != nil {
		e.logger.Error("record trade failed", "agent_id", fill.AgentID, "mint", fill.Mint, "error", err)
	}
	if e.publisher != nil {
		e.publisher.Publish(ctx, fill)
	}
}

// Quote prices a trade without executing it. Quotes on a migrated curve are
// still returned; only execution is refused.
func (e *Engine) Quote(ctx context.Context, mint string, side domain.Side, amount int64) (*Quote, error) {
	if amount <= 0 {
		return nil, domain.NewTradeError(domain.KindInvalidAmount, mint, "amount must be positive, got %d", amount)
	}
	c, err := e.curves.Get(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get curve %s: %w", mint, err)
	}

	q := &Quote{
		Mint:       mint,
		Side:       side,
		Amount:     amount,
		Supply:     c.CurrentSupply,
		IsMigrated: c.IsMigrated,
	}
	switch side {
	case domain.SideBuy:
		if amount > c.Params.MaxSupply-c.CurrentSupply {
			return nil, domain.NewTradeError(domain.KindSupplyExceeded, mint,
				"supply %d + amount %d exceeds max %d", c.CurrentSupply, amount, c.Params.MaxSupply)
		}
		q.TotalPrice = c.QuoteBuy(amount)
		q.LimitPrice = e.policy.MaxPrice(q.TotalPrice)
	case domain.SideSell:
		if amount > c.CurrentSupply {
			return nil, domain.NewTradeError(domain.KindInsufficientSupply, mint,
				"amount %d exceeds supply %d", amount, c.CurrentSupply)
		}
		q.TotalPrice = c.QuoteSellWithFee(amount, e.policy.SellFee)
		q.LimitPrice = e.policy.MinPrice(q.TotalPrice)
	default:
		return nil, domain.NewTradeError(domain.KindInvalidAmount, mint, "unknown side %q", side)
	}
	return q, nil
}

// Quote is a priced but unexecuted trade. LimitPrice is the default slippage
// bound a caller can pass back to Buy or Sell.
type Quote struct {
	Mint       string          `json:"mint"`
	Side       domain.Side     `json:"side"`
	Amount     int64           `json:"amount"`
	TotalPrice decimal.Decimal `json:"total_price"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Supply     int64           `json:"supply"`
	IsMigrated bool            `json:"is_migrated"`
}

// GetTokenInfo returns the read-only view of a launched token.
func (e *Engine) GetTokenInfo(ctx context.Context, mint string) (*domain.TokenInfo, error) {
	c, err := e.curves.Get(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get curve %s: %w", mint, err)
	}
	info := c.Info()
	return &info, nil
}

// TokensByAgent returns the tokens launched by an agent, oldest first.
func (e *Engine) TokensByAgent(ctx context.Context, agentID string) ([]domain.TokenInfo, error) {
	curves, err := e.curves.GetByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("get curves for agent %s: %w", agentID, err)
	}
	return infos(curves), nil
}

// Trending returns the tokens with the highest supply.
func (e *Engine) Trending(ctx context.Context, limit int) ([]domain.TokenInfo, error) {
	curves, err := e.ledger.Trending(ctx, limit)
	if err != nil {
		return nil, err
	}
	return infos(curves), nil
}

func infos(curves []*domain.CurveState) []domain.TokenInfo {
	out := make([]domain.TokenInfo, 0, len(curves))
	for _, c := range curves {
		out = append(out, c.Info())
	}
	return out
}

// RegisterAgent creates an agent record.
func (e *Engine) RegisterAgent(ctx context.Context, p ledger.RegisterParams) (*domain.AgentRecord, error) {
	rec, err := e.ledger.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	observability.RecordAgentRegistered()
	return rec, nil
}

// GetAgent returns an agent record. Returns storage.ErrNotFound if not exists.
func (e *Engine) GetAgent(ctx context.Context, id string) (*domain.AgentRecord, error) {
	return e.ledger.Get(ctx, id)
}

// SetAgentVerified records a verification decision made by an external authority.
func (e *Engine) SetAgentVerified(ctx context.Context, id string, verified bool) (*domain.AgentRecord, error) {
	return e.ledger.SetVerified(ctx, id, verified)
}

// FeaturedAgents returns agents at or above minReputation.
func (e *Engine) FeaturedAgents(ctx context.Context, minReputation int64, limit int) ([]*domain.AgentRecord, error) {
	return e.ledger.Featured(ctx, minReputation, limit)
}

// Fills returns the fills of a mint in sequence order. Returns an empty
// slice when no fill store is configured.
func (e *Engine) Fills(ctx context.Context, mint string) ([]*domain.Fill, error) {
	if e.fills == nil {
		return []*domain.Fill{}, nil
	}
	return e.fills.GetByMint(ctx, mint)
}

// Volume aggregates fills of a mint into fixed buckets over [start, end].
// Returns an empty slice when no fill store is configured.
func (e *Engine) Volume(ctx context.Context, mint string, intervalSeconds int, start, end int64) ([]*domain.VolumeBucket, error) {
	if e.fills == nil {
		return []*domain.VolumeBucket{}, nil
	}
	return e.fills.VolumeBuckets(ctx, mint, intervalSeconds, start, end)
}
