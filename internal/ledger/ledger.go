// Package ledger keeps per-agent aggregates and the featured/trending listings.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agent-pump/internal/address"
	"agent-pump/internal/domain"
	"agent-pump/internal/storage"
)

const (
	// DefaultFeaturedReputation is the reputation an agent needs to be featured.
	DefaultFeaturedReputation int64 = 2500

	// DefaultListLimit caps featured and trending listings when no limit is given.
	DefaultListLimit = 10

	maxAgentIDLen = 32
)

var (
	errInvalidAgent  = errors.New("ledger: invalid agent")
	errInvalidVolume = errors.New("ledger: volume must not be negative")
)

// IsInvalidAgent reports whether err came from agent registration validation.
func IsInvalidAgent(err error) bool {
	return errors.Is(err, errInvalidAgent)
}

// Options configures a Ledger.
type Options struct {
	Agents      storage.AgentStore
	Curves      storage.CurveStore
	Deriver     *address.Deriver
	Reputation  ReputationFunc // defaults to DefaultReputation
	LaunchBonus int64          // reputation added per launch by a verified agent
	Logger      *slog.Logger
}

// Ledger tracks agent reputation, launches and volume.
type Ledger struct {
	agents      storage.AgentStore
	curves      storage.CurveStore
	deriver     *address.Deriver
	reputation  ReputationFunc
	launchBonus int64
	logger      *slog.Logger
	nowFn       func() int64
}

// New creates a Ledger.
func New(opts Options) *Ledger {
	rep := opts.Reputation
	if rep == nil {
		rep = DefaultReputation
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		agents:      opts.Agents,
		curves:      opts.Curves,
		deriver:     opts.Deriver,
		reputation:  rep,
		launchBonus: opts.LaunchBonus,
		logger:      logger.With("component", "ledger"),
		nowFn:       func() int64 { return time.Now().UnixMilli() },
	}
}

// SetNowFunc overrides the time source used for deterministic testing.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now != nil {
		l.nowFn = now
	}
}

// RegisterParams describes a new agent.
type RegisterParams struct {
	ID       string
	Owner    string
	Name     string
	Metadata string
}

// Register creates an agent with zeroed aggregates.
// Returns storage.ErrDuplicateKey if the id is taken.
func (l *Ledger) Register(ctx context.Context, p RegisterParams) (*domain.AgentRecord, error) {
	id := strings.TrimSpace(p.ID)
	switch {
	case id == "":
		return nil, fmt.Errorf("%w: id is required", errInvalidAgent)
	case len(id) > maxAgentIDLen:
		return nil, fmt.Errorf("%w: id longer than %d bytes", errInvalidAgent, maxAgentIDLen)
	case strings.TrimSpace(p.Owner) == "":
		return nil, fmt.Errorf("%w: owner is required", errInvalidAgent)
	case strings.TrimSpace(p.Name) == "":
		return nil, fmt.Errorf("%w: name is required", errInvalidAgent)
	}

	var addr string
	if l.deriver != nil {
		a, err := l.deriver.AgentAddress(id)
		if err != nil {
			return nil, fmt.Errorf("derive agent address: %w", err)
		}
		addr = a
	}

	now := l.nowFn()
	rec := &domain.AgentRecord{
		ID:          id,
		Owner:       p.Owner,
		Name:        p.Name,
		Metadata:    p.Metadata,
		Address:     addr,
		TotalVolume: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.agents.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert agent %s: %w", id, err)
	}

	l.logger.Info("agent registered", "agent_id", id, "owner", p.Owner)
	return rec, nil
}

// Get returns an agent record. Returns storage.ErrNotFound if not exists.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.AgentRecord, error) {
	return l.agents.Get(ctx, id)
}

// RecordTrade adds volume to the agent's total and updates reputation in the
// same atomic step.
func (l *Ledger) RecordTrade(ctx context.Context, agentID string, volume decimal.Decimal) (*domain.AgentRecord, error) {
	if volume.IsNegative() {
		return nil, errInvalidVolume
	}
	now := l.nowFn()
	return l.agents.Update(ctx, agentID, func(a *domain.AgentRecord) error {
		total := a.TotalVolume.Add(volume)
		next := l.reputation(a.Reputation, a.TotalVolume, total)
		if next < a.Reputation {
			next = a.Reputation
		}
		a.TotalVolume = total
		a.Reputation = next
		a.UpdatedAt = now
		return nil
	})
}

// RecordLaunch increments the agent's launch count. Verified agents also
// receive the launch bonus.
func (l *Ledger) RecordLaunch(ctx context.Context, agentID string) (*domain.AgentRecord, error) {
	now := l.nowFn()
	return l.agents.Update(ctx, agentID, func(a *domain.AgentRecord) error {
		a.TotalLaunches++
		if a.IsVerified && l.launchBonus > 0 {
			a.Reputation += l.launchBonus
		}
		a.UpdatedAt = now
		return nil
	})
}

// SetVerified sets the verification flag. Verification is granted by an
// external authority; the ledger only records it.
func (l *Ledger) SetVerified(ctx context.Context, agentID string, verified bool) (*domain.AgentRecord, error) {
	now := l.nowFn()
	rec, err := l.agents.Update(ctx, agentID, func(a *domain.AgentRecord) error {
		a.IsVerified = verified
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("agent verification changed", "agent_id", agentID, "verified", verified)
	return rec, nil
}

// Featured returns agents with reputation >= minReputation, highest first.
// A non-positive limit means DefaultListLimit.
func (l *Ledger) Featured(ctx context.Context, minReputation int64, limit int) ([]*domain.AgentRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return l.agents.TopByReputation(ctx, minReputation, limit)
}

// Trending returns curves with the highest current supply. Supply stands in
// for recent activity; it is not a time-windowed volume.
// A non-positive limit means DefaultListLimit.
func (l *Ledger) Trending(ctx context.Context, limit int) ([]*domain.CurveState, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return l.curves.TopBySupply(ctx, limit)
}
