package domain

import (
	"github.com/shopspring/decimal"
)

// AgentRecord holds the lifetime aggregates of an agent.
// Corresponds to agents table in PostgreSQL.
type AgentRecord struct {
	ID            string          `json:"id"`
	Owner         string          `json:"owner"`
	Name          string          `json:"name"`
	Metadata      string          `json:"metadata,omitempty"` // opaque, usually a URI
	Address       string          `json:"address"`            // derived agent account address
	Reputation    int64           `json:"reputation"`
	TotalLaunches int64           `json:"total_launches"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
	IsVerified    bool            `json:"is_verified"`
	CreatedAt     int64           `json:"created_at"` // Unix ms
	UpdatedAt     int64           `json:"updated_at"` // Unix ms
}
