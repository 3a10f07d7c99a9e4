package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakeStatus tracks the lifecycle of a locked position.
type StakeStatus string

const (
	StakeStatusActive StakeStatus = "active"
	StakeStatusClosed StakeStatus = "closed"
)

// Stake is a locked amount earning a fixed APY. Created by create_stake;
// transitions to closed when unstaked on the backend.
type Stake struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	APY       decimal.Decimal `json:"apy"`
	StartedAt time.Time       `json:"started_at"`
	Status    StakeStatus     `json:"status"`
}
