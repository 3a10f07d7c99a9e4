package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the operation kinds the backend records.
type TransactionType string

const (
	TransactionDeposit        TransactionType = "deposit"
	TransactionWithdrawal     TransactionType = "withdrawal"
	TransactionTransferIn     TransactionType = "transfer_in"
	TransactionTransferOut    TransactionType = "transfer_out"
	TransactionExchange       TransactionType = "exchange"
	TransactionStakingDeposit TransactionType = "staking_deposit"
)

// Transaction is one ledger entry as the backend reports it.
// The client treats the list as append-only: entries are never edited
// or deleted locally, the whole list is re-read instead.
type Transaction struct {
	ID               string          `json:"id"`
	Type             TransactionType `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	RecipientAddress string          `json:"recipient_address,omitempty"`
}
