package entity

import "github.com/shopspring/decimal"

// WalletType distinguishes fiat accounts from crypto holdings.
type WalletType string

const (
	WalletTypeFiat   WalletType = "fiat"
	WalletTypeCrypto WalletType = "crypto"
)

// Wallet represents a single currency account owned by the user.
// Balance is authoritative on the backend only; the client never
// computes a balance locally, it re-reads after confirmed operations.
type Wallet struct {
	ID       string          `json:"id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Type     WalletType      `json:"type"`
}

// IsCrypto reports whether the wallet holds a crypto asset with a positive balance.
func (w Wallet) IsCrypto() bool {
	return w.Type == WalletTypeCrypto && w.Balance.IsPositive()
}
