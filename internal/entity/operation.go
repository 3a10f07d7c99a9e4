package entity

// OperationName identifies a remote mutation procedure on the backend.
type OperationName string

const (
	OpDepositFunds     OperationName = "deposit_funds"
	OpP2PTransfer      OperationName = "p2p_transfer"
	OpExchangeCurrency OperationName = "exchange_currency"
	OpCreateStake      OperationName = "create_stake"
)

// AffectedResources maps each operation to every cache it can invalidate.
// A transfer moves money and records two ledger entries, so both wallets
// and transactions must be re-read; staking additionally creates a stake row.
var AffectedResources = map[OperationName][]Resource{
	OpDepositFunds:     {ResourceWallets, ResourceTransactions},
	OpP2PTransfer:      {ResourceWallets, ResourceTransactions},
	OpExchangeCurrency: {ResourceWallets, ResourceTransactions},
	OpCreateStake:      {ResourceWallets, ResourceStakes, ResourceTransactions},
}
