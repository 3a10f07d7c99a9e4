package entity

// Resource names one of the client-cached entity collections.
type Resource string

const (
	ResourceWallets      Resource = "wallets"
	ResourceTransactions Resource = "transactions"
	ResourceStakes       Resource = "stakes"
)

// Resources lists every cached collection in a stable order.
func Resources() []Resource {
	return []Resource{ResourceWallets, ResourceTransactions, ResourceStakes}
}

// ChangeEvent is the kind of row change the backend observed.
// The client treats all kinds identically (full re-read), the kind is
// kept for logging only.
type ChangeEvent string

const (
	ChangeInsert ChangeEvent = "INSERT"
	ChangeUpdate ChangeEvent = "UPDATE"
	ChangeDelete ChangeEvent = "DELETE"
)

// ChangeNotification is a push message saying something changed in a table.
// It carries no row payload, so the only correct reaction is a fresh read.
type ChangeNotification struct {
	Table Resource    `json:"table"`
	Event ChangeEvent `json:"event"`
}
