package entity

import "time"

// Snapshot is one full read of a resource, tagged with the sequence number
// allocated when the read was issued. A snapshot with a lower FetchSeq must
// never replace one with a higher FetchSeq, regardless of arrival order.
type Snapshot[T any] struct {
	FetchSeq  uint64    `json:"fetch_seq"`
	Items     []T       `json:"items"`
	FetchedAt time.Time `json:"fetched_at"`
}

// WalletSnapshotRecord bundles a journaled wallet snapshot with the log index
// it originated from, for incremental streaming to the UI.
type WalletSnapshotRecord struct {
	Index    uint64
	Snapshot Snapshot[Wallet]
}
