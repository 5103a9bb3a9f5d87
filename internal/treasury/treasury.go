// Package treasury tracks, per payment asset, how much value the protocol
// holds against how much it has promised to open streams. Every mutation
// preserves balance >= liability >= 0; allocation is the sole admission
// gate for new commitments.
package treasury

import "context"

// CustodyAccount is the account identifier holding treasury funds at the
// external transfer layer.
const CustodyAccount = "treasury:custody"

// Entry is the per-asset ledger state. An asset never written before reads
// back as the zero Entry.
type Entry struct {
	Balance   int64
	Liability int64
}

// Available returns the uncommitted portion of the balance.
func (e Entry) Available() int64 {
	return e.Balance - e.Liability
}

// Store persists per-asset entries. Implementations return the zero Entry
// for untracked assets rather than an error.
type Store interface {
	Get(ctx context.Context, asset string) (Entry, error)
	Put(ctx context.Context, asset string, entry Entry) error
}
