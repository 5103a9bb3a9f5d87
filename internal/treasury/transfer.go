package treasury

import (
	"context"

	"github.com/google/uuid"
)

// Transferor represents the external asset transfer mechanism. Deposits,
// payouts and free withdrawals move value through it; a failed transfer
// fails the enclosing operation before any state is written.
type Transferor interface {
	Transfer(ctx context.Context, asset, from, to string, amount int64) (Receipt, error)
}

// Receipt captures the reference issued by the transfer layer.
type Receipt struct {
	Reference string
}

// StaticTransferor simulates a successful transfer layer.
type StaticTransferor struct{}

// Transfer approves the movement with a synthetic reference.
func (StaticTransferor) Transfer(_ context.Context, _, _, _ string, _ int64) (Receipt, error) {
	return Receipt{Reference: uuid.NewString()}, nil
}
