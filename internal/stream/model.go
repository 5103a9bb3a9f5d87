package stream

// Status tracks the stream state machine: active streams move to exactly
// one of canceled or completed, and terminal states never change again.
type Status string

const (
	StatusActive    Status = "active"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
)

// Stream represents one vesting schedule from a payer to a payee in a
// specific asset. All times are unix seconds; all amounts are integer
// asset units.
type Stream struct {
	ID                 int64
	Payer              string
	Payee              string
	Asset              string
	Rate               int64
	CliffTime          int64
	StartTime          int64
	EndTime            int64
	TotalAmount        int64
	WithdrawnAmount    int64
	LastWithdrawalTime int64
	Status             Status
	CreatedAt          int64
	ClosedAt           int64
}

// Closed reports whether the stream left the active state.
func (s Stream) Closed() bool {
	return s.Status != StatusActive
}

// Remaining returns the committed value not yet withdrawn.
func (s Stream) Remaining() int64 {
	return s.TotalAmount - s.WithdrawnAmount
}

// WithdrawResult is the per-item outcome of a batch withdrawal. Failed
// items carry a zero amount and mutate nothing.
type WithdrawResult struct {
	StreamID int64 `json:"stream_id"`
	Amount   int64 `json:"amount"`
	Success  bool  `json:"success"`
}
