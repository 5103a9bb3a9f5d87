package notification

import (
	"context"
	"log/slog"
)

const (
	// KindStreamCreated indicates a new vesting stream was opened.
	KindStreamCreated = "stream_created"
	// KindStreamCanceled indicates a payer canceled a stream.
	KindStreamCanceled = "stream_canceled"
	// KindStreamCompleted indicates a stream paid out in full.
	KindStreamCompleted = "stream_completed"
	// KindWithdrawal indicates a batch item paid out to its payee.
	KindWithdrawal = "withdrawal"
	// KindDeposit indicates funds entered treasury custody.
	KindDeposit = "deposit"
	// KindPayout indicates the treasury paid committed funds out.
	KindPayout = "payout"
	// KindFreeWithdrawal indicates the admin drew down uncommitted funds.
	KindFreeWithdrawal = "free_withdrawal"
	// KindWorkerRegistered indicates a worker joined the registry.
	KindWorkerRegistered = "worker_registered"
	// KindAgentRegistered indicates an automation agent was granted permissions.
	KindAgentRegistered = "agent_registered"
	// KindAgentRevoked indicates an automation agent lost its permissions.
	KindAgentRevoked = "agent_revoked"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
