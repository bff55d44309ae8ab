package notify

import (
	"context"

	"github.com/segyhp/loan-ledger/internal/domain"

	"go.uber.org/zap"
)

// Notifier receives ledger events for receipts and reminders. Rendering and
// delivery (WhatsApp, print, PDF) happen outside this service.
type Notifier interface {
	PaymentRecorded(ctx context.Context, receipt domain.Receipt) error
	PaymentDue(ctx context.Context, reminder domain.Reminder) error
}

// LogNotifier writes every event as a structured log line.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) PaymentRecorded(_ context.Context, receipt domain.Receipt) error {
	fields := []zap.Field{
		zap.String("loan_id", receipt.LoanID),
		zap.Int64("balance", receipt.State.Balance),
		zap.String("status", string(receipt.State.Status)),
		zap.Int("periods_settled", receipt.State.PeriodsSettled),
	}
	if receipt.Record != nil {
		fields = append(fields,
			zap.String("record_id", receipt.Record.ID.String()),
			zap.String("kind", string(receipt.Record.Kind)),
			zap.Int64("amount", receipt.Record.Amount),
			zap.String("mode", string(receipt.Record.Mode)),
			zap.Time("paid_date", receipt.Record.PaidDate),
		)
	}
	n.log.Info("payment receipt", fields...)
	return nil
}

func (n *LogNotifier) PaymentDue(_ context.Context, reminder domain.Reminder) error {
	n.log.Info("payment due",
		zap.String("loan_id", reminder.LoanID),
		zap.String("customer_name", reminder.CustomerName),
		zap.String("customer_phone", reminder.CustomerPhone),
		zap.Int("period", reminder.Entry.Index),
		zap.Time("due_date", reminder.Entry.DueDate),
		zap.Int64("due_amount", reminder.Entry.DueAmount),
		zap.Int("days_until_due", reminder.DaysUntilDue),
	)
	return nil
}
