package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMode is how money was received.
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "cash"
	PaymentModeUPI          PaymentMode = "upi"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
	PaymentModeCheque       PaymentMode = "cheque"
)

// ParsePaymentMode accepts the mode names case-insensitively.
func ParsePaymentMode(s string) (PaymentMode, error) {
	switch mode := PaymentMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case PaymentModeCash, PaymentModeUPI, PaymentModeBankTransfer, PaymentModeCheque:
		return mode, nil
	}
	return "", fmt.Errorf("unknown payment mode %q", s)
}

// RecordKind distinguishes ordinary payments from the events that close a loan.
type RecordKind string

const (
	RecordPayment     RecordKind = "payment"
	RecordSettlement  RecordKind = "settlement"
	RecordForeclosure RecordKind = "foreclosure"
)

// PaymentRecord is an append-only ledger row. Sequence is the insertion
// order and the only ordering the ledger relies on; PaidDate is user-entered
// and may be backdated.
type PaymentRecord struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	LoanID    string      `json:"loan_id" db:"loan_id"`
	Sequence  int         `json:"sequence" db:"sequence"`
	Amount    int64       `json:"amount" db:"amount"`
	PaidDate  time.Time   `json:"paid_date" db:"paid_date"`
	Mode      PaymentMode `json:"mode" db:"mode"`
	Kind      RecordKind  `json:"kind" db:"kind"`
	Note      string      `json:"note" db:"note"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// LedgerState is recomputed from the payment log on every read.
type LedgerState struct {
	Balance int64 `json:"balance"`
	// Overpaid is non-zero when the stored log pays more than is owed.
	Overpaid       int64      `json:"overpaid"`
	TotalPaid      int64      `json:"total_paid"`
	InterestPaid   int64      `json:"interest_paid"`
	PeriodsSettled int        `json:"periods_settled"`
	PaymentCount   int        `json:"payment_count"`
	Status         LoanStatus `json:"status"`
}

// Receipt is the value handed to notification collaborators after a
// ledger mutation.
type Receipt struct {
	LoanID string         `json:"loan_id"`
	Record *PaymentRecord `json:"record"`
	State  LedgerState    `json:"state"`
}

// ForeclosureQuote prices an early payoff. The remaining principal is a
// pro-rata estimate because flat-rate plans do not split payments between
// principal and interest.
type ForeclosureQuote struct {
	LoanID                     string          `json:"loan_id"`
	Balance                    int64           `json:"balance"`
	Principal                  int64           `json:"principal"`
	TotalPayable               int64           `json:"total_payable"`
	RemainingPrincipalEstimate int64           `json:"remaining_principal_estimate"`
	IsEstimate                 bool            `json:"is_estimate"`
	EstimateMethod             string          `json:"estimate_method"`
	PenaltyPercent             decimal.Decimal `json:"penalty_percent"`
	Penalty                    int64           `json:"penalty"`
	ForeclosureAmount          int64           `json:"foreclosure_amount"`
	// Savings is negative when the penalty outweighs the remaining interest.
	Savings      int64 `json:"savings"`
	PaymentCount int   `json:"payment_count"`
}

type MakePaymentRequest struct {
	Amount   int64  `json:"amount" validate:"required"`
	PaidDate string `json:"paid_date" validate:"omitempty,datetime=2006-01-02"`
	Mode     string `json:"mode" validate:"required,oneof=cash upi bank_transfer cheque CASH UPI BANK_TRANSFER CHEQUE"`
	Note     string `json:"note" validate:"max=500"`
}

// ForecloseRequest commits a quote the customer accepted. QuotedAmount and
// QuotedPaymentCount come from that quote and are checked against the ledger.
type ForecloseRequest struct {
	PenaltyPercent     decimal.NullDecimal `json:"penalty_percent"`
	QuotedAmount       int64               `json:"quoted_amount" validate:"required,gt=0"`
	QuotedPaymentCount int                 `json:"quoted_payment_count" validate:"gte=0"`
	PaidDate           string              `json:"paid_date" validate:"omitempty,datetime=2006-01-02"`
	Mode               string              `json:"mode" validate:"required,oneof=cash upi bank_transfer cheque CASH UPI BANK_TRANSFER CHEQUE"`
	Note               string              `json:"note" validate:"max=500"`
}

type PaymentResponse struct {
	Record *PaymentRecord `json:"record"`
	State  LedgerState    `json:"state"`
}
