package repository

import (
	"context"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create stores a new loan. CreatedAt is filled in from the database.
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByLoanID retrieves a loan by its loan ID
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// MarkDefaulted records the external default signal
	MarkDefaulted(ctx context.Context, loanID string, at time.Time) error

	// ListActive returns loans without a settlement or foreclosure record.
	// Installment loans paid in full are still listed; callers derive status.
	ListActive(ctx context.Context) ([]*domain.Loan, error)
}

// PaymentRepository defines the interface for the append-only payment log
type PaymentRepository interface {
	// GetByLoanID retrieves all records for a loan ordered by sequence
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.PaymentRecord, error)

	// Append stores a record if the loan still has expectedCount records
	Append(ctx context.Context, loanID string, expectedCount int, record *domain.PaymentRecord) error

	// RemoveLast deletes the latest record if the loan still has expectedCount records
	RemoveLast(ctx context.Context, loanID string, expectedCount int) (*domain.PaymentRecord, error)
}
