package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidPrincipal       = errors.New("invalid principal")
	ErrInvalidTerm            = errors.New("invalid term")
	ErrInconsistentOverride   = errors.New("periodic amount and period count do not reconcile")
	ErrOverpayment            = errors.New("payment exceeds outstanding balance")
	ErrNothingToUndo          = errors.New("no payment to undo")
	ErrLoanAlreadySettled     = errors.New("loan is already settled")
	ErrScheduleAnchorMismatch = errors.New("anchor date does not satisfy the product schedule rule")

	ErrInvalidPaymentAmount   = errors.New("invalid payment amount")
	ErrInvalidPaymentMode     = errors.New("invalid payment mode")
	ErrSettlementShortfall    = errors.New("settlement amount is less than outstanding principal")
	ErrSettlementNotSupported = errors.New("settlement applies to interest-only loans")
	ErrForeclosureNotAllowed  = errors.New("foreclosure is not available for this loan")
	ErrStaleQuote             = errors.New("foreclosure quote no longer matches ledger")
	ErrConcurrentModification = errors.New("ledger was modified concurrently")
	ErrLoanNotFound           = errors.New("loan not found")
	ErrLoanAlreadyExists      = errors.New("loan already exists")
	ErrLoanLocked             = errors.New("loan is locked by another operation")
)

// OverpaymentError reports the amount by which a payment would push the
// balance below zero.
type OverpaymentError struct {
	Excess int64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("%s by %d", ErrOverpayment.Error(), e.Excess)
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

// NewOverpaymentError creates an overpayment error for the given excess.
func NewOverpaymentError(excess int64) *OverpaymentError {
	return &OverpaymentError{Excess: excess}
}

// IsRecoverable reports whether the caller can retry with different input
// (a smaller amount, another anchor date) instead of abandoning the operation.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrOverpayment) || errors.Is(err, ErrScheduleAnchorMismatch)
}

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound           = "LOAN_NOT_FOUND"
	ErrCodeLoanAlreadyExists      = "LOAN_ALREADY_EXISTS"
	ErrCodeInvalidRequest         = "INVALID_REQUEST"
	ErrCodeInvalidPlan            = "INVALID_PLAN"
	ErrCodeInvalidPaymentAmount   = "INVALID_PAYMENT_AMOUNT"
	ErrCodeInvalidPaymentMode     = "INVALID_PAYMENT_MODE"
	ErrCodeOverpayment            = "OVERPAYMENT"
	ErrCodeNothingToUndo          = "NOTHING_TO_UNDO"
	ErrCodeLoanAlreadySettled     = "LOAN_ALREADY_SETTLED"
	ErrCodeSettlementRejected     = "SETTLEMENT_REJECTED"
	ErrCodeForeclosureRejected    = "FORECLOSURE_REJECTED"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeLoanLocked             = "LOAN_LOCKED"
	ErrCodeDatabaseError          = "DATABASE_ERROR"
	ErrCodeCacheError             = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanAlreadyExists(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		ErrLoanAlreadyExists,
	)
}

// WrapLoanAlreadySettled keeps the engine's closing detail when err is set.
func WrapLoanAlreadySettled(loanID string, err error) *BusinessError {
	if err == nil {
		err = ErrLoanAlreadySettled
	}
	return NewBusinessError(
		ErrCodeLoanAlreadySettled,
		fmt.Sprintf("Loan with ID %s is already closed", loanID),
		err,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

func WrapConcurrentModification(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentModification,
		fmt.Sprintf("Ledger for loan %s changed while the operation was in progress", loanID),
		ErrConcurrentModification,
	)
}

func WrapLoanLocked(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanLocked,
		fmt.Sprintf("Loan %s is being updated by another request", loanID),
		ErrLoanLocked,
	)
}

// WrapLedgerError attaches a business code to an error returned by the
// ledger engine. Errors the engine does not own are treated as database
// failures.
func WrapLedgerError(loanID string, err error) *BusinessError {
	var be *BusinessError
	if errors.As(err, &be) {
		return be
	}

	var over *OverpaymentError
	switch {
	case errors.As(err, &over):
		return NewBusinessError(ErrCodeOverpayment,
			fmt.Sprintf("Payment exceeds outstanding balance of loan %s by %d", loanID, over.Excess), err)
	case errors.Is(err, ErrInvalidPrincipal),
		errors.Is(err, ErrInvalidTerm),
		errors.Is(err, ErrInconsistentOverride),
		errors.Is(err, ErrScheduleAnchorMismatch):
		return NewBusinessError(ErrCodeInvalidPlan, "Loan plan rejected", err)
	case errors.Is(err, ErrInvalidPaymentAmount):
		return NewBusinessError(ErrCodeInvalidPaymentAmount, "Payment amount must be positive", err)
	case errors.Is(err, ErrInvalidPaymentMode):
		return NewBusinessError(ErrCodeInvalidPaymentMode, "Payment mode is not recognised", err)
	case errors.Is(err, ErrNothingToUndo):
		return NewBusinessError(ErrCodeNothingToUndo,
			fmt.Sprintf("Loan %s has no payment to undo", loanID), err)
	case errors.Is(err, ErrLoanAlreadySettled):
		return WrapLoanAlreadySettled(loanID, err)
	case errors.Is(err, ErrSettlementShortfall), errors.Is(err, ErrSettlementNotSupported):
		return NewBusinessError(ErrCodeSettlementRejected, "Settlement rejected", err)
	case errors.Is(err, ErrForeclosureNotAllowed), errors.Is(err, ErrStaleQuote):
		return NewBusinessError(ErrCodeForeclosureRejected, "Foreclosure rejected", err)
	case errors.Is(err, ErrConcurrentModification):
		return WrapConcurrentModification(loanID)
	case errors.Is(err, ErrLoanNotFound):
		return WrapLoanNotFound(loanID)
	default:
		return WrapDatabaseError(err)
	}
}
