package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanKind is the repayment shape of a loan.
type LoanKind string

const (
	KindWeeklyInstallment  LoanKind = "weekly"
	KindMonthlyInstallment LoanKind = "monthly"
	KindDailyInstallment   LoanKind = "daily"
	KindInterestOnly       LoanKind = "interest_only"
	KindAmortizedTerm      LoanKind = "amortized"
)

var loanKindAliases = map[string]LoanKind{
	"weekly":        KindWeeklyInstallment,
	"weekly_loan":   KindWeeklyInstallment,
	"monthly":       KindMonthlyInstallment,
	"monthly_loan":  KindMonthlyInstallment,
	"daily":         KindDailyInstallment,
	"daily_loan":    KindDailyInstallment,
	"interest_only": KindInterestOnly,
	"interest":      KindInterestOnly,
	"amortized":     KindAmortizedTerm,
	"emi":           KindAmortizedTerm,
	"vehicle":       KindAmortizedTerm,
	"auto_finance":  KindAmortizedTerm,
}

// ParseLoanKind maps the loosely spelled kind strings found in stored data
// ("Weekly", "auto-finance", "interest only") onto a LoanKind.
func ParseLoanKind(s string) (LoanKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if kind, ok := loanKindAliases[key]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("unknown loan kind %q", s)
}

// UnmarshalText accepts any alias understood by ParseLoanKind.
func (k *LoanKind) UnmarshalText(text []byte) error {
	kind, err := ParseLoanKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// IsInstallment reports whether the kind repays principal in fixed installments.
func (k LoanKind) IsInstallment() bool {
	switch k {
	case KindWeeklyInstallment, KindMonthlyInstallment, KindDailyInstallment:
		return true
	case KindInterestOnly, KindAmortizedTerm:
		return false
	}
	return false
}

// IsOpenEnded reports whether the loan has no fixed number of periods.
func (k LoanKind) IsOpenEnded() bool {
	return k == KindInterestOnly
}

// LoanStatus is the lifecycle state of a loan. It is always derived from the
// payment log, except Defaulted which is an external signal.
type LoanStatus string

const (
	LoanStatusActive     LoanStatus = "active"
	LoanStatusSettled    LoanStatus = "settled"
	LoanStatusForeclosed LoanStatus = "foreclosed"
	LoanStatusDefaulted  LoanStatus = "defaulted"
)

// IsClosed reports whether the loan no longer accepts payments.
func (s LoanStatus) IsClosed() bool {
	return s == LoanStatusSettled || s == LoanStatusForeclosed
}

// LoanPlan is fixed at disbursal and never edited afterwards.
type LoanPlan struct {
	LoanID         string              `json:"loan_id" db:"loan_id"`
	Kind           LoanKind            `json:"kind" db:"kind"`
	Principal      int64               `json:"principal" db:"principal"`
	PeriodicAmount int64               `json:"periodic_amount" db:"periodic_amount"`
	PeriodCount    *int                `json:"period_count" db:"period_count"` // nil for interest-only
	RatePercent    decimal.NullDecimal `json:"rate_percent" db:"rate_percent"`
	TermMonths     int                 `json:"term_months,omitempty" db:"term_months"`
	AskedAmount    int64               `json:"asked_amount,omitempty" db:"asked_amount"`
	InterestTotal  int64               `json:"interest_total" db:"interest_total"`
	TotalPayable   int64               `json:"total_payable" db:"total_payable"`
	GivenDate      time.Time           `json:"given_date" db:"given_date"`
	AnchorDate     time.Time           `json:"anchor_date" db:"anchor_date"`
}

// Periods returns the finite period count, or 0 for open-ended plans.
func (p *LoanPlan) Periods() int {
	if p.PeriodCount == nil {
		return 0
	}
	return *p.PeriodCount
}

// Loan is a persisted plan plus the customer and external status columns.
type Loan struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	CustomerPhone string     `json:"customer_phone" db:"customer_phone"`
	DefaultedAt   *time.Time `json:"defaulted_at,omitempty" db:"defaulted_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	LoanPlan
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	LoanID         string              `json:"loan_id" validate:"required,max=64"`
	CustomerName   string              `json:"customer_name" validate:"required"`
	CustomerPhone  string              `json:"customer_phone" validate:"omitempty,e164"`
	Kind           LoanKind            `json:"kind" validate:"required"`
	Principal      int64               `json:"principal" validate:"required"`
	PeriodicAmount *int64              `json:"periodic_amount,omitempty"`
	PeriodCount    *int                `json:"period_count,omitempty"`
	RatePercent    decimal.NullDecimal `json:"rate_percent"`
	TermMonths     int                 `json:"term_months,omitempty" validate:"gte=0"`
	AskedAmount    int64               `json:"asked_amount,omitempty" validate:"gte=0"`
	GivenDate      string              `json:"given_date" validate:"required,datetime=2006-01-02"`
	AnchorDate     string              `json:"anchor_date" validate:"required,datetime=2006-01-02"`
}

type CreateLoanResponse struct {
	Loan     *Loan           `json:"loan"`
	Schedule []ScheduleEntry `json:"schedule"`
}

type OutstandingResponse struct {
	LoanID string      `json:"loan_id"`
	State  LedgerState `json:"state"`
}

type DelinquentResponse struct {
	LoanID        string `json:"loan_id"`
	IsDelinquent  bool   `json:"is_delinquent"`
	MissedPeriods int    `json:"missed_periods"`
	DaysOverdue   int    `json:"days_overdue"`
}
