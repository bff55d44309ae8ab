package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// weeklyRequest is scenario A: 10,000 lent on a Monday, collected from the
// following Sunday.
func weeklyRequest() PlanRequest {
	return PlanRequest{
		LoanID:     "LOAN-W1",
		Kind:       domain.KindWeeklyInstallment,
		Principal:  10000,
		GivenDate:  date(2024, 1, 1),
		AnchorDate: date(2024, 1, 7),
	}
}

// amortizedRequest lends 10,000 at 20% flat for 12 months, 12,000 payable.
func amortizedRequest() PlanRequest {
	return PlanRequest{
		LoanID:      "LOAN-A1",
		Kind:        domain.KindAmortizedTerm,
		Principal:   10000,
		RatePercent: rate("20"),
		TermMonths:  12,
		GivenDate:   date(2024, 1, 1),
		AnchorDate:  date(2024, 2, 1),
	}
}

func interestOnlyRequest() PlanRequest {
	return PlanRequest{
		LoanID:      "LOAN-I1",
		Kind:        domain.KindInterestOnly,
		Principal:   100000,
		RatePercent: rate("3"),
		GivenDate:   date(2024, 1, 1),
		AnchorDate:  date(2024, 1, 15),
	}
}

func mustPlan(t *testing.T, req PlanRequest) *domain.LoanPlan {
	t.Helper()
	plan, err := DerivePlan(req, DefaultProductRules())
	require.NoError(t, err)
	return plan
}

func newTestLedger(t *testing.T, req PlanRequest) *Ledger {
	t.Helper()
	plan := mustPlan(t, req)
	return New(&domain.Loan{ID: uuid.New(), LoanPlan: *plan}, nil)
}

func pay(t *testing.T, l *Ledger, amount int64, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, _, err := l.ApplyPayment(amount, date(2024, 1, 7), domain.PaymentModeCash, "")
		require.NoError(t, err)
	}
}
