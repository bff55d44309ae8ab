package ledger

import (
	"fmt"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/shopspring/decimal"
)

// EstimateProRata labels the remaining-principal figure of a quote.
const EstimateProRata = "pro-rata"

// ForecloseQuote prices paying the loan off today. It does not touch the log.
//
//	remaining = principal * balance / total_payable  (estimate)
//	penalty   = remaining * penalty% / 100
//	amount    = remaining + penalty
//	savings   = balance - amount
func ForecloseQuote(l *Ledger, penaltyPercent decimal.Decimal) (*domain.ForeclosureQuote, error) {
	plan := l.Plan()
	if plan.Kind.IsOpenEnded() {
		return nil, fmt.Errorf("%w: interest-only loans close by settlement", customError.ErrForeclosureNotAllowed)
	}
	if penaltyPercent.IsNegative() {
		return nil, fmt.Errorf("%w: penalty must not be negative, got %s", customError.ErrInvalidTerm, penaltyPercent.String())
	}

	state := l.State()
	switch {
	case state.Status.IsClosed():
		return nil, fmt.Errorf("%w: loan %s is %s", customError.ErrLoanAlreadySettled, plan.LoanID, state.Status)
	case state.Status == domain.LoanStatusDefaulted:
		return nil, fmt.Errorf("%w: loan %s is in default", customError.ErrForeclosureNotAllowed, plan.LoanID)
	}

	estimate := utils.ProRate(plan.Principal, state.Balance, plan.TotalPayable)
	penalty := utils.PercentOf(estimate, penaltyPercent)
	amount := estimate + penalty

	return &domain.ForeclosureQuote{
		LoanID:                     plan.LoanID,
		Balance:                    state.Balance,
		Principal:                  plan.Principal,
		TotalPayable:               plan.TotalPayable,
		RemainingPrincipalEstimate: estimate,
		IsEstimate:                 true,
		EstimateMethod:             EstimateProRata,
		PenaltyPercent:             penaltyPercent,
		Penalty:                    penalty,
		ForeclosureAmount:          amount,
		Savings:                    state.Balance - amount,
		PaymentCount:               state.PaymentCount,
	}, nil
}
