package ledger

import (
	"fmt"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/shopspring/decimal"
)

// ProductRules holds the shop's product constants.
type ProductRules struct {
	WeeklyDivisor   int64
	MonthlyDivisor  int64
	DailyDivisor    int64
	WeeklyAnchorDay time.Weekday
}

// DefaultProductRules returns the constants of the friend-loan products:
// ten weekly or five monthly installments, weekly collection on Sundays.
func DefaultProductRules() ProductRules {
	return ProductRules{
		WeeklyDivisor:   10,
		MonthlyDivisor:  5,
		DailyDivisor:    100,
		WeeklyAnchorDay: time.Sunday,
	}
}

// PlanRequest carries the term parameters entered at disbursal. PeriodicAmount
// and PeriodCount are optional overrides and are cross-checked when both are set.
type PlanRequest struct {
	LoanID         string
	Kind           domain.LoanKind
	Principal      int64
	PeriodicAmount *int64
	PeriodCount    *int
	RatePercent    decimal.NullDecimal
	TermMonths     int
	AskedAmount    int64
	GivenDate      time.Time
	AnchorDate     time.Time
}

// DerivePlan validates a request and computes the immutable loan plan.
func DerivePlan(req PlanRequest, rules ProductRules) (*domain.LoanPlan, error) {
	if req.Principal <= 0 {
		return nil, fmt.Errorf("%w: principal must be positive, got %d", customError.ErrInvalidPrincipal, req.Principal)
	}

	plan := &domain.LoanPlan{
		LoanID:     req.LoanID,
		Kind:       req.Kind,
		Principal:  req.Principal,
		GivenDate:  utils.DateOf(req.GivenDate),
		AnchorDate: utils.DateOf(req.AnchorDate),
	}
	if plan.AnchorDate.Before(plan.GivenDate) {
		return nil, fmt.Errorf("%w: first due date %s precedes disbursal %s", customError.ErrInvalidTerm,
			plan.AnchorDate.Format(utils.DateLayout), plan.GivenDate.Format(utils.DateLayout))
	}

	var err error
	switch req.Kind {
	case domain.KindWeeklyInstallment:
		if plan.AnchorDate.Weekday() != rules.WeeklyAnchorDay {
			return nil, fmt.Errorf("%w: weekly collection starts on a %s, %s is a %s", customError.ErrScheduleAnchorMismatch,
				rules.WeeklyAnchorDay, plan.AnchorDate.Format(utils.DateLayout), plan.AnchorDate.Weekday())
		}
		err = deriveInstallment(plan, req, rules.WeeklyDivisor)
	case domain.KindMonthlyInstallment:
		err = deriveInstallment(plan, req, rules.MonthlyDivisor)
	case domain.KindDailyInstallment:
		plan.AskedAmount = req.AskedAmount
		err = deriveInstallment(plan, req, rules.DailyDivisor)
	case domain.KindInterestOnly:
		err = deriveInterestOnly(plan, req)
	case domain.KindAmortizedTerm:
		err = deriveAmortized(plan, req)
	default:
		err = fmt.Errorf("%w: unsupported loan kind %q", customError.ErrInvalidTerm, req.Kind)
	}
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// deriveInstallment fills an interest-free installment plan. The period count
// is derived from the amount; a caller count must already equal it.
func deriveInstallment(plan *domain.LoanPlan, req PlanRequest, divisor int64) error {
	if req.RatePercent.Valid {
		return fmt.Errorf("%w: %s loans carry no interest rate", customError.ErrInvalidTerm, req.Kind)
	}
	if req.PeriodCount != nil && *req.PeriodCount <= 0 {
		return fmt.Errorf("%w: period count must be positive, got %d", customError.ErrInvalidTerm, *req.PeriodCount)
	}

	switch {
	case req.PeriodicAmount != nil:
		amount := *req.PeriodicAmount
		if amount <= 0 {
			return fmt.Errorf("%w: periodic amount must be positive, got %d", customError.ErrInvalidTerm, amount)
		}
		if req.PeriodCount != nil && !reconciles(plan.Principal, amount, *req.PeriodCount) {
			return fmt.Errorf("%w: %d x %d does not cover principal %d", customError.ErrInconsistentOverride,
				amount, *req.PeriodCount, plan.Principal)
		}
		plan.PeriodicAmount = amount
	case req.PeriodCount != nil:
		plan.PeriodicAmount = utils.CeilDiv(plan.Principal, int64(*req.PeriodCount))
	default:
		plan.PeriodicAmount = utils.CeilDiv(plan.Principal, divisor)
	}

	count := int(utils.CeilDiv(plan.Principal, plan.PeriodicAmount))
	plan.PeriodCount = &count
	plan.TotalPayable = plan.Principal
	return nil
}

// reconciles reports whether a caller-supplied amount and count describe the
// same schedule: count installments of amount, the last one short by less
// than a full installment.
func reconciles(principal, amount int64, count int) bool {
	return int(utils.CeilDiv(principal, amount)) == count
}

func deriveInterestOnly(plan *domain.LoanPlan, req PlanRequest) error {
	rate, err := requireRate(req)
	if err != nil {
		return err
	}
	if req.PeriodCount != nil {
		return fmt.Errorf("%w: interest-only loans have no fixed period count", customError.ErrInvalidTerm)
	}

	plan.RatePercent = decimal.NewNullDecimal(rate)
	plan.PeriodicAmount = InterestFor(plan.Principal, rate)
	if req.PeriodicAmount != nil && !withinUnit(*req.PeriodicAmount, plan.PeriodicAmount) {
		return fmt.Errorf("%w: interest of %d expected, got %d", customError.ErrInconsistentOverride,
			plan.PeriodicAmount, *req.PeriodicAmount)
	}
	plan.TotalPayable = plan.Principal
	return nil
}

// InterestFor returns the monthly interest charge on an outstanding principal.
func InterestFor(outstanding int64, ratePercent decimal.Decimal) int64 {
	return utils.PercentOf(outstanding, ratePercent)
}

// deriveAmortized applies the flat-rate EMI formula used on customer receipts:
// interest = principal * rate/100 * months/12, emi = ceil(total / months).
func deriveAmortized(plan *domain.LoanPlan, req PlanRequest) error {
	rate, err := requireRate(req)
	if err != nil {
		return err
	}

	months := req.TermMonths
	if months == 0 && req.PeriodCount != nil {
		months = *req.PeriodCount
	}
	if months <= 0 {
		return fmt.Errorf("%w: tenure must be a positive number of months, got %d", customError.ErrInvalidTerm, months)
	}
	if req.PeriodCount != nil && *req.PeriodCount != months {
		return fmt.Errorf("%w: tenure %d months but %d periods requested", customError.ErrInconsistentOverride,
			months, *req.PeriodCount)
	}

	interest := utils.FlatInterest(plan.Principal, rate, months)
	total := plan.Principal + interest
	emi := utils.CeilDiv(total, int64(months))
	if total-emi*int64(months-1) <= 0 {
		return fmt.Errorf("%w: %d months is too long to repay %d", customError.ErrInvalidTerm, months, total)
	}
	if req.PeriodicAmount != nil && !withinUnit(*req.PeriodicAmount, emi) {
		return fmt.Errorf("%w: EMI of %d expected, got %d", customError.ErrInconsistentOverride, emi, *req.PeriodicAmount)
	}

	plan.RatePercent = decimal.NewNullDecimal(rate)
	plan.TermMonths = months
	plan.InterestTotal = interest
	plan.TotalPayable = total
	plan.PeriodicAmount = emi
	plan.PeriodCount = &months
	return nil
}

func requireRate(req PlanRequest) (decimal.Decimal, error) {
	if !req.RatePercent.Valid {
		return decimal.Zero, fmt.Errorf("%w: %s loans need an interest rate", customError.ErrInvalidTerm, req.Kind)
	}
	if req.RatePercent.Decimal.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: rate must not be negative, got %s", customError.ErrInvalidTerm,
			req.RatePercent.Decimal.String())
	}
	return req.RatePercent.Decimal, nil
}

func withinUnit(a, b int64) bool {
	return a-b <= 1 && b-a <= 1
}
