package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Ledger is the payment log of one loan. Balance and status are never
// stored; State recomputes them from the log on every call.
//
// A Ledger is not safe for concurrent use. Callers serialise mutations per
// loan (see the lock package) and persist with a compare-and-swap on
// PaymentCount.
type Ledger struct {
	loan     *domain.Loan
	payments []*domain.PaymentRecord
}

// New builds a ledger view over a loan and its payment log.
func New(loan *domain.Loan, payments []*domain.PaymentRecord) *Ledger {
	log := make([]*domain.PaymentRecord, len(payments))
	copy(log, payments)
	sort.SliceStable(log, func(i, j int) bool {
		return log[i].Sequence < log[j].Sequence
	})
	return &Ledger{loan: loan, payments: log}
}

// Loan returns the loan the ledger belongs to.
func (l *Ledger) Loan() *domain.Loan {
	return l.loan
}

// Plan returns the loan plan.
func (l *Ledger) Plan() *domain.LoanPlan {
	return &l.loan.LoanPlan
}

// Payments returns the log in insertion order.
func (l *Ledger) Payments() []*domain.PaymentRecord {
	out := make([]*domain.PaymentRecord, len(l.payments))
	copy(out, l.payments)
	return out
}

// Last returns the most recently inserted record.
func (l *Ledger) Last() (*domain.PaymentRecord, bool) {
	if len(l.payments) == 0 {
		return nil, false
	}
	return l.payments[len(l.payments)-1], true
}

// State projects balance, settled periods and status from the log.
func (l *Ledger) State() domain.LedgerState {
	plan := l.Plan()
	state := domain.LedgerState{
		PaymentCount: len(l.payments),
		Status:       domain.LoanStatusActive,
	}

	var principalPaid int64
	var settled, foreclosed bool
	for _, record := range l.payments {
		state.TotalPaid += record.Amount
		switch record.Kind {
		case domain.RecordPayment:
			if plan.Kind.IsOpenEnded() {
				state.InterestPaid += record.Amount
			} else {
				principalPaid += record.Amount
			}
		case domain.RecordSettlement:
			principalPaid += record.Amount
			settled = true
		case domain.RecordForeclosure:
			foreclosed = true
		}
	}

	if !foreclosed {
		remaining := plan.TotalPayable - principalPaid
		if remaining < 0 {
			state.Overpaid = -remaining
			remaining = 0
		}
		state.Balance = remaining
	}

	// closing outranks default
	switch {
	case foreclosed:
		state.Status = domain.LoanStatusForeclosed
	case settled:
		state.Status = domain.LoanStatusSettled
	case !plan.Kind.IsOpenEnded() && state.Balance == 0:
		state.Status = domain.LoanStatusSettled
	case l.loan.DefaultedAt != nil:
		state.Status = domain.LoanStatusDefaulted
	}

	state.PeriodsSettled = l.periodsSettled(state)
	return state
}

// credit is the amount counted toward schedule periods: interest for
// open-ended plans, everything paid for the rest.
func (l *Ledger) credit(state domain.LedgerState) int64 {
	if l.Plan().Kind.IsOpenEnded() {
		return state.InterestPaid
	}
	return state.TotalPaid
}

func (l *Ledger) periodsSettled(state domain.LedgerState) int {
	plan := l.Plan()
	credit := l.credit(state)
	if plan.PeriodicAmount <= 0 {
		return 0
	}
	if plan.Kind.IsOpenEnded() {
		return int(credit / plan.PeriodicAmount)
	}

	n := plan.Periods()
	if state.Status.IsClosed() {
		return n
	}
	k := int(credit / plan.PeriodicAmount)
	if k >= n-1 {
		if credit >= plan.TotalPayable {
			return n
		}
		return n - 1
	}
	return k
}

// cumulativeDue is the total due through period i inclusive.
func (l *Ledger) cumulativeDue(i int) int64 {
	plan := l.Plan()
	if n := plan.Periods(); n > 0 && i >= n-1 {
		return plan.TotalPayable
	}
	return plan.PeriodicAmount * int64(i+1)
}

// Project marks each entry Paid or Unpaid. Payments fill periods in order,
// so for uniform installments the first floor(total_paid / periodic_amount)
// periods are Paid. Nothing is tracked per period; calling Project twice
// without a mutation in between gives the same answer.
func (l *Ledger) Project(entries []domain.ScheduleEntry) map[int]domain.PeriodStatus {
	state := l.State()
	credit := l.credit(state)
	closed := state.Status.IsClosed()

	out := make(map[int]domain.PeriodStatus, len(entries))
	for _, e := range entries {
		if closed || l.cumulativeDue(e.Index) <= credit {
			out[e.Index] = domain.PeriodPaid
		} else {
			out[e.Index] = domain.PeriodUnpaid
		}
	}
	return out
}

// ApplyPayment appends a payment. A payment that would take the balance below
// zero is refused with an OverpaymentError and the log is left untouched.
// Interest-only payments are interest and never reduce the principal.
func (l *Ledger) ApplyPayment(amount int64, paidDate time.Time, mode domain.PaymentMode, note string) (*domain.PaymentRecord, domain.LedgerState, error) {
	if amount <= 0 {
		return nil, l.State(), fmt.Errorf("%w: %d", customError.ErrInvalidPaymentAmount, amount)
	}
	if err := validateMode(mode); err != nil {
		return nil, l.State(), err
	}

	before := l.State()
	if before.Status.IsClosed() {
		return nil, before, fmt.Errorf("%w: loan %s is %s", customError.ErrLoanAlreadySettled, l.loan.LoanID, before.Status)
	}
	if !l.Plan().Kind.IsOpenEnded() && amount > before.Balance {
		return nil, before, customError.NewOverpaymentError(amount - before.Balance)
	}

	record := l.append(amount, paidDate, mode, domain.RecordPayment, note)
	return record, l.State(), nil
}

// UndoLastPayment removes the most recently inserted record, whatever its
// paid date. Settlement and foreclosure records are final.
func (l *Ledger) UndoLastPayment() (*domain.PaymentRecord, domain.LedgerState, error) {
	last, ok := l.Last()
	if !ok {
		return nil, l.State(), customError.ErrNothingToUndo
	}
	if last.Kind != domain.RecordPayment {
		return nil, l.State(), fmt.Errorf("%w: %s record cannot be undone", customError.ErrLoanAlreadySettled, last.Kind)
	}

	l.payments = l.payments[:len(l.payments)-1]
	return last, l.State(), nil
}

// Settle records the return of the principal of an interest-only loan and
// closes it. The amount must match the outstanding principal exactly.
func (l *Ledger) Settle(amount int64, paidDate time.Time, mode domain.PaymentMode, note string) (*domain.PaymentRecord, domain.LedgerState, error) {
	if !l.Plan().Kind.IsOpenEnded() {
		return nil, l.State(), fmt.Errorf("%w: loan %s is %s", customError.ErrSettlementNotSupported, l.loan.LoanID, l.Plan().Kind)
	}
	if amount <= 0 {
		return nil, l.State(), fmt.Errorf("%w: %d", customError.ErrInvalidPaymentAmount, amount)
	}
	if err := validateMode(mode); err != nil {
		return nil, l.State(), err
	}

	before := l.State()
	if before.Status.IsClosed() {
		return nil, before, fmt.Errorf("%w: loan %s is %s", customError.ErrLoanAlreadySettled, l.loan.LoanID, before.Status)
	}
	switch {
	case amount > before.Balance:
		return nil, before, customError.NewOverpaymentError(amount - before.Balance)
	case amount < before.Balance:
		return nil, before, fmt.Errorf("%w: outstanding %d, offered %d", customError.ErrSettlementShortfall, before.Balance, amount)
	}

	record := l.append(amount, paidDate, mode, domain.RecordSettlement, note)
	return record, l.State(), nil
}

// CommitForeclosure closes the loan for the quoted amount. The quote must
// have been taken against the current log.
func (l *Ledger) CommitForeclosure(quote *domain.ForeclosureQuote, paidDate time.Time, mode domain.PaymentMode, note string) (*domain.PaymentRecord, domain.LedgerState, error) {
	if err := validateMode(mode); err != nil {
		return nil, l.State(), err
	}

	current, err := ForecloseQuote(l, quote.PenaltyPercent)
	if err != nil {
		return nil, l.State(), err
	}
	if current.PaymentCount != quote.PaymentCount || current.ForeclosureAmount != quote.ForeclosureAmount {
		return nil, l.State(), fmt.Errorf("%w: quoted %d at %d payments, now %d at %d payments", customError.ErrStaleQuote,
			quote.ForeclosureAmount, quote.PaymentCount, current.ForeclosureAmount, current.PaymentCount)
	}
	if current.ForeclosureAmount <= 0 {
		return nil, l.State(), fmt.Errorf("%w: nothing left to foreclose", customError.ErrForeclosureNotAllowed)
	}

	record := l.append(current.ForeclosureAmount, paidDate, mode, domain.RecordForeclosure, note)
	return record, l.State(), nil
}

func (l *Ledger) append(amount int64, paidDate time.Time, mode domain.PaymentMode, kind domain.RecordKind, note string) *domain.PaymentRecord {
	record := &domain.PaymentRecord{
		ID:       uuid.New(),
		LoanID:   l.loan.LoanID,
		Sequence: len(l.payments) + 1,
		Amount:   amount,
		PaidDate: utils.DateOf(paidDate),
		Mode:     mode,
		Kind:     kind,
		Note:     note,
	}
	l.payments = append(l.payments, record)
	return record
}

func validateMode(mode domain.PaymentMode) error {
	if _, err := domain.ParsePaymentMode(string(mode)); err != nil {
		return fmt.Errorf("%w: %q", customError.ErrInvalidPaymentMode, mode)
	}
	return nil
}
