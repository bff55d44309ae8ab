package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/lock"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/notify"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// previewPeriods is how many periods of an open-ended schedule are shown
// when a loan is previewed or created.
const previewPeriods = 12

type LedgerService struct {
	LoanRepo    repository.LoanRepository
	PaymentRepo repository.PaymentRepository
	locker      lock.Locker
	notifier    notify.Notifier
	clock       domain.Clock
	rules       ledger.ProductRules
	config      *config.Config
	log         *zap.Logger
}

func NewLedgerService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	locker lock.Locker,
	notifier notify.Notifier,
	clock domain.Clock,
	config *config.Config,
	log *zap.Logger,
) *LedgerService {
	return &LedgerService{
		LoanRepo:    loanRepo,
		PaymentRepo: paymentRepo,
		locker:      locker,
		notifier:    notifier,
		clock:       clock,
		rules:       RulesFromConfig(config),
		config:      config,
		log:         log.Named("ledger"),
	}
}

// RulesFromConfig applies the configured divisors to the default products.
func RulesFromConfig(cfg *config.Config) ledger.ProductRules {
	rules := ledger.DefaultProductRules()
	rules.WeeklyDivisor = cfg.Business.WeeklyDivisor
	rules.MonthlyDivisor = cfg.Business.MonthlyDivisor
	rules.DailyDivisor = cfg.Business.DailyDivisor
	return rules
}

// PreviewPlan derives the plan and schedule for a request without storing it.
func (s *LedgerService) PreviewPlan(_ context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	plan, err := s.derivePlan(request)
	if err != nil {
		return nil, s.reject("preview_plan", request.LoanID, err)
	}

	return &domain.CreateLoanResponse{
		Loan:     newLoan(request, plan),
		Schedule: previewSchedule(ledger.GenerateSchedule(plan)),
	}, nil
}

// CreateLoan derives the plan and stores the loan. The schedule is returned
// but never stored; it is regenerated from the plan on every read.
func (s *LedgerService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	const op = "create_loan"

	plan, err := s.derivePlan(request)
	if err != nil {
		return nil, s.reject(op, request.LoanID, err)
	}

	existing, err := s.LoanRepo.GetByLoanID(ctx, request.LoanID)
	if err == nil && existing != nil {
		return nil, s.reject(op, request.LoanID, customError.WrapLoanAlreadyExists(request.LoanID))
	}
	if err != nil && !errors.Is(err, customError.ErrLoanNotFound) {
		return nil, s.reject(op, request.LoanID, customError.WrapDatabaseError(err))
	}

	loan := newLoan(request, plan)
	if err := s.LoanRepo.Create(ctx, loan); err != nil {
		if errors.Is(err, customError.ErrLoanAlreadyExists) {
			return nil, s.reject(op, request.LoanID, customError.WrapLoanAlreadyExists(request.LoanID))
		}
		return nil, s.reject(op, request.LoanID, customError.WrapDatabaseError(err))
	}

	metrics.LoansCreated.WithLabelValues(string(plan.Kind)).Inc()
	s.log.Info("loan created",
		zap.String("loan_id", loan.LoanID),
		zap.String("kind", string(plan.Kind)),
		zap.Int64("principal", plan.Principal),
		zap.Int64("periodic_amount", plan.PeriodicAmount),
		zap.Int("periods", plan.Periods()),
	)

	return &domain.CreateLoanResponse{
		Loan:     loan,
		Schedule: previewSchedule(ledger.GenerateSchedule(plan)),
	}, nil
}

func (s *LedgerService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.loadLoan(ctx, loanID)
}

// GetSchedule returns the schedule with the paid status of each period.
// Interest-only schedules are listed up to today plus the next period.
func (s *LedgerService) GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	l, err := s.loadLedger(ctx, loanID)
	if err != nil {
		return nil, err
	}

	schedule := ledger.GenerateSchedule(l.Plan())
	var entries []domain.ScheduleEntry
	if schedule.OpenEnded() {
		today := s.today()
		entries = append(schedule.Through(today), schedule.Next(today, 1)...)
	} else {
		entries = schedule.Entries()
	}

	return &domain.ScheduleResponse{
		LoanID:    loanID,
		Kind:      l.Plan().Kind,
		Schedule:  entries,
		Status:    l.Project(entries),
		OpenEnded: schedule.OpenEnded(),
	}, nil
}

// GetLedgerState returns the outstanding balance and derived status.
func (s *LedgerService) GetLedgerState(ctx context.Context, loanID string) (*domain.OutstandingResponse, error) {
	l, err := s.loadLedger(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &domain.OutstandingResponse{LoanID: loanID, State: l.State()}, nil
}

// RecordPayment appends a payment under the loan lock.
func (s *LedgerService) RecordPayment(ctx context.Context, loanID string, request *domain.MakePaymentRequest) (*domain.PaymentResponse, error) {
	const op = "record_payment"

	mode, paidDate, err := s.paymentInput(request.Mode, request.PaidDate)
	if err != nil {
		return nil, s.reject(op, loanID, err)
	}

	var response *domain.PaymentResponse
	err = s.withLedger(ctx, loanID, func(l *ledger.Ledger) error {
		expected := len(l.Payments())
		record, state, err := l.ApplyPayment(request.Amount, paidDate, mode, request.Note)
		if err != nil {
			return err
		}
		if err := s.PaymentRepo.Append(ctx, loanID, expected, record); err != nil {
			return err
		}
		response = &domain.PaymentResponse{Record: record, State: state}
		return nil
	})
	if err != nil {
		return nil, s.reject(op, loanID, err)
	}

	s.recorded(ctx, loanID, response)
	return response, nil
}

// UndoLastPayment removes the most recently inserted payment.
func (s *LedgerService) UndoLastPayment(ctx context.Context, loanID string) (*domain.PaymentResponse, error) {
	var response *domain.PaymentResponse
	err := s.withLedger(ctx, loanID, func(l *ledger.Ledger) error {
		expected := len(l.Payments())
		record, state, err := l.UndoLastPayment()
		if err != nil {
			return err
		}
		removed, err := s.PaymentRepo.RemoveLast(ctx, loanID, expected)
		if err != nil {
			return err
		}
		if removed.ID != record.ID {
			return fmt.Errorf("%w: removed record %s, expected %s", customError.ErrConcurrentModification, removed.ID, record.ID)
		}
		response = &domain.PaymentResponse{Record: removed, State: state}
		return nil
	})
	if err != nil {
		return nil, s.reject("undo_payment", loanID, err)
	}

	metrics.RecordsUndone.Inc()
	s.log.Info("payment undone",
		zap.String("loan_id", loanID),
		zap.Int("sequence", response.Record.Sequence),
		zap.Int64("amount", response.Record.Amount),
		zap.Int64("balance", response.State.Balance),
	)
	return response, nil
}

// Settle returns the principal of an interest-only loan and closes it.
func (s *LedgerService) Settle(ctx context.Context, loanID string, request *domain.MakePaymentRequest) (*domain.PaymentResponse, error) {
	const op = "settle"

	mode, paidDate, err := s.paymentInput(request.Mode, request.PaidDate)
	if err != nil {
		return nil, s.reject(op, loanID, err)
	}

	var response *domain.PaymentResponse
	err = s.withLedger(ctx, loanID, func(l *ledger.Ledger) error {
		expected := len(l.Payments())
		record, state, err := l.Settle(request.Amount, paidDate, mode, request.Note)
		if err != nil {
			return err
		}
		if err := s.PaymentRepo.Append(ctx, loanID, expected, record); err != nil {
			return err
		}
		response = &domain.PaymentResponse{Record: record, State: state}
		return nil
	})
	if err != nil {
		return nil, s.reject(op, loanID, err)
	}

	s.recorded(ctx, loanID, response)
	return response, nil
}

// Classify buckets the loan's unpaid periods as of the given date. A zero
// asOf means today.
func (s *LedgerService) Classify(ctx context.Context, loanID string, asOf time.Time) (*domain.Classification, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}

	l, err := s.loadLedger(ctx, loanID)
	if err != nil {
		return nil, err
	}

	c := ledger.Classify(l, ledger.GenerateSchedule(l.Plan()), asOf)
	return &c, nil
}

// IsDelinquent checks the missed periods as of today against the
// configured threshold.
func (s *LedgerService) IsDelinquent(ctx context.Context, loanID string) (*domain.DelinquentResponse, error) {
	c, err := s.Classify(ctx, loanID, time.Time{})
	if err != nil {
		return nil, err
	}

	return &domain.DelinquentResponse{
		LoanID:        loanID,
		IsDelinquent:  c.IsDelinquent(s.config.Business.DelinquencyThreshold),
		MissedPeriods: c.MissedCount,
		DaysOverdue:   c.DaysOverdue,
	}, nil
}

// ForeclosureQuote prices an early payoff. An unset penalty uses the
// configured default.
func (s *LedgerService) ForeclosureQuote(ctx context.Context, loanID string, penaltyPercent decimal.NullDecimal) (*domain.ForeclosureQuote, error) {
	l, err := s.loadLedger(ctx, loanID)
	if err != nil {
		return nil, err
	}

	quote, err := ledger.ForecloseQuote(l, s.penalty(penaltyPercent))
	if err != nil {
		return nil, s.reject("foreclosure_quote", loanID, err)
	}
	return quote, nil
}

// CommitForeclosure closes the loan for a previously quoted amount. The
// quote is rejected as stale if the ledger moved since it was taken.
func (s *LedgerService) CommitForeclosure(ctx context.Context, loanID string, request *domain.ForecloseRequest) (*domain.PaymentResponse, error) {
	const op = "foreclose"

	mode, paidDate, err := s.paymentInput(request.Mode, request.PaidDate)
	if err != nil {
		return nil, s.reject(op, loanID, err)
	}

	accepted := &domain.ForeclosureQuote{
		LoanID:            loanID,
		PenaltyPercent:    s.penalty(request.PenaltyPercent),
		ForeclosureAmount: request.QuotedAmount,
		PaymentCount:      request.QuotedPaymentCount,
	}

	var response *domain.PaymentResponse
	err = s.withLedger(ctx, loanID, func(l *ledger.Ledger) error {
		expected := len(l.Payments())
		record, state, err := l.CommitForeclosure(accepted, paidDate, mode, request.Note)
		if err != nil {
			return err
		}
		if err := s.PaymentRepo.Append(ctx, loanID, expected, record); err != nil {
			return err
		}
		response = &domain.PaymentResponse{Record: record, State: state}
		return nil
	})
	if err != nil {
		return nil, s.reject(op, loanID, err)
	}

	s.recorded(ctx, loanID, response)
	return response, nil
}

// MarkDefaulted records the external default signal. Marking an already
// defaulted loan is a no-op; closed loans cannot default.
func (s *LedgerService) MarkDefaulted(ctx context.Context, loanID string) (*domain.OutstandingResponse, error) {
	var response *domain.OutstandingResponse
	err := s.withLedger(ctx, loanID, func(l *ledger.Ledger) error {
		state := l.State()
		if state.Status.IsClosed() {
			return fmt.Errorf("%w: loan %s is %s", customError.ErrLoanAlreadySettled, loanID, state.Status)
		}

		if l.Loan().DefaultedAt == nil {
			now := s.clock.Now()
			if err := s.LoanRepo.MarkDefaulted(ctx, loanID, now); err != nil {
				return err
			}
			l.Loan().DefaultedAt = &now
			metrics.LoansDefaulted.Inc()
			s.log.Warn("loan marked defaulted", zap.String("loan_id", loanID), zap.Int64("balance", state.Balance))
		}

		response = &domain.OutstandingResponse{LoanID: loanID, State: l.State()}
		return nil
	})
	if err != nil {
		return nil, s.reject("mark_defaulted", loanID, err)
	}
	return response, nil
}

// SweepResult summarises one overdue sweep.
type SweepResult struct {
	Scanned       int   `json:"scanned"`
	Overdue       int   `json:"overdue"`
	Delinquent    int   `json:"delinquent"`
	Defaulted     int   `json:"defaulted"`
	Failed        int   `json:"failed"`
	OverdueAmount int64 `json:"overdue_amount"`
}

// SweepOverdue classifies every open loan as of today and refreshes the
// overdue gauges. When AUTO_DEFAULT_AFTER_DAYS is set, loans whose oldest
// unpaid period is at least that old are marked defaulted.
func (s *LedgerService) SweepOverdue(ctx context.Context) (*SweepResult, error) {
	loans, err := s.LoanRepo.ListActive(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	today := s.today()
	autoDefault := s.config.Business.AutoDefaultAfterDays
	result := &SweepResult{}

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		l, err := s.ledgerFor(ctx, loan)
		if err != nil {
			result.Failed++
			s.log.Error("sweep: load payments", zap.String("loan_id", loan.LoanID), zap.Error(err))
			continue
		}

		state := l.State()
		if state.Status.IsClosed() {
			continue
		}
		result.Scanned++

		c := ledger.Classify(l, ledger.GenerateSchedule(l.Plan()), today)
		if c.MissedCount == 0 {
			continue
		}
		result.Overdue++
		result.OverdueAmount += c.OverdueAmount
		if c.IsDelinquent(s.config.Business.DelinquencyThreshold) {
			result.Delinquent++
		}

		if autoDefault > 0 && c.DaysOverdue >= autoDefault && state.Status != domain.LoanStatusDefaulted {
			if _, err := s.MarkDefaulted(ctx, loan.LoanID); err != nil {
				result.Failed++
				continue
			}
			result.Defaulted++
		}
	}

	metrics.OverdueLoans.Set(float64(result.Overdue))
	metrics.DelinquentLoans.Set(float64(result.Delinquent))
	metrics.OverdueAmount.Set(float64(result.OverdueAmount))

	s.log.Info("overdue sweep finished",
		zap.Time("as_of", today),
		zap.Int("scanned", result.Scanned),
		zap.Int("overdue", result.Overdue),
		zap.Int("delinquent", result.Delinquent),
		zap.Int("defaulted", result.Defaulted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// SendDueReminders hands every unpaid period falling due within the
// reminder window to the notifier. Defaulted loans are left to collections.
func (s *LedgerService) SendDueReminders(ctx context.Context) (int, error) {
	loans, err := s.LoanRepo.ListActive(ctx)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	today := s.today()
	horizon := utils.AddDays(today, s.config.Business.ReminderWindowDays)
	sent := 0

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		l, err := s.ledgerFor(ctx, loan)
		if err != nil {
			s.log.Error("reminders: load payments", zap.String("loan_id", loan.LoanID), zap.Error(err))
			continue
		}
		if l.State().Status != domain.LoanStatusActive {
			continue
		}

		schedule := ledger.GenerateSchedule(l.Plan())
		entries := schedule.Entries()
		if schedule.OpenEnded() {
			entries = schedule.Through(horizon)
		}

		paid := l.Project(entries)
		for _, entry := range entries {
			if paid[entry.Index] == domain.PeriodPaid || entry.DueDate.Before(today) || entry.DueDate.After(horizon) {
				continue
			}

			reminder := domain.Reminder{
				LoanID:        loan.LoanID,
				CustomerName:  loan.CustomerName,
				CustomerPhone: loan.CustomerPhone,
				Entry:         entry,
				DaysUntilDue:  utils.DaysBetween(today, entry.DueDate),
			}
			if err := s.notifier.PaymentDue(ctx, reminder); err != nil {
				s.log.Warn("reminder not delivered", zap.String("loan_id", loan.LoanID), zap.Error(err))
				continue
			}
			sent++
		}
	}

	metrics.RemindersSent.Add(float64(sent))
	s.log.Info("due reminders sent", zap.Int("sent", sent), zap.Time("horizon", horizon))
	return sent, nil
}

// withLedger runs fn on a freshly loaded ledger while holding the loan lock.
func (s *LedgerService) withLedger(ctx context.Context, loanID string, fn func(l *ledger.Ledger) error) error {
	unlock, err := s.locker.Lock(ctx, loanID)
	if err != nil {
		if errors.Is(err, customError.ErrLoanLocked) {
			return customError.WrapLoanLocked(loanID)
		}
		return customError.WrapCacheError(err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release loan lock", zap.String("loan_id", loanID), zap.Error(err))
		}
	}()

	l, err := s.loadLedger(ctx, loanID)
	if err != nil {
		return err
	}
	return fn(l)
}

func (s *LedgerService) loadLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByLoanID(ctx, loanID)
	if errors.Is(err, customError.ErrLoanNotFound) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (s *LedgerService) loadLedger(ctx context.Context, loanID string) (*ledger.Ledger, error) {
	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	l, err := s.ledgerFor(ctx, loan)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return l, nil
}

func (s *LedgerService) ledgerFor(ctx context.Context, loan *domain.Loan) (*ledger.Ledger, error) {
	payments, err := s.PaymentRepo.GetByLoanID(ctx, loan.LoanID)
	if err != nil {
		return nil, err
	}
	return ledger.New(loan, payments), nil
}

func (s *LedgerService) derivePlan(request *domain.CreateLoanRequest) (*domain.LoanPlan, error) {
	givenDate, err := utils.ParseDate(request.GivenDate)
	if err != nil {
		return nil, customError.NewBusinessError(customError.ErrCodeInvalidPlan, "given_date must be YYYY-MM-DD", err)
	}
	anchorDate, err := utils.ParseDate(request.AnchorDate)
	if err != nil {
		return nil, customError.NewBusinessError(customError.ErrCodeInvalidPlan, "anchor_date must be YYYY-MM-DD", err)
	}

	return ledger.DerivePlan(ledger.PlanRequest{
		LoanID:         request.LoanID,
		Kind:           request.Kind,
		Principal:      request.Principal,
		PeriodicAmount: request.PeriodicAmount,
		PeriodCount:    request.PeriodCount,
		RatePercent:    request.RatePercent,
		TermMonths:     request.TermMonths,
		AskedAmount:    request.AskedAmount,
		GivenDate:      givenDate,
		AnchorDate:     anchorDate,
	}, s.rules)
}

// paymentInput parses the mode and the paid date, which defaults to today.
func (s *LedgerService) paymentInput(rawMode, rawDate string) (domain.PaymentMode, time.Time, error) {
	mode, err := domain.ParsePaymentMode(rawMode)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", customError.ErrInvalidPaymentMode, err)
	}

	if rawDate == "" {
		return mode, s.today(), nil
	}
	paidDate, err := utils.ParseDate(rawDate)
	if err != nil {
		return "", time.Time{}, customError.NewBusinessError(customError.ErrCodeInvalidRequest, "paid_date must be YYYY-MM-DD", err)
	}
	return mode, paidDate, nil
}

func (s *LedgerService) penalty(requested decimal.NullDecimal) decimal.Decimal {
	if requested.Valid {
		return requested.Decimal
	}
	return s.config.GetDefaultPenaltyPercent()
}

func (s *LedgerService) today() time.Time {
	return utils.DateOf(s.clock.Now())
}

// recorded publishes a successful append to metrics, the log and the notifier.
func (s *LedgerService) recorded(ctx context.Context, loanID string, response *domain.PaymentResponse) {
	record := response.Record
	metrics.RecordsAppended.WithLabelValues(string(record.Kind), string(record.Mode)).Inc()
	metrics.AmountCollected.WithLabelValues(string(record.Kind)).Add(float64(record.Amount))

	s.log.Info("ledger record appended",
		zap.String("loan_id", loanID),
		zap.String("kind", string(record.Kind)),
		zap.Int("sequence", record.Sequence),
		zap.Int64("amount", record.Amount),
		zap.Int64("balance", response.State.Balance),
		zap.String("status", string(response.State.Status)),
	)

	receipt := domain.Receipt{LoanID: loanID, Record: record, State: response.State}
	if err := s.notifier.PaymentRecorded(ctx, receipt); err != nil {
		s.log.Warn("receipt not delivered", zap.String("loan_id", loanID), zap.Error(err))
	}
}

// reject attaches a business code to err, counts it and logs it.
func (s *LedgerService) reject(operation, loanID string, err error) error {
	be := customError.WrapLedgerError(loanID, err)
	metrics.Rejections.WithLabelValues(operation, be.Code).Inc()

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("loan_id", loanID),
		zap.String("code", be.Code),
		zap.Error(err),
	}
	if be.Code == customError.ErrCodeDatabaseError || be.Code == customError.ErrCodeCacheError {
		s.log.Error("ledger operation failed", fields...)
	} else {
		s.log.Info("ledger operation rejected", fields...)
	}
	return be
}

func newLoan(request *domain.CreateLoanRequest, plan *domain.LoanPlan) *domain.Loan {
	return &domain.Loan{
		ID:            uuid.New(),
		CustomerName:  request.CustomerName,
		CustomerPhone: request.CustomerPhone,
		LoanPlan:      *plan,
	}
}

func previewSchedule(schedule *ledger.Schedule) []domain.ScheduleEntry {
	if !schedule.OpenEnded() {
		return schedule.Entries()
	}

	entries := make([]domain.ScheduleEntry, 0, previewPeriods)
	for entry := range schedule.All() {
		entries = append(entries, entry)
		if len(entries) == previewPeriods {
			break
		}
	}
	return entries
}
