package mocks

import (
	"context"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockLedgerService struct {
	mock.Mock
}

// NewMockLedgerService creates a new mock ledger service instance
func NewMockLedgerService() *MockLedgerService {
	return &MockLedgerService{}
}

func (m *MockLedgerService) PreviewPlan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateLoanResponse), args.Error(1)
}

func (m *MockLedgerService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateLoanResponse), args.Error(1)
}

func (m *MockLedgerService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockLedgerService) GetLedgerState(ctx context.Context, loanID string) (*domain.OutstandingResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutstandingResponse), args.Error(1)
}

func (m *MockLedgerService) RecordPayment(ctx context.Context, loanID string, request *domain.MakePaymentRequest) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, loanID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLedgerService) UndoLastPayment(ctx context.Context, loanID string) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLedgerService) Settle(ctx context.Context, loanID string, request *domain.MakePaymentRequest) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, loanID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLedgerService) Classify(ctx context.Context, loanID string, asOf time.Time) (*domain.Classification, error) {
	args := m.Called(ctx, loanID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Classification), args.Error(1)
}

func (m *MockLedgerService) IsDelinquent(ctx context.Context, loanID string) (*domain.DelinquentResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DelinquentResponse), args.Error(1)
}

func (m *MockLedgerService) ForeclosureQuote(ctx context.Context, loanID string, penaltyPercent decimal.NullDecimal) (*domain.ForeclosureQuote, error) {
	args := m.Called(ctx, loanID, penaltyPercent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ForeclosureQuote), args.Error(1)
}

func (m *MockLedgerService) CommitForeclosure(ctx context.Context, loanID string, request *domain.ForecloseRequest) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, loanID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLedgerService) MarkDefaulted(ctx context.Context, loanID string) (*domain.OutstandingResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutstandingResponse), args.Error(1)
}
