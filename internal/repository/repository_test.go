package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

var loanRowColumns = []string{
	"id", "loan_id", "customer_name", "customer_phone", "kind", "principal", "periodic_amount",
	"period_count", "rate_percent", "term_months", "asked_amount", "interest_total", "total_payable",
	"given_date", "anchor_date", "defaulted_at", "created_at",
}

var paymentRowColumns = []string{"id", "loan_id", "sequence", "amount", "paid_date", "mode", "kind", "note", "created_at"}

func sampleLoan() *domain.Loan {
	count := 10
	return &domain.Loan{
		ID:           uuid.New(),
		CustomerName: "Ravi",
		LoanPlan: domain.LoanPlan{
			LoanID:         "LOAN-1",
			Kind:           domain.KindWeeklyInstallment,
			Principal:      10000,
			PeriodicAmount: 1000,
			PeriodCount:    &count,
			TotalPayable:   10000,
			GivenDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			AnchorDate:     time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestLoanRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)
	loan := sampleLoan()
	createdAt := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	require.NoError(t, repo.Create(context.Background(), loan))
	assert.Equal(t, createdAt, loan.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), sampleLoan())
	assert.ErrorIs(t, err, customError.ErrLoanAlreadyExists)
}

func TestLoanRepository_GetByLoanID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)
	id := uuid.New()

	rows := sqlmock.NewRows(loanRowColumns).AddRow(
		id.String(), "LOAN-I", "Meena", "+919800000000", "interest_only", int64(100000), int64(3000),
		nil, "3", 0, int64(0), int64(3000), int64(100000),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), nil, time.Now(),
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE loan_id = $1")).WithArgs("LOAN-I").WillReturnRows(rows)

	loan, err := repo.GetByLoanID(context.Background(), "LOAN-I")

	require.NoError(t, err)
	assert.Equal(t, id, loan.ID)
	assert.Equal(t, domain.KindInterestOnly, loan.Kind)
	assert.Nil(t, loan.PeriodCount)
	require.True(t, loan.RatePercent.Valid)
	assert.True(t, loan.RatePercent.Decimal.Equal(decimal.NewFromInt(3)))
	assert.Nil(t, loan.DefaultedAt)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), loan.AnchorDate)
}

func TestLoanRepository_GetByLoanIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE loan_id = $1")).
		WithArgs("MISSING").
		WillReturnRows(sqlmock.NewRows(loanRowColumns))

	_, err := repo.GetByLoanID(context.Background(), "MISSING")
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)
}

func TestLoanRepository_MarkDefaulted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).WithArgs("LOAN-1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).WithArgs("GONE", at).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.MarkDefaulted(context.Background(), "LOAN-1", at))
	assert.ErrorIs(t, repo.MarkDefaulted(context.Background(), "GONE", at), customError.ErrLoanNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepository_ListActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLoanRepository(db)

	rows := sqlmock.NewRows(loanRowColumns).
		AddRow(uuid.NewString(), "LOAN-1", "Ravi", "", "weekly", int64(10000), int64(1000), 10, nil, 0, int64(0), int64(0), int64(10000),
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), nil, time.Now()).
		AddRow(uuid.NewString(), "LOAN-2", "Asha", "", "monthly", int64(5000), int64(1000), 5, nil, 0, int64(0), int64(0), int64(5000),
			time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("NOT EXISTS")).WillReturnRows(rows)

	loans, err := repo.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, "LOAN-2", loans[1].LoanID)
	require.NotNil(t, loans[0].PeriodCount)
	assert.Equal(t, 10, *loans[0].PeriodCount)
}

func paymentRecord(sequence int) *domain.PaymentRecord {
	return &domain.PaymentRecord{
		ID:       uuid.New(),
		LoanID:   "LOAN-1",
		Sequence: sequence,
		Amount:   1000,
		PaidDate: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		Mode:     domain.PaymentModeCash,
		Kind:     domain.RecordPayment,
	}
}

func TestPaymentRepository_GetByLoanID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows(paymentRowColumns).
		AddRow(uuid.NewString(), "LOAN-1", 1, int64(1000), time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), "cash", "payment", "", time.Now()).
		AddRow(uuid.NewString(), "LOAN-1", 2, int64(1000), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), "upi", "payment", "backdated", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sequence")).WithArgs("LOAN-1").WillReturnRows(rows)

	records, err := repo.GetByLoanID(context.Background(), "LOAN-1")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[1].Sequence)
	assert.Equal(t, domain.PaymentModeUPI, records[1].Mode)
	assert.Equal(t, "backdated", records[1].Note)
}

func TestPaymentRepository_Append(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	record := paymentRecord(3)
	createdAt := time.Date(2024, 1, 7, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payment_count FROM loans WHERE loan_id = $1 FOR UPDATE")).
		WithArgs("LOAN-1").
		WillReturnRows(sqlmock.NewRows([]string{"payment_count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(record.ID, "LOAN-1", 3, int64(1000), record.PaidDate, "cash", "payment", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE loans SET payment_count = payment_count + 1")).
		WithArgs("LOAN-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Append(context.Background(), "LOAN-1", 2, record))
	assert.Equal(t, createdAt, record.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_AppendConflicts(t *testing.T) {
	tests := []struct {
		name   string
		rows   *sqlmock.Rows
		expect error
	}{
		{
			name:   "count moved",
			rows:   sqlmock.NewRows([]string{"payment_count"}).AddRow(3),
			expect: customError.ErrConcurrentModification,
		},
		{
			name:   "loan missing",
			rows:   sqlmock.NewRows([]string{"payment_count"}),
			expect: customError.ErrLoanNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPaymentRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta("SELECT payment_count")).WillReturnRows(tt.rows)
			mock.ExpectRollback()

			err := repo.Append(context.Background(), "LOAN-1", 2, paymentRecord(3))

			assert.ErrorIs(t, err, tt.expect)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPaymentRepository_RemoveLast(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payment_count")).
		WithArgs("LOAN-1").
		WillReturnRows(sqlmock.NewRows([]string{"payment_count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM payments WHERE loan_id = $1 AND sequence = $2")).
		WithArgs("LOAN-1", 3).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow(id.String(), "LOAN-1", 3, int64(1000), time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC), "cash", "payment", "", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE loans SET payment_count = payment_count - 1")).
		WithArgs("LOAN-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.RemoveLast(context.Background(), "LOAN-1", 3)

	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, 3, record.Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_RemoveLastEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payment_count")).
		WillReturnRows(sqlmock.NewRows([]string{"payment_count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := repo.RemoveLast(context.Background(), "LOAN-1", 0)

	assert.ErrorIs(t, err, customError.ErrNothingToUndo)
	assert.NoError(t, mock.ExpectationsWereMet())
}
