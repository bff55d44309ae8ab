package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

const loanColumns = `id, loan_id, customer_name, customer_phone, kind, principal, periodic_amount,
		period_count, rate_percent, term_months, asked_amount, interest_total, total_payable,
		given_date, anchor_date, defaulted_at, created_at`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, loan_id, customer_name, customer_phone, kind, principal, periodic_amount,
			period_count, rate_percent, term_months, asked_amount, interest_total, total_payable,
			given_date, anchor_date)
		VALUES (:id, :loan_id, :customer_name, :customer_phone, :kind, :principal, :periodic_amount,
			:period_count, :rate_percent, :term_months, :asked_amount, :interest_total, :total_payable,
			:given_date, :anchor_date)
		RETURNING created_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, loan)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", customError.ErrLoanAlreadyExists, loan.LoanID)
		}
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&loan.CreatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_id = $1`

	var loan domain.Loan
	err := r.db.GetContext(ctx, &loan, query, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", customError.ErrLoanNotFound, loanID)
	}
	if err != nil {
		return nil, err
	}

	normalizeDates(&loan)
	return &loan, nil
}

func (r *loanRepository) MarkDefaulted(ctx context.Context, loanID string, at time.Time) error {
	query := `
		UPDATE loans
		SET defaulted_at = COALESCE(defaulted_at, $2)
		WHERE loan_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, loanID, at)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", customError.ErrLoanNotFound, loanID)
	}
	return nil
}

func (r *loanRepository) ListActive(ctx context.Context) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans l
		WHERE NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.loan_id = l.loan_id AND p.kind <> 'payment'
		)
		ORDER BY l.created_at
	`

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, err
	}

	for _, loan := range loans {
		normalizeDates(loan)
	}
	return loans, nil
}

// normalizeDates turns DATE columns back into civil dates
func normalizeDates(loan *domain.Loan) {
	loan.GivenDate = utils.DateOf(loan.GivenDate)
	loan.AnchorDate = utils.DateOf(loan.AnchorDate)
}
