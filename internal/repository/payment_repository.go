package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/jmoiron/sqlx"
)

const paymentColumns = `id, loan_id, sequence, amount, paid_date, mode, kind, note, created_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_id = $1 ORDER BY sequence`

	var records []*domain.PaymentRecord
	if err := r.db.SelectContext(ctx, &records, query, loanID); err != nil {
		return nil, err
	}

	for _, record := range records {
		record.PaidDate = utils.DateOf(record.PaidDate)
	}
	return records, nil
}

func (r *paymentRepository) Append(ctx context.Context, loanID string, expectedCount int, record *domain.PaymentRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkCount(ctx, tx, loanID, expectedCount); err != nil {
		return err
	}

	insert := `
		INSERT INTO payments (id, loan_id, sequence, amount, paid_date, mode, kind, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err = tx.QueryRowxContext(ctx, insert,
		record.ID,
		loanID,
		record.Sequence,
		record.Amount,
		record.PaidDate,
		record.Mode,
		record.Kind,
		record.Note,
	).Scan(&record.CreatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE loans SET payment_count = payment_count + 1 WHERE loan_id = $1`, loanID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *paymentRepository) RemoveLast(ctx context.Context, loanID string, expectedCount int) (*domain.PaymentRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := checkCount(ctx, tx, loanID, expectedCount); err != nil {
		return nil, err
	}
	if expectedCount == 0 {
		return nil, customError.ErrNothingToUndo
	}

	remove := `DELETE FROM payments WHERE loan_id = $1 AND sequence = $2 RETURNING ` + paymentColumns

	var record domain.PaymentRecord
	err = tx.GetContext(ctx, &record, remove, loanID, expectedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sequence %d missing for loan %s", customError.ErrConcurrentModification, expectedCount, loanID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE loans SET payment_count = payment_count - 1 WHERE loan_id = $1`, loanID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	record.PaidDate = utils.DateOf(record.PaidDate)
	return &record, nil
}

// checkCount locks the loan row and compares its payment count
func checkCount(ctx context.Context, tx *sqlx.Tx, loanID string, expectedCount int) error {
	var count int
	err := tx.GetContext(ctx, &count, `SELECT payment_count FROM loans WHERE loan_id = $1 FOR UPDATE`, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", customError.ErrLoanNotFound, loanID)
	}
	if err != nil {
		return err
	}

	if count != expectedCount {
		return fmt.Errorf("%w: loan %s has %d records, expected %d",
			customError.ErrConcurrentModification, loanID, count, expectedCount)
	}
	return nil
}
