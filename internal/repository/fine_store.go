package repository

import (
	"context"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
)

// CreateFine inserts the penalty row and populates the generated ID.
func (t *storeTx) CreateFine(ctx context.Context, f *model.Fine) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO fines (borrowing_id, amount, fine_date) VALUES (?, ?, ?)`,
		f.BorrowingID, f.Amount, f.FineDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	return nil
}

// FineExists reports whether the borrowing already carries a fine.
func (t *storeTx) FineExists(ctx context.Context, borrowingID uint64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM fines WHERE borrowing_id = ? LIMIT 1`, borrowingID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if isNoRows(err) {
		return false, nil
	}
	return false, err
}

// OutstandingFineTotal sums every fine across the reader's borrowings with
// no time bound.
func (t *storeTx) OutstandingFineTotal(ctx context.Context, readerID uint64) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(f.amount), 0)
		 FROM fines f
		 JOIN borrowings b ON b.id = f.borrowing_id
		 WHERE b.reader_id = ?`,
		readerID).Scan(&total)
	return total, err
}

// FineTotalBetween sums fine amounts assessed in [from, to].
func (t *storeTx) FineTotalBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM fines WHERE fine_date >= ? AND fine_date <= ?`,
		from, to).Scan(&total)
	return total, err
}

// DeleteFinesByBorrowings removes every fine owned by the given borrowings.
func (t *storeTx) DeleteFinesByBorrowings(ctx context.Context, borrowingIDs []uint64) error {
	if len(borrowingIDs) == 0 {
		return nil
	}
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM fines WHERE borrowing_id IN (`+placeholders(len(borrowingIDs))+`)`,
		idArgs(borrowingIDs)...)
	return err
}
