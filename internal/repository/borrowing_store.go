package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/service"
)

const borrowingColumns = `id, reader_id, copy_id, title_id, borrow_date, due_date, return_date`

// CreateBorrowing inserts the loan row and populates the generated ID.
func (t *storeTx) CreateBorrowing(ctx context.Context, b *model.Borrowing) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO borrowings (reader_id, copy_id, title_id, borrow_date, due_date, return_date)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		b.ReaderID, b.CopyID, b.TitleID, b.BorrowDate, b.DueDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// BorrowingForUpdate fetches the loan row with a row lock so returns of the
// same borrowing serialize.
func (t *storeTx) BorrowingForUpdate(ctx context.Context, borrowingID uint64) (*model.Borrowing, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+borrowingColumns+` FROM borrowings WHERE id = ? FOR UPDATE`, borrowingID)
	b, err := scanBorrowing(row)
	if err != nil {
		if isNoRows(err) {
			return nil, service.ErrBorrowingNotFound
		}
		return nil, err
	}
	return b, nil
}

// MarkReturned stamps the return date.  The date is written exactly once;
// the service refuses a second return before calling this.
func (t *storeTx) MarkReturned(ctx context.Context, borrowingID uint64, returnedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE borrowings SET return_date = ? WHERE id = ? AND return_date IS NULL`,
		returnedAt, borrowingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return service.ErrAlreadyReturned
	}
	return nil
}

// OpenBorrowings lists open loans whose due date lies before asOf.
func (t *storeTx) OpenBorrowings(ctx context.Context, asOf time.Time) ([]model.Borrowing, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+borrowingColumns+` FROM borrowings WHERE return_date IS NULL AND due_date < ?`,
		asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Borrowing
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// BorrowingIDsByTitleOrCopies resolves borrowings referencing the title
// through either reference style: the denormalized title_id or a copy in
// the given set.
func (t *storeTx) BorrowingIDsByTitleOrCopies(ctx context.Context, titleID uint64, copyIDs []uint64) ([]uint64, error) {
	query := `SELECT id FROM borrowings WHERE title_id = ?`
	args := []interface{}{titleID}
	if len(copyIDs) > 0 {
		query += ` OR copy_id IN (` + placeholders(len(copyIDs)) + `)`
		args = append(args, idArgs(copyIDs)...)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteBorrowings removes the given loans.
func (t *storeTx) DeleteBorrowings(ctx context.Context, borrowingIDs []uint64) error {
	if len(borrowingIDs) == 0 {
		return nil
	}
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM borrowings WHERE id IN (`+placeholders(len(borrowingIDs))+`)`,
		idArgs(borrowingIDs)...)
	return err
}

// BorrowDates returns the borrow dates within the given year up to `until`,
// optionally narrowed to one reader.
func (t *storeTx) BorrowDates(ctx context.Context, year int, readerID *uint64, until time.Time) ([]time.Time, error) {
	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, until.Location())
	query := `SELECT borrow_date FROM borrowings WHERE borrow_date >= ? AND borrow_date <= ?`
	args := []interface{}{startOfYear, until}
	if readerID != nil {
		query += ` AND reader_id = ?`
		args = append(args, *readerID)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ReaderBorrowingCounts returns a reader's total, open and overdue-open
// loan counts in one pass.
func (t *storeTx) ReaderBorrowingCounts(ctx context.Context, readerID uint64, asOf time.Time) (total, active, overdue int, err error) {
	err = t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN return_date IS NULL THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN return_date IS NULL AND due_date < ? THEN 1 ELSE 0 END), 0)
		 FROM borrowings WHERE reader_id = ?`,
		asOf, readerID).Scan(&total, &active, &overdue)
	return total, active, overdue, err
}

// RecentBorrowings lists the reader's latest loans, newest first, enriched
// with the title name.
func (t *storeTx) RecentBorrowings(ctx context.Context, readerID uint64, limit int) ([]model.BorrowingWithTitle, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT b.id, b.reader_id, b.copy_id, b.title_id, b.borrow_date, b.due_date, b.return_date, t.name
		 FROM borrowings b
		 JOIN titles t ON t.id = b.title_id
		 WHERE b.reader_id = ?
		 ORDER BY b.borrow_date DESC, b.id DESC
		 LIMIT ?`,
		readerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrowingsWithTitles(rows)
}

// ListBorrowingsWithTitles lists the most recent loans branch-wide for the
// admin history view.
func (t *storeTx) ListBorrowingsWithTitles(ctx context.Context, limit int) ([]model.BorrowingWithTitle, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT b.id, b.reader_id, b.copy_id, b.title_id, b.borrow_date, b.due_date, b.return_date, t.name
		 FROM borrowings b
		 JOIN titles t ON t.id = b.title_id
		 ORDER BY b.borrow_date DESC, b.id DESC
		 LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrowingsWithTitles(rows)
}

func collectBorrowingsWithTitles(rows *sql.Rows) ([]model.BorrowingWithTitle, error) {
	var out []model.BorrowingWithTitle
	for rows.Next() {
		var (
			b        model.BorrowingWithTitle
			returned sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.ReaderID, &b.CopyID, &b.TitleID,
			&b.BorrowDate, &b.DueDate, &returned, &b.TitleName); err != nil {
			return nil, err
		}
		if returned.Valid {
			r := returned.Time
			b.ReturnDate = &r
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBorrowing(row rowScanner) (*model.Borrowing, error) {
	var (
		b        model.Borrowing
		returned sql.NullTime
	)
	err := row.Scan(&b.ID, &b.ReaderID, &b.CopyID, &b.TitleID,
		&b.BorrowDate, &b.DueDate, &returned)
	if err != nil {
		return nil, err
	}
	if returned.Valid {
		r := returned.Time
		b.ReturnDate = &r
	}
	return &b, nil
}
