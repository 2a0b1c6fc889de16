package repository

import (
	"context"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/service"
)

const copyColumns = `id, title_id, status, created_at, updated_at`

// CreateCopies registers n AVAILABLE copies for the title in one statement.
func (t *storeTx) CreateCopies(ctx context.Context, titleID uint64, n int) error {
	if n <= 0 {
		return nil
	}
	query := `INSERT INTO copies (title_id, status) VALUES `
	args := make([]interface{}, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, titleID, model.StatusAvailable)
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// CopyForUpdate fetches the copy row with a row lock.  Every circulation
// operation goes through this, so two transactions touching the same copy
// serialize here.
func (t *storeTx) CopyForUpdate(ctx context.Context, copyID uint64) (*model.Copy, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+copyColumns+` FROM copies WHERE id = ? FOR UPDATE`, copyID)
	return scanCopy(row, service.ErrCopyNotFound)
}

// FirstAvailableCopy returns the lowest-ID AVAILABLE copy of the title,
// locked for the rest of the transaction.
func (t *storeTx) FirstAvailableCopy(ctx context.Context, titleID uint64) (*model.Copy, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+copyColumns+` FROM copies WHERE title_id = ? AND status = ? ORDER BY id LIMIT 1 FOR UPDATE`,
		titleID, model.StatusAvailable)
	return scanCopy(row, service.ErrCopyNotFound)
}

// CopyCountByTitle counts every copy ever registered for the title,
// regardless of status.
func (t *storeTx) CopyCountByTitle(ctx context.Context, titleID uint64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM copies WHERE title_id = ?`, titleID).Scan(&n)
	return n, err
}

// UpdateCopyStatus persists a status transition.  No affected-rows check:
// the driver counts changed rows, so writing the status the row already
// has reports zero, and callers lock the row beforehand anyway.
func (t *storeTx) UpdateCopyStatus(ctx context.Context, copyID uint64, status model.CopyStatus) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE copies SET status = ? WHERE id = ?`, status, copyID)
	return err
}

// CopyIDsByTitle resolves every copy identifier under the title.
func (t *storeTx) CopyIDsByTitle(ctx context.Context, titleID uint64) ([]uint64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM copies WHERE title_id = ?`, titleID)
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

// DeleteCopiesByTitle removes all of a title's copies.
func (t *storeTx) DeleteCopiesByTitle(ctx context.Context, titleID uint64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM copies WHERE title_id = ?`, titleID)
	return err
}

// CopyStatusCounts groups the whole inventory by status.
func (t *storeTx) CopyStatusCounts(ctx context.Context) (map[model.CopyStatus]int, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM copies GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.CopyStatus]int)
	for rows.Next() {
		var (
			status uint8
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.CopyStatus(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCopy(row rowScanner, missing error) (*model.Copy, error) {
	var c model.Copy
	var status uint8
	err := row.Scan(&c.ID, &c.TitleID, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, missing
		}
		return nil, err
	}
	c.Status = model.CopyStatus(status)
	return &c, nil
}
