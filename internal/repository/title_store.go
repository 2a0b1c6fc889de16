package repository

import (
	"context"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/service"
)

// TitleExists reports whether the title row is present.
func (t *storeTx) TitleExists(ctx context.Context, titleID uint64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM titles WHERE id = ?`, titleID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if isNoRows(err) {
		return false, nil
	}
	return false, err
}

// CreateTitle inserts the catalog entry and populates the generated ID.
func (t *storeTx) CreateTitle(ctx context.Context, ti *model.Title) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO titles (name, author, genre, language, published_year, description, location, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ti.Name, ti.Author, ti.Genre, ti.Language, ti.PublishedYear, ti.Description, ti.Location, ti.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ti.ID = uint64(id)
	return nil
}

// DeleteTitle removes the title row itself.  The orchestrator has deleted
// every dependent row before calling this.
func (t *storeTx) DeleteTitle(ctx context.Context, titleID uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM titles WHERE id = ?`, titleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return service.ErrTitleNotFound
	}
	return nil
}

// CountTitles counts catalog entries.
func (t *storeTx) CountTitles(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM titles`).Scan(&n)
	return n, err
}

// ListTitleSummaries returns every title with total and available copy
// counts, newest first.
func (t *storeTx) ListTitleSummaries(ctx context.Context) ([]model.TitleSummary, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT t.id, t.name, t.author, t.genre, t.language, t.published_year, t.description, t.location, t.created_at,
		        COUNT(c.id),
		        COALESCE(SUM(CASE WHEN c.status = ? THEN 1 ELSE 0 END), 0)
		 FROM titles t
		 LEFT JOIN copies c ON c.title_id = t.id
		 GROUP BY t.id
		 ORDER BY t.id DESC`,
		model.StatusAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TitleSummary
	for rows.Next() {
		var s model.TitleSummary
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Author, &s.Genre, &s.Language, &s.PublishedYear,
			&s.Description, &s.Location, &s.CreatedAt,
			&s.TotalCopies, &s.AvailableCopies,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountReaders counts active reader accounts.
func (t *storeTx) CountReaders(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, model.RoleReader).Scan(&n)
	return n, err
}
