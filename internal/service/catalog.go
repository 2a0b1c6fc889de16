package service

import (
	"context"
	"errors"

	"github.com/iliyamo/library-lending/internal/model"
)

// ErrBadCopyCount is returned by RegisterTitle when the requested number of
// copies is not positive.
var ErrBadCopyCount = errors.New("copy count must be positive")

// Catalog registers titles with their copies and removes them again through
// the cascading deletion.  Both operations are single transactions.
type Catalog struct {
	store Store
	clock Clock
}

// NewCatalog constructs the catalog service around the given store.
func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store, clock: realClock{}}
}

// RegisterTitle creates the title and its initial batch of copies, all
// AVAILABLE, atomically.  The copy count must be at least one.
func (c *Catalog) RegisterTitle(ctx context.Context, t *model.Title, copies int) (*model.TitleSummary, error) {
	if copies <= 0 {
		return nil, ErrBadCopyCount
	}
	t.CreatedAt = c.clock.Now()
	err := c.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.CreateTitle(ctx, t); err != nil {
			return err
		}
		return tx.CreateCopies(ctx, t.ID, copies)
	})
	if err != nil {
		return nil, storeErr("register title", err)
	}
	return &model.TitleSummary{Title: *t, TotalCopies: copies, AvailableCopies: copies}, nil
}

// ListTitles returns every title with its copy counts.
func (c *Catalog) ListTitles(ctx context.Context) ([]model.TitleSummary, error) {
	var out []model.TitleSummary
	err := c.store.ReadOnly(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListTitleSummaries(ctx)
		return err
	})
	if err != nil {
		return nil, storeErr("list titles", err)
	}
	return out, nil
}

// DeleteTitle removes a title and every record that hangs off it, children
// before parents at every level: fines → reservations → borrowings →
// copies → title.  The borrowing set is resolved through both reference
// styles (borrowing.copy_id and the denormalized borrowing.title_id) so
// drift between them cannot strand rows.  The whole cascade is one
// transaction; if any step fails nothing is deleted.
func (c *Catalog) DeleteTitle(ctx context.Context, titleID uint64) error {
	err := c.store.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.TitleExists(ctx, titleID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTitleNotFound
		}
		copyIDs, err := tx.CopyIDsByTitle(ctx, titleID)
		if err != nil {
			return err
		}
		borrowingIDs, err := tx.BorrowingIDsByTitleOrCopies(ctx, titleID, copyIDs)
		if err != nil {
			return err
		}
		if err := tx.DeleteFinesByBorrowings(ctx, borrowingIDs); err != nil {
			return err
		}
		if err := tx.DeleteReservationsByTitleOrCopies(ctx, titleID, copyIDs); err != nil {
			return err
		}
		if err := tx.DeleteBorrowings(ctx, borrowingIDs); err != nil {
			return err
		}
		if err := tx.DeleteCopiesByTitle(ctx, titleID); err != nil {
			return err
		}
		return tx.DeleteTitle(ctx, titleID)
	})
	return storeErr("delete title", err)
}
