package service

import (
	"context"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
)

// Store is the persistence collaborator.  It hands the caller a
// transactional view (Tx) and guarantees that everything done inside the
// callback commits or rolls back as one unit.  The SQL implementation
// lives in internal/repository; tests substitute an in-memory fake.
type Store interface {
	// WithinTx runs fn inside a read-write transaction.  If fn returns an
	// error the transaction is rolled back and the error is returned.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// ReadOnly runs fn inside a read-only transaction so that every query
	// in fn observes one consistent snapshot.
	ReadOnly(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is one transactional view of the five circulation tables plus the
// aggregate queries the dashboards need.  Row-returning lookups report a
// missing row with the matching *NotFound sentinel from this package.
type Tx interface {
	// Titles and copies.
	TitleExists(ctx context.Context, titleID uint64) (bool, error)
	CreateTitle(ctx context.Context, t *model.Title) error
	CreateCopies(ctx context.Context, titleID uint64, n int) error
	// CopyForUpdate locks the copy row for the rest of the transaction;
	// this is the guard that serializes concurrent checkouts of one copy.
	CopyForUpdate(ctx context.Context, copyID uint64) (*model.Copy, error)
	CopyCountByTitle(ctx context.Context, titleID uint64) (int, error)
	// FirstAvailableCopy returns the lowest-ID AVAILABLE copy of the
	// title, locked, or ErrCopyNotFound when none exists.
	FirstAvailableCopy(ctx context.Context, titleID uint64) (*model.Copy, error)
	UpdateCopyStatus(ctx context.Context, copyID uint64, status model.CopyStatus) error

	// Borrowings.
	CreateBorrowing(ctx context.Context, b *model.Borrowing) error
	BorrowingForUpdate(ctx context.Context, borrowingID uint64) (*model.Borrowing, error)
	MarkReturned(ctx context.Context, borrowingID uint64, returnedAt time.Time) error
	// OpenBorrowings returns loans with no return date whose due date lies
	// before asOf — the candidates for a fine sweep.
	OpenBorrowings(ctx context.Context, asOf time.Time) ([]model.Borrowing, error)

	// Reservations.  The queue order is creation date, ties broken by ID.
	CreateReservation(ctx context.Context, r *model.Reservation) error
	ReservationByID(ctx context.Context, reservationID uint64) (*model.Reservation, error)
	OldestPendingReservation(ctx context.Context, titleID uint64) (*model.Reservation, error)
	ClaimReservation(ctx context.Context, reservationID, copyID uint64, expiresAt time.Time) error
	ClaimedReservationByCopy(ctx context.Context, copyID uint64) (*model.Reservation, error)
	ExpiredClaims(ctx context.Context, titleID uint64, asOf time.Time) ([]model.Reservation, error)
	DeleteReservation(ctx context.Context, reservationID uint64) error
	ReservationsByReader(ctx context.Context, readerID uint64) ([]model.Reservation, error)

	// Fines.
	CreateFine(ctx context.Context, f *model.Fine) error
	FineExists(ctx context.Context, borrowingID uint64) (bool, error)
	OutstandingFineTotal(ctx context.Context, readerID uint64) (int64, error)

	// Cascading deletion of a title.
	CopyIDsByTitle(ctx context.Context, titleID uint64) ([]uint64, error)
	BorrowingIDsByTitleOrCopies(ctx context.Context, titleID uint64, copyIDs []uint64) ([]uint64, error)
	DeleteFinesByBorrowings(ctx context.Context, borrowingIDs []uint64) error
	DeleteReservationsByTitleOrCopies(ctx context.Context, titleID uint64, copyIDs []uint64) error
	DeleteBorrowings(ctx context.Context, borrowingIDs []uint64) error
	DeleteCopiesByTitle(ctx context.Context, titleID uint64) error
	DeleteTitle(ctx context.Context, titleID uint64) error

	// Aggregates.
	CountTitles(ctx context.Context) (int, error)
	CountReaders(ctx context.Context) (int, error)
	CopyStatusCounts(ctx context.Context) (map[model.CopyStatus]int, error)
	// BorrowDates returns the borrow dates of every borrowing in the given
	// year up to the given instant; readerID narrows to one reader when
	// non-nil.
	BorrowDates(ctx context.Context, year int, readerID *uint64, until time.Time) ([]time.Time, error)
	FineTotalBetween(ctx context.Context, from, to time.Time) (int64, error)
	ReaderBorrowingCounts(ctx context.Context, readerID uint64, asOf time.Time) (total, active, overdue int, err error)
	CountReservationsByReader(ctx context.Context, readerID uint64) (int, error)
	RecentBorrowings(ctx context.Context, readerID uint64, limit int) ([]model.BorrowingWithTitle, error)

	// Catalog listing.
	ListTitleSummaries(ctx context.Context) ([]model.TitleSummary, error)
	ListBorrowingsWithTitles(ctx context.Context, limit int) ([]model.BorrowingWithTitle, error)
}
