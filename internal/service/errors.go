// Package service implements the lending engine: the borrowing ledger, the
// reservation queue, fine accrual, the cascading title deletion and the
// dashboard aggregations.  Every operation runs as one transaction against
// the injected Store; handlers translate the errors defined here into HTTP
// responses.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/library-lending/internal/model"
)

// Domain-rule violations.  These are expected outcomes: the operation
// aborts before any write, so none of them can leave the store in a
// half-updated state.
var (
	// ErrCopyUnavailable is returned by Checkout when the copy is not
	// AVAILABLE and not RESERVED for the requesting reader.
	ErrCopyUnavailable = errors.New("copy unavailable")

	// ErrAlreadyReturned is returned by Return when the borrowing already
	// has a return date.  Return is deliberately not idempotent.
	ErrAlreadyReturned = errors.New("borrowing already returned")

	// ErrNoCopiesExist is returned by Reserve when the title has never had
	// a copy registered, so the reservation could never be fulfilled.
	ErrNoCopiesExist = errors.New("title has no copies")

	// ErrTitleNotFound is returned when the referenced title does not exist.
	ErrTitleNotFound = errors.New("title not found")

	// ErrReaderHasOutstandingFine is returned by Checkout when the
	// block-on-fines policy is enabled and the reader owes money.
	ErrReaderHasOutstandingFine = errors.New("reader has outstanding fines")

	// ErrBorrowingNotFound is returned when the referenced borrowing does
	// not exist.
	ErrBorrowingNotFound = errors.New("borrowing not found")

	// ErrReservationNotFound is returned when the referenced reservation
	// does not exist.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrCopyNotFound is returned when the referenced copy does not exist.
	ErrCopyNotFound = errors.New("copy not found")
)

// StorageError wraps any failure coming out of the persistence layer.  The
// transaction that produced it has been rolled back; callers must not retry
// write operations blindly, since the failure may have happened after the
// intent was applied elsewhere.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// storeErr wraps err in a *StorageError unless it already is a domain error
// surfaced from inside a transaction callback.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || isDomainErr(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isDomainErr(err error) bool {
	for _, d := range []error{
		ErrCopyUnavailable, ErrAlreadyReturned, ErrNoCopiesExist,
		ErrTitleNotFound, ErrReaderHasOutstandingFine,
		ErrBorrowingNotFound, ErrReservationNotFound, ErrCopyNotFound,
	} {
		if errors.Is(err, d) {
			return true
		}
	}
	var it *model.InvalidTransitionError
	return errors.As(err, &it)
}
