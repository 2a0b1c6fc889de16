package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
)

// Policy carries the circulation knobs loaded from configuration.
type Policy struct {
	LoanDays       int           // default loan length when the caller passes none
	FineRatePerDay int64         // fine units charged per day late
	ReservationTTL time.Duration // how long a claimed copy waits for pickup
	BlockOnFines   bool          // refuse checkouts to readers who owe money
}

// Lending is the borrowing ledger and reservation queue.  Each public
// method is one atomic operation: the read-modify-write on the copy status
// and every dependent record change happen in a single transaction, with
// the copy row locked so concurrent checkouts cannot both see AVAILABLE.
type Lending struct {
	store  Store
	policy Policy
	clock  Clock
}

// NewLending constructs the lending service around the given store.
func NewLending(store Store, policy Policy) *Lending {
	return &Lending{store: store, policy: policy, clock: realClock{}}
}

// ReturnCondition describes the state a copy comes back in.
type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "GOOD"
	ConditionLost    ReturnCondition = "LOST"
	ConditionDamaged ReturnCondition = "DAMAGED"
)

func (c ReturnCondition) event() (model.CopyEvent, bool) {
	switch c {
	case ConditionGood:
		return model.EventReturn, true
	case ConditionLost:
		return model.EventReturnLost, true
	case ConditionDamaged:
		return model.EventReturnDamaged, true
	}
	return 0, false
}

// ErrBadCondition is returned by Return for an unknown condition string.
var ErrBadCondition = errors.New("unknown return condition")

// ReturnResult reports everything a return changed, so the handler can
// build the response and publish events without re-querying.
type ReturnResult struct {
	Borrowing  model.Borrowing
	CopyStatus model.CopyStatus
	Fine       *model.Fine        // non-nil when the return was overdue
	Fulfilled  *model.Reservation // non-nil when the copy was claimed by a reservation
}

// Checkout lends a copy to a reader.  The copy must be AVAILABLE, or
// RESERVED with the claim held by this same reader (collecting a fulfilled
// reservation).  When loanDays is zero or negative the policy default
// applies.  With the block-on-fines policy enabled, a reader with any
// outstanding fine total is refused.
func (l *Lending) Checkout(ctx context.Context, readerID, copyID uint64, loanDays int) (*model.Borrowing, error) {
	if loanDays <= 0 {
		loanDays = l.policy.LoanDays
	}
	now := l.clock.Now()
	var out *model.Borrowing
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		cp, err := tx.CopyForUpdate(ctx, copyID)
		if err != nil {
			return err
		}
		if err := l.expireClaims(ctx, tx, cp.TitleID, now); err != nil {
			return err
		}
		// The sweep may have released this copy's own stale claim.
		cp, err = tx.CopyForUpdate(ctx, copyID)
		if err != nil {
			return err
		}
		if l.policy.BlockOnFines {
			total, err := tx.OutstandingFineTotal(ctx, readerID)
			if err != nil {
				return err
			}
			if total > 0 {
				return ErrReaderHasOutstandingFine
			}
		}
		switch cp.Status {
		case model.StatusAvailable:
			// free to take
		case model.StatusReserved:
			res, err := tx.ClaimedReservationByCopy(ctx, copyID)
			if err != nil {
				if errors.Is(err, ErrReservationNotFound) {
					return ErrCopyUnavailable
				}
				return err
			}
			if res.ReaderID != readerID {
				return ErrCopyUnavailable
			}
			// Collecting the claim completes the reservation.
			if err := tx.DeleteReservation(ctx, res.ID); err != nil {
				return err
			}
		default:
			return ErrCopyUnavailable
		}
		next, err := model.Transition(cp.Status, model.EventCheckout)
		if err != nil {
			return err
		}
		b := &model.Borrowing{
			ReaderID:   readerID,
			CopyID:     cp.ID,
			TitleID:    cp.TitleID,
			BorrowDate: now,
			DueDate:    now.AddDate(0, 0, loanDays),
		}
		if err := tx.CreateBorrowing(ctx, b); err != nil {
			return err
		}
		if err := tx.UpdateCopyStatus(ctx, cp.ID, next); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, storeErr("checkout", err)
	}
	return out, nil
}

// Return closes a borrowing.  Calling it twice for the same borrowing fails
// with ErrAlreadyReturned and leaves the copy untouched.  An overdue return
// assesses a fine (at most one per borrowing).  A copy returned in good
// condition goes to the oldest pending reservation for its title when one
// exists, otherwise back to AVAILABLE; lost and damaged copies leave
// circulation until restocked.
func (l *Lending) Return(ctx context.Context, borrowingID uint64, condition ReturnCondition) (*ReturnResult, error) {
	event, ok := condition.event()
	if !ok {
		return nil, ErrBadCondition
	}
	now := l.clock.Now()
	var out *ReturnResult
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		b, err := tx.BorrowingForUpdate(ctx, borrowingID)
		if err != nil {
			return err
		}
		if b.ReturnDate != nil {
			return ErrAlreadyReturned
		}
		cp, err := tx.CopyForUpdate(ctx, b.CopyID)
		if err != nil {
			return err
		}
		if err := l.expireClaims(ctx, tx, b.TitleID, now); err != nil {
			return err
		}
		if err := tx.MarkReturned(ctx, b.ID, now); err != nil {
			return err
		}
		ret := now
		b.ReturnDate = &ret

		var fine *model.Fine
		if now.After(b.DueDate) {
			fine, err = l.assess(ctx, tx, b, now)
			if err != nil {
				return err
			}
		}

		status, err := model.Transition(cp.Status, event)
		if err != nil {
			return err
		}

		var fulfilled *model.Reservation
		if condition == ConditionGood {
			next, err := tx.OldestPendingReservation(ctx, b.TitleID)
			switch {
			case err == nil:
				// First-come-first-served: the returned copy is set aside
				// for the oldest waiting reader instead of going back on
				// the shelf.
				status, err = model.Transition(status, model.EventReserve)
				if err != nil {
					return err
				}
				expires := now.Add(l.policy.ReservationTTL)
				if err := tx.ClaimReservation(ctx, next.ID, cp.ID, expires); err != nil {
					return err
				}
				next.Status = model.ReservationClaimed
				next.CopyID = &cp.ID
				next.ExpiresAt = &expires
				fulfilled = next
			case errors.Is(err, ErrReservationNotFound):
				// nobody waiting
			default:
				return err
			}
		}
		if err := tx.UpdateCopyStatus(ctx, cp.ID, status); err != nil {
			return err
		}
		out = &ReturnResult{Borrowing: *b, CopyStatus: status, Fine: fine, Fulfilled: fulfilled}
		return nil
	})
	if err != nil {
		return nil, storeErr("return", err)
	}
	return out, nil
}

// Reserve places a hold on a title.  The title must exist and must have at
// least one copy registered — availability right now is not required, a
// reservation is a valid hold against future availability.  When a copy is
// free the oldest pending reservation (usually the new one) claims it
// immediately.
func (l *Lending) Reserve(ctx context.Context, readerID, titleID uint64) (*model.Reservation, error) {
	now := l.clock.Now()
	var out *model.Reservation
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.TitleExists(ctx, titleID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTitleNotFound
		}
		if err := l.expireClaims(ctx, tx, titleID, now); err != nil {
			return err
		}
		n, err := tx.CopyCountByTitle(ctx, titleID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNoCopiesExist
		}
		r := &model.Reservation{
			ReaderID:  readerID,
			TitleID:   titleID,
			Status:    model.ReservationPending,
			CreatedAt: now,
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return err
		}
		if err := l.fulfillPending(ctx, tx, titleID, now); err != nil {
			return err
		}
		// Re-read so the caller sees the claim if this reservation got one.
		r, err = tx.ReservationByID(ctx, r.ID)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, storeErr("reserve", err)
	}
	return out, nil
}

// Cancel removes a reservation.  A claimed copy is released and offered to
// the next pending reservation for the title before falling back to
// AVAILABLE.  A non-zero readerID restricts the cancellation to that
// reader's own reservations; someone else's row reports not-found rather
// than confirming it exists.
func (l *Lending) Cancel(ctx context.Context, reservationID, readerID uint64) (*model.Reservation, error) {
	now := l.clock.Now()
	var out *model.Reservation
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		r, err := tx.ReservationByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if readerID != 0 && r.ReaderID != readerID {
			return ErrReservationNotFound
		}
		if err := tx.DeleteReservation(ctx, r.ID); err != nil {
			return err
		}
		if r.Status == model.ReservationClaimed && r.CopyID != nil {
			if err := l.releaseCopy(ctx, tx, r.TitleID, *r.CopyID, now); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, storeErr("cancel reservation", err)
	}
	return out, nil
}

// Restock puts a lost or damaged copy back into circulation.  Any pending
// reservation for the title claims it straight away, preserving queue order.
func (l *Lending) Restock(ctx context.Context, copyID uint64) (*model.Copy, error) {
	now := l.clock.Now()
	var out *model.Copy
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		cp, err := tx.CopyForUpdate(ctx, copyID)
		if err != nil {
			return err
		}
		status, err := model.Transition(cp.Status, model.EventRestock)
		if err != nil {
			return err
		}
		if err := tx.UpdateCopyStatus(ctx, cp.ID, status); err != nil {
			return err
		}
		cp.Status = status
		if err := l.fulfillPending(ctx, tx, cp.TitleID, now); err != nil {
			return err
		}
		cp, err = tx.CopyForUpdate(ctx, copyID)
		if err != nil {
			return err
		}
		out = cp
		return nil
	})
	if err != nil {
		return nil, storeErr("restock", err)
	}
	return out, nil
}

// Assess creates the fine for an overdue borrowing if none exists yet.  It
// is idempotent, so a periodic sweep may call it repeatedly for the same
// borrowing.  A borrowing that is not overdue as of asOf yields no fine and
// no error.
func (l *Lending) Assess(ctx context.Context, borrowingID uint64, asOf time.Time) (*model.Fine, error) {
	var out *model.Fine
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		b, err := tx.BorrowingForUpdate(ctx, borrowingID)
		if err != nil {
			return err
		}
		if !b.IsOverdue(asOf) {
			return nil
		}
		out, err = l.assess(ctx, tx, b, asOf)
		return err
	})
	if err != nil {
		return nil, storeErr("assess fine", err)
	}
	return out, nil
}

// SweepOverdueFines assesses fines for every open borrowing past its due
// date.  Stateless and idempotent; meant to be called by an external
// scheduled job.  Returns the number of fines created.
func (l *Lending) SweepOverdueFines(ctx context.Context) (int, error) {
	now := l.clock.Now()
	created := 0
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		open, err := tx.OpenBorrowings(ctx, now)
		if err != nil {
			return err
		}
		for i := range open {
			b := open[i]
			if !b.IsOverdue(now) {
				continue
			}
			f, err := l.assess(ctx, tx, &b, now)
			if err != nil {
				return err
			}
			if f != nil {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("fine sweep", err)
	}
	return created, nil
}

// ListLoans returns the most recent borrowings across all readers with
// title names attached, newest first.
func (l *Lending) ListLoans(ctx context.Context, limit int) ([]model.BorrowingWithTitle, error) {
	var out []model.BorrowingWithTitle
	err := l.store.ReadOnly(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListBorrowingsWithTitles(ctx, limit)
		return err
	})
	if err != nil {
		return nil, storeErr("list loans", err)
	}
	return out, nil
}

// ListReservations returns the reader's reservations, oldest first.
func (l *Lending) ListReservations(ctx context.Context, readerID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	err := l.store.ReadOnly(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ReservationsByReader(ctx, readerID)
		return err
	})
	if err != nil {
		return nil, storeErr("list reservations", err)
	}
	return out, nil
}

// OutstandingFines returns the reader's total fine amount across all time.
func (l *Lending) OutstandingFines(ctx context.Context, readerID uint64) (int64, error) {
	var total int64
	err := l.store.ReadOnly(ctx, func(tx Tx) error {
		var err error
		total, err = tx.OutstandingFineTotal(ctx, readerID)
		return err
	})
	if err != nil {
		return 0, storeErr("outstanding fines", err)
	}
	return total, nil
}

// assess writes the fine for a late borrowing unless one already exists.
// The caller has already established lateness relative to asOf.
func (l *Lending) assess(ctx context.Context, tx Tx, b *model.Borrowing, asOf time.Time) (*model.Fine, error) {
	exists, err := tx.FineExists(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	f := &model.Fine{
		BorrowingID: b.ID,
		Amount:      FineAmount(l.policy.FineRatePerDay, b.DueDate, asOf),
		FineDate:    asOf,
	}
	if err := tx.CreateFine(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// expireClaims sweeps claimed reservations for the title whose pickup
// window has closed: the stale reservation is dropped and its copy is
// pushed back through the queue.
func (l *Lending) expireClaims(ctx context.Context, tx Tx, titleID uint64, asOf time.Time) error {
	stale, err := tx.ExpiredClaims(ctx, titleID, asOf)
	if err != nil {
		return err
	}
	for _, r := range stale {
		if err := tx.DeleteReservation(ctx, r.ID); err != nil {
			return err
		}
		if r.CopyID != nil {
			if err := l.releaseCopy(ctx, tx, titleID, *r.CopyID, asOf); err != nil {
				return err
			}
		}
	}
	return nil
}

// releaseCopy frees a RESERVED copy and hands it to the next pending
// reservation, or back to AVAILABLE when the queue is empty.
func (l *Lending) releaseCopy(ctx context.Context, tx Tx, titleID, copyID uint64, asOf time.Time) error {
	status, err := model.Transition(model.StatusReserved, model.EventCancelReservation)
	if err != nil {
		return err
	}
	next, err := tx.OldestPendingReservation(ctx, titleID)
	switch {
	case err == nil:
		status, err = model.Transition(status, model.EventReserve)
		if err != nil {
			return err
		}
		if err := tx.ClaimReservation(ctx, next.ID, copyID, asOf.Add(l.policy.ReservationTTL)); err != nil {
			return err
		}
	case errors.Is(err, ErrReservationNotFound):
		// queue empty, copy goes back on the shelf
	default:
		return err
	}
	if status == model.StatusReserved {
		// handed straight to the next claimant, row status is unchanged
		return nil
	}
	return tx.UpdateCopyStatus(ctx, copyID, status)
}

// fulfillPending pairs available copies with pending reservations in queue
// order until one side runs out.
func (l *Lending) fulfillPending(ctx context.Context, tx Tx, titleID uint64, asOf time.Time) error {
	for {
		next, err := tx.OldestPendingReservation(ctx, titleID)
		if errors.Is(err, ErrReservationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cp, err := tx.FirstAvailableCopy(ctx, titleID)
		if errors.Is(err, ErrCopyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		status, err := model.Transition(cp.Status, model.EventReserve)
		if err != nil {
			return err
		}
		if err := tx.ClaimReservation(ctx, next.ID, cp.ID, asOf.Add(l.policy.ReservationTTL)); err != nil {
			return err
		}
		if err := tx.UpdateCopyStatus(ctx, cp.ID, status); err != nil {
			return err
		}
	}
}

// DaysLate counts whole days between the due date and asOf, rounding any
// partial day up, floored at zero.
func DaysLate(dueDate, asOf time.Time) int {
	if !asOf.After(dueDate) {
		return 0
	}
	return int(math.Ceil(asOf.Sub(dueDate).Hours() / 24))
}

// FineAmount is the fine for a loan due at dueDate and settled at asOf.
func FineAmount(ratePerDay int64, dueDate, asOf time.Time) int64 {
	return ratePerDay * int64(DaysLate(dueDate, asOf))
}
