package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testPolicy() Policy {
	return Policy{
		LoanDays:       14,
		FineRatePerDay: 5,
		ReservationTTL: 48 * time.Hour,
	}
}

func newTestLending(f *fakeStore, p Policy, now time.Time) *Lending {
	return &Lending{store: f, policy: p, clock: fixedClock{now}}
}

func TestCheckoutAvailableCopy(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusAvailable)
	l := newTestLending(f, testPolicy(), testNow)

	b, err := l.Checkout(context.Background(), 7, copyID, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.ReaderID)
	assert.Equal(t, copyID, b.CopyID)
	assert.Equal(t, titleID, b.TitleID)
	assert.Equal(t, testNow, b.BorrowDate)
	assert.Equal(t, testNow.AddDate(0, 0, 14), b.DueDate)
	assert.Nil(t, b.ReturnDate)
	assert.Equal(t, model.StatusBorrowed, f.copies[copyID].Status)
}

func TestCheckoutCustomLoanDays(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusAvailable)
	l := newTestLending(f, testPolicy(), testNow)

	b, err := l.Checkout(context.Background(), 7, copyID, 3)
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(0, 0, 3), b.DueDate)
}

func TestCheckoutBorrowedCopyFails(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Checkout(context.Background(), 7, copyID, 0)
	assert.ErrorIs(t, err, ErrCopyUnavailable)
	assert.Empty(t, f.borrowings)
}

func TestCheckoutUnknownCopy(t *testing.T) {
	f := newFakeStore()
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Checkout(context.Background(), 7, 99, 0)
	assert.ErrorIs(t, err, ErrCopyNotFound)
}

func TestCheckoutReservedForOtherReaderFails(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusReserved)
	resID := f.addReservation(8, titleID, testNow.Add(-time.Hour))
	expires := testNow.Add(24 * time.Hour)
	f.reservations[resID].Status = model.ReservationClaimed
	f.reservations[resID].CopyID = &copyID
	f.reservations[resID].ExpiresAt = &expires
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Checkout(context.Background(), 7, copyID, 0)
	assert.ErrorIs(t, err, ErrCopyUnavailable)
	// The other reader's claim survives.
	assert.Contains(t, f.reservations, resID)
}

func TestCheckoutCollectsOwnClaim(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusReserved)
	resID := f.addReservation(7, titleID, testNow.Add(-time.Hour))
	expires := testNow.Add(24 * time.Hour)
	f.reservations[resID].Status = model.ReservationClaimed
	f.reservations[resID].CopyID = &copyID
	f.reservations[resID].ExpiresAt = &expires
	l := newTestLending(f, testPolicy(), testNow)

	b, err := l.Checkout(context.Background(), 7, copyID, 0)
	require.NoError(t, err)
	assert.Equal(t, copyID, b.CopyID)
	assert.Equal(t, model.StatusBorrowed, f.copies[copyID].Status)
	// Collecting the claim completes and removes the reservation.
	assert.NotContains(t, f.reservations, resID)
}

func TestCheckoutSweepsExpiredClaim(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusReserved)
	resID := f.addReservation(8, titleID, testNow.Add(-72*time.Hour))
	expired := testNow.Add(-time.Hour)
	f.reservations[resID].Status = model.ReservationClaimed
	f.reservations[resID].CopyID = &copyID
	f.reservations[resID].ExpiresAt = &expired
	l := newTestLending(f, testPolicy(), testNow)

	// Reader 8 never collected; the stale claim is swept and reader 7
	// checks the copy out.
	b, err := l.Checkout(context.Background(), 7, copyID, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.ReaderID)
	assert.NotContains(t, f.reservations, resID)
	assert.Equal(t, model.StatusBorrowed, f.copies[copyID].Status)
}

func TestCheckoutBlockedOnFines(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusAvailable)
	past := testNow.AddDate(0, 0, -30)
	ret := past.AddDate(0, 0, 20)
	bID := f.addBorrowing(7, copyID, titleID, past, past.AddDate(0, 0, 14), &ret)
	f.addFine(bID, 30, ret)

	p := testPolicy()
	p.BlockOnFines = true
	l := newTestLending(f, p, testNow)

	_, err := l.Checkout(context.Background(), 7, copyID, 0)
	assert.ErrorIs(t, err, ErrReaderHasOutstandingFine)

	// Another reader with no fines is unaffected.
	_, err = l.Checkout(context.Background(), 8, copyID, 0)
	assert.NoError(t, err)
}

func TestReturnOnTimeGoodCondition(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)
	bID := f.addBorrowing(7, copyID, titleID, testNow.AddDate(0, 0, -7), testNow.AddDate(0, 0, 7), nil)
	l := newTestLending(f, testPolicy(), testNow)

	res, err := l.Return(context.Background(), bID, ConditionGood)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, res.CopyStatus)
	assert.Nil(t, res.Fine)
	assert.Nil(t, res.Fulfilled)
	require.NotNil(t, res.Borrowing.ReturnDate)
	assert.Equal(t, testNow, *res.Borrowing.ReturnDate)
	assert.Equal(t, model.StatusAvailable, f.copies[copyID].Status)
}

func TestReturnLateAssessesFine(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)
	// Due exactly five days ago: 5 days x 5 units = 25.
	bID := f.addBorrowing(7, copyID, titleID, testNow.AddDate(0, 0, -19), testNow.AddDate(0, 0, -5), nil)
	l := newTestLending(f, testPolicy(), testNow)

	res, err := l.Return(context.Background(), bID, ConditionGood)
	require.NoError(t, err)
	require.NotNil(t, res.Fine)
	assert.Equal(t, int64(25), res.Fine.Amount)
	assert.Equal(t, bID, res.Fine.BorrowingID)
	assert.Equal(t, testNow, res.Fine.FineDate)
}

func TestReturnTwiceFails(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)
	bID := f.addBorrowing(7, copyID, titleID, testNow.AddDate(0, 0, -7), testNow.AddDate(0, 0, 7), nil)
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Return(context.Background(), bID, ConditionGood)
	require.NoError(t, err)
	_, err = l.Return(context.Background(), bID, ConditionGood)
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	// The copy stays where the first return put it.
	assert.Equal(t, model.StatusAvailable, f.copies[copyID].Status)
}

func TestReturnLostAndDamaged(t *testing.T) {
	for cond, want := range map[ReturnCondition]model.CopyStatus{
		ConditionLost:    model.StatusLost,
		ConditionDamaged: model.StatusDamaged,
	} {
		f := newFakeStore()
		titleID := f.addTitle("Dune")
		copyID := f.addCopy(titleID, model.StatusBorrowed)
		bID := f.addBorrowing(7, copyID, titleID, testNow.AddDate(0, 0, -7), testNow.AddDate(0, 0, 7), nil)
		// A reader is waiting, but a lost/damaged copy never goes to the queue.
		f.addReservation(8, titleID, testNow.Add(-time.Hour))
		l := newTestLending(f, testPolicy(), testNow)

		res, err := l.Return(context.Background(), bID, cond)
		require.NoError(t, err)
		assert.Equal(t, want, res.CopyStatus)
		assert.Nil(t, res.Fulfilled)
		assert.Equal(t, want, f.copies[copyID].Status)
	}
}

func TestReturnUnknownCondition(t *testing.T) {
	f := newFakeStore()
	l := newTestLending(f, testPolicy(), testNow)
	_, err := l.Return(context.Background(), 1, ReturnCondition("SOGGY"))
	assert.ErrorIs(t, err, ErrBadCondition)
}

func TestReturnFulfillsOldestReservation(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)
	bID := f.addBorrowing(7, copyID, titleID, testNow.AddDate(0, 0, -7), testNow.AddDate(0, 0, 7), nil)
	r1 := f.addReservation(8, titleID, testNow.Add(-3*time.Hour))
	r2 := f.addReservation(9, titleID, testNow.Add(-2*time.Hour))
	l := newTestLending(f, testPolicy(), testNow)

	res, err := l.Return(context.Background(), bID, ConditionGood)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, res.CopyStatus)
	require.NotNil(t, res.Fulfilled)
	assert.Equal(t, r1, res.Fulfilled.ID)
	assert.Equal(t, uint64(8), res.Fulfilled.ReaderID)
	require.NotNil(t, res.Fulfilled.CopyID)
	assert.Equal(t, copyID, *res.Fulfilled.CopyID)
	require.NotNil(t, res.Fulfilled.ExpiresAt)
	assert.Equal(t, testNow.Add(48*time.Hour), *res.Fulfilled.ExpiresAt)

	// Queue order: the younger reservation is still pending.
	assert.Equal(t, model.ReservationClaimed, f.reservations[r1].Status)
	assert.Equal(t, model.ReservationPending, f.reservations[r2].Status)
}

func TestReserveUnknownTitle(t *testing.T) {
	f := newFakeStore()
	l := newTestLending(f, testPolicy(), testNow)
	_, err := l.Reserve(context.Background(), 7, 99)
	assert.ErrorIs(t, err, ErrTitleNotFound)
}

func TestReserveTitleWithoutCopies(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	l := newTestLending(f, testPolicy(), testNow)
	_, err := l.Reserve(context.Background(), 7, titleID)
	assert.ErrorIs(t, err, ErrNoCopiesExist)
}

func TestReserveClaimsFreeCopyImmediately(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusAvailable)
	l := newTestLending(f, testPolicy(), testNow)

	r, err := l.Reserve(context.Background(), 7, titleID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationClaimed, r.Status)
	require.NotNil(t, r.CopyID)
	assert.Equal(t, copyID, *r.CopyID)
	assert.Equal(t, model.StatusReserved, f.copies[copyID].Status)
}

func TestReserveQueuesWhenAllCopiesOut(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	f.addCopy(titleID, model.StatusBorrowed)
	l := newTestLending(f, testPolicy(), testNow)

	r, err := l.Reserve(context.Background(), 7, titleID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, r.Status)
	assert.Nil(t, r.CopyID)
	assert.Nil(t, r.ExpiresAt)
}

func TestCancelPendingReservation(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	f.addCopy(titleID, model.StatusBorrowed)
	resID := f.addReservation(7, titleID, testNow.Add(-time.Hour))
	l := newTestLending(f, testPolicy(), testNow)

	r, err := l.Cancel(context.Background(), resID, 7)
	require.NoError(t, err)
	assert.Equal(t, resID, r.ID)
	assert.NotContains(t, f.reservations, resID)
}

func TestCancelSomeoneElsesReservation(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	f.addCopy(titleID, model.StatusBorrowed)
	resID := f.addReservation(7, titleID, testNow.Add(-time.Hour))
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Cancel(context.Background(), resID, 8)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.Contains(t, f.reservations, resID)
}

func TestCancelClaimedHandsCopyToNextInQueue(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusReserved)
	r1 := f.addReservation(7, titleID, testNow.Add(-3*time.Hour))
	expires := testNow.Add(24 * time.Hour)
	f.reservations[r1].Status = model.ReservationClaimed
	f.reservations[r1].CopyID = &copyID
	f.reservations[r1].ExpiresAt = &expires
	r2 := f.addReservation(8, titleID, testNow.Add(-2*time.Hour))
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Cancel(context.Background(), r1, 7)
	require.NoError(t, err)
	assert.NotContains(t, f.reservations, r1)
	// The freed copy goes straight to the next reader in line.
	assert.Equal(t, model.ReservationClaimed, f.reservations[r2].Status)
	require.NotNil(t, f.reservations[r2].CopyID)
	assert.Equal(t, copyID, *f.reservations[r2].CopyID)
	assert.Equal(t, model.StatusReserved, f.copies[copyID].Status)
}

func TestCancelClaimedHandOffSkipsStatusWrite(t *testing.T) {
	// Handing a copy to the next claimant leaves the row RESERVED, so no
	// status UPDATE may be issued: MySQL counts changed rows, and a
	// same-value write reporting zero must not be mistaken for a miss.
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusReserved)
	r1 := f.addReservation(7, titleID, testNow.Add(-3*time.Hour))
	expires := testNow.Add(24 * time.Hour)
	f.reservations[r1].Status = model.ReservationClaimed
	f.reservations[r1].CopyID = &copyID
	f.reservations[r1].ExpiresAt = &expires
	f.addReservation(8, titleID, testNow.Add(-2*time.Hour))
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Cancel(context.Background(), r1, 7)
	require.NoError(t, err)
	assert.NotContains(t, f.journal, "update copy status")
	assert.Equal(t, model.StatusReserved, f.copies[copyID].Status)
}

func TestCancelClaimedWithEmptyQueueFreesCopy(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusReserved)
	r1 := f.addReservation(7, titleID, testNow.Add(-time.Hour))
	expires := testNow.Add(24 * time.Hour)
	f.reservations[r1].Status = model.ReservationClaimed
	f.reservations[r1].CopyID = &copyID
	f.reservations[r1].ExpiresAt = &expires
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Cancel(context.Background(), r1, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, f.copies[copyID].Status)
}

func TestRestockLostCopy(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusLost)
	l := newTestLending(f, testPolicy(), testNow)

	cp, err := l.Restock(context.Background(), copyID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, cp.Status)
}

func TestRestockFeedsReservationQueue(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusDamaged)
	resID := f.addReservation(7, titleID, testNow.Add(-time.Hour))
	l := newTestLending(f, testPolicy(), testNow)

	cp, err := l.Restock(context.Background(), copyID)
	require.NoError(t, err)
	// The restocked copy is claimed by the waiting reader, not shelved.
	assert.Equal(t, model.StatusReserved, cp.Status)
	assert.Equal(t, model.ReservationClaimed, f.reservations[resID].Status)
}

func TestRestockAvailableCopyFails(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusAvailable)
	l := newTestLending(f, testPolicy(), testNow)

	_, err := l.Restock(context.Background(), copyID)
	var it *model.InvalidTransitionError
	assert.ErrorAs(t, err, &it)
}

func TestAssessIsIdempotent(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)
	bID := f.addBorrowing(7, copyID, titleID, testNow.AddDate(0, 0, -19), testNow.AddDate(0, 0, -5), nil)
	l := newTestLending(f, testPolicy(), testNow)

	fine, err := l.Assess(context.Background(), bID, testNow)
	require.NoError(t, err)
	require.NotNil(t, fine)
	assert.Equal(t, int64(25), fine.Amount)

	again, err := l.Assess(context.Background(), bID, testNow)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, f.fines, 1)
}

func TestAssessNotOverdueYieldsNothing(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)
	bID := f.addBorrowing(7, copyID, titleID, testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, 13), nil)
	l := newTestLending(f, testPolicy(), testNow)

	fine, err := l.Assess(context.Background(), bID, testNow)
	require.NoError(t, err)
	assert.Nil(t, fine)
}

func TestSweepOverdueFines(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	c1 := f.addCopy(titleID, model.StatusBorrowed)
	c2 := f.addCopy(titleID, model.StatusBorrowed)
	c3 := f.addCopy(titleID, model.StatusBorrowed)
	// Two overdue, one on time.
	b1 := f.addBorrowing(7, c1, titleID, testNow.AddDate(0, 0, -20), testNow.AddDate(0, 0, -6), nil)
	f.addBorrowing(8, c2, titleID, testNow.AddDate(0, 0, -16), testNow.AddDate(0, 0, -2), nil)
	f.addBorrowing(9, c3, titleID, testNow.AddDate(0, 0, -2), testNow.AddDate(0, 0, 12), nil)
	// b1 already has its fine; the sweep must not double-charge.
	f.addFine(b1, 30, testNow.Add(-time.Hour))
	l := newTestLending(f, testPolicy(), testNow)

	created, err := l.SweepOverdueFines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Len(t, f.fines, 2)
}

func TestDaysLate(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysLate(due, due))
	assert.Equal(t, 0, DaysLate(due, due.Add(-time.Hour)))
	// Any partial day counts as a whole one.
	assert.Equal(t, 1, DaysLate(due, due.Add(time.Hour)))
	assert.Equal(t, 1, DaysLate(due, due.Add(24*time.Hour)))
	assert.Equal(t, 5, DaysLate(due, due.Add(4*24*time.Hour+12*time.Hour)))
	assert.Equal(t, 5, DaysLate(due, due.Add(5*24*time.Hour)))
}

func TestFineAmount(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(0), FineAmount(5, due, due))
	assert.Equal(t, int64(25), FineAmount(5, due, due.Add(5*24*time.Hour)))
	assert.Equal(t, int64(10), FineAmount(5, due, due.Add(25*time.Hour)))
}

func TestOutstandingFines(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusAvailable)
	past := testNow.AddDate(0, 0, -30)
	ret := past.AddDate(0, 0, 20)
	b1 := f.addBorrowing(7, copyID, titleID, past, past.AddDate(0, 0, 14), &ret)
	b2 := f.addBorrowing(8, copyID, titleID, past, past.AddDate(0, 0, 14), &ret)
	f.addFine(b1, 30, ret)
	f.addFine(b2, 10, ret)
	l := newTestLending(f, testPolicy(), testNow)

	total, err := l.OutstandingFines(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)
}

func TestStorageErrorWrapping(t *testing.T) {
	f := newFakeStore()
	l := newTestLending(f, testPolicy(), testNow)

	// Domain sentinels pass through unwrapped.
	_, err := l.Checkout(context.Background(), 7, 99, 0)
	assert.ErrorIs(t, err, ErrCopyNotFound)
	var se *StorageError
	assert.False(t, errors.As(err, &se))
}
