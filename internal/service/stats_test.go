package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/model"
)

func newTestStats(f *fakeStore, now time.Time) *Stats {
	return &Stats{store: f, clock: fixedClock{now}}
}

func TestMonthlyBuckets(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),  // wrong year
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),  // future
		time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), // future
	}
	got := MonthlyBuckets(dates, 2026, now)
	want := [12]int{2, 0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0}
	assert.Equal(t, want, got)
}

func TestMonthlyBucketsEmpty(t *testing.T) {
	got := MonthlyBuckets(nil, 2026, testNow)
	assert.Equal(t, [12]int{}, got)
}

func TestAdminOverview(t *testing.T) {
	f := newFakeStore()
	f.readers = 4

	t1 := f.addTitle("Dune")
	t2 := f.addTitle("Solaris")
	f.addCopy(t1, model.StatusAvailable)
	f.addCopy(t1, model.StatusBorrowed)
	c3 := f.addCopy(t2, model.StatusBorrowed)
	f.addCopy(t2, model.StatusLost)
	f.addCopy(t2, model.StatusDamaged)
	f.addCopy(t2, model.StatusReserved)

	jan := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.addBorrowing(7, c3, t2, jan, jan.AddDate(0, 0, 14), nil)
	f.addBorrowing(7, c3, t2, feb, feb.AddDate(0, 0, 14), nil)
	bID := f.addBorrowing(8, c3, t2, mar, mar.AddDate(0, 0, 14), nil)

	// One fine inside the current month, one before it.
	f.addFine(bID, 25, testNow.AddDate(0, 0, -2))
	old := f.addBorrowing(8, c3, t2, jan, jan.AddDate(0, 0, 14), nil)
	f.addFine(old, 40, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))

	s := newTestStats(f, testNow)
	out, err := s.AdminOverview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, out.TotalBookTitles)
	assert.Equal(t, 4, out.TotalRegisteredReaders)
	assert.Equal(t, 2, out.BooksCurrentlyBorrowed)
	assert.Equal(t, InventoryStatus{Available: 1, Borrowed: 2, LostDamaged: 2}, out.InventoryStatus)
	assert.Equal(t, int64(25), out.MonthlyFineRevenue)
	want := [12]int{2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	assert.Equal(t, want, out.MonthlyBorrowCount)
}

func TestReaderOverview(t *testing.T) {
	f := newFakeStore()
	titleID := f.addTitle("Dune")
	copyID := f.addCopy(titleID, model.StatusBorrowed)

	// Seven loans this year, so the recent list must cap at five.
	var lastID uint64
	for i := 0; i < 7; i++ {
		borrowed := time.Date(2026, time.Month(1+i%3), 3+i, 10, 0, 0, 0, time.UTC)
		due := borrowed.AddDate(0, 0, 14)
		var returned *time.Time
		if i < 5 {
			r := borrowed.AddDate(0, 0, 7)
			returned = &r
		}
		lastID = f.addBorrowing(7, copyID, titleID, borrowed, due, returned)
	}
	// One of the two open loans is overdue.
	f.borrowings[lastID].DueDate = testNow.AddDate(0, 0, -1)

	// Another reader's loan must not leak in.
	f.addBorrowing(8, copyID, titleID, testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, 13), nil)

	f.addReservation(7, titleID, testNow.Add(-time.Hour))
	b := f.addBorrowing(7, copyID, titleID,
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC),
		&testNow)
	f.addFine(b, 35, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC))

	s := newTestStats(f, testNow)
	out, err := s.ReaderOverview(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 8, out.TotalBorrowings) // 7 this year + 1 last year
	assert.Equal(t, 2, out.ActiveBorrowings)
	assert.Equal(t, 1, out.OverdueBorrowings)
	assert.Equal(t, 1, out.ReservationsCount)
	assert.Equal(t, int64(35), out.TotalFineAmount)

	require.Len(t, out.RecentBorrowings, 5)
	for _, rb := range out.RecentBorrowings {
		assert.Equal(t, "Dune", rb.TitleName)
	}
	// Newest first.
	for i := 1; i < len(out.RecentBorrowings); i++ {
		assert.False(t, out.RecentBorrowings[i].BorrowDate.After(out.RecentBorrowings[i-1].BorrowDate))
	}
}
