package service

import (
	"context"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
)

// recentLimit is how many recent borrowings the reader dashboard shows.
const recentLimit = 5

// InventoryStatus is the copy census by status bucket.  Lost and damaged
// copies are collapsed into one bucket for presentation.
type InventoryStatus struct {
	Available   int `json:"available"`
	Borrowed    int `json:"borrowed"`
	LostDamaged int `json:"lostDamaged"`
}

// AdminOverview is the snapshot behind the admin dashboard.
type AdminOverview struct {
	TotalBookTitles        int             `json:"totalBookTitles"`
	TotalRegisteredReaders int             `json:"totalRegisteredReaders"`
	BooksCurrentlyBorrowed int             `json:"booksCurrentlyBorrowed"`
	MonthlyFineRevenue     int64           `json:"monthlyFineRevenue"`
	MonthlyBorrowCount     [12]int         `json:"monthlyBorrowCount"`
	InventoryStatus        InventoryStatus `json:"inventoryStatus"`
}

// RecentBorrowing is one entry in the reader dashboard's history block.
type RecentBorrowing struct {
	ID         uint64     `json:"id"`
	TitleName  string     `json:"bookTitle"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate"`
}

// ReaderOverview is the snapshot behind a reader's dashboard.
type ReaderOverview struct {
	TotalBorrowings    int               `json:"totalBorrowings"`
	ActiveBorrowings   int               `json:"activeBorrowings"`
	OverdueBorrowings  int               `json:"overdueBorrowings"`
	ReservationsCount  int               `json:"reservationsCount"`
	TotalFineAmount    int64             `json:"totalFineAmount"`
	MonthlyBorrowCount [12]int           `json:"monthlyBorrowCount"`
	RecentBorrowings   []RecentBorrowing `json:"recentBorrowings"`
}

// Stats computes dashboard statistics on demand.  Nothing is materialized:
// every overview runs its queries inside one read-only transaction so all
// numbers in a response describe the same instant.
type Stats struct {
	store Store
	clock Clock
}

// NewStats constructs the aggregation service around the given store.
func NewStats(store Store) *Stats {
	return &Stats{store: store, clock: realClock{}}
}

// AdminOverview builds the branch-wide snapshot: catalog size, reader
// count, inventory census, this year's monthly borrow histogram and this
// month's fine revenue.
func (s *Stats) AdminOverview(ctx context.Context) (*AdminOverview, error) {
	now := s.clock.Now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	var out AdminOverview
	err := s.store.ReadOnly(ctx, func(tx Tx) error {
		var err error
		if out.TotalBookTitles, err = tx.CountTitles(ctx); err != nil {
			return err
		}
		if out.TotalRegisteredReaders, err = tx.CountReaders(ctx); err != nil {
			return err
		}
		counts, err := tx.CopyStatusCounts(ctx)
		if err != nil {
			return err
		}
		out.InventoryStatus = InventoryStatus{
			Available:   counts[model.StatusAvailable],
			Borrowed:    counts[model.StatusBorrowed],
			LostDamaged: counts[model.StatusLost] + counts[model.StatusDamaged],
		}
		out.BooksCurrentlyBorrowed = counts[model.StatusBorrowed]
		dates, err := tx.BorrowDates(ctx, now.Year(), nil, now)
		if err != nil {
			return err
		}
		out.MonthlyBorrowCount = MonthlyBuckets(dates, now.Year(), now)
		if out.MonthlyFineRevenue, err = tx.FineTotalBetween(ctx, startOfMonth, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("admin overview", err)
	}
	return &out, nil
}

// ReaderOverview builds one reader's snapshot: loan counters, reservation
// count, lifetime fine total, this year's histogram and the most recent
// borrowings enriched with title names.
func (s *Stats) ReaderOverview(ctx context.Context, readerID uint64) (*ReaderOverview, error) {
	now := s.clock.Now()
	var out ReaderOverview
	err := s.store.ReadOnly(ctx, func(tx Tx) error {
		var err error
		out.TotalBorrowings, out.ActiveBorrowings, out.OverdueBorrowings, err =
			tx.ReaderBorrowingCounts(ctx, readerID, now)
		if err != nil {
			return err
		}
		if out.ReservationsCount, err = tx.CountReservationsByReader(ctx, readerID); err != nil {
			return err
		}
		if out.TotalFineAmount, err = tx.OutstandingFineTotal(ctx, readerID); err != nil {
			return err
		}
		dates, err := tx.BorrowDates(ctx, now.Year(), &readerID, now)
		if err != nil {
			return err
		}
		out.MonthlyBorrowCount = MonthlyBuckets(dates, now.Year(), now)
		recent, err := tx.RecentBorrowings(ctx, readerID, recentLimit)
		if err != nil {
			return err
		}
		out.RecentBorrowings = make([]RecentBorrowing, 0, len(recent))
		for _, b := range recent {
			out.RecentBorrowings = append(out.RecentBorrowings, RecentBorrowing{
				ID:         b.ID,
				TitleName:  b.TitleName,
				BorrowDate: b.BorrowDate,
				DueDate:    b.DueDate,
				ReturnDate: b.ReturnDate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("reader overview", err)
	}
	return &out, nil
}

// MonthlyBuckets folds borrow dates into a 12-element histogram for the
// given calendar year, index 0 being January.  Dates outside the year or
// after now are ignored, so future-dated records never count.
func MonthlyBuckets(dates []time.Time, year int, now time.Time) [12]int {
	var buckets [12]int
	for _, d := range dates {
		if d.Year() != year || d.After(now) {
			continue
		}
		buckets[d.Month()-1]++
	}
	return buckets
}
