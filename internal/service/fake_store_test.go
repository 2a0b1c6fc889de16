package service

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
)

// fakeStore is an in-memory Store used by the service tests.  It keeps the
// five circulation tables as maps and records write operations in journal
// so tests can assert ordering.  No rollback: tests that inject failures
// assert on the returned error, not on state.
type fakeStore struct {
	nextID       uint64
	titles       map[uint64]*model.Title
	copies       map[uint64]*model.Copy
	borrowings   map[uint64]*model.Borrowing
	reservations map[uint64]*model.Reservation
	fines        map[uint64]*model.Fine
	readers      int
	journal      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		titles:       make(map[uint64]*model.Title),
		copies:       make(map[uint64]*model.Copy),
		borrowings:   make(map[uint64]*model.Borrowing),
		reservations: make(map[uint64]*model.Reservation),
		fines:        make(map[uint64]*model.Fine),
	}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return fn(&fakeTx{s: s})
}

func (s *fakeStore) ReadOnly(ctx context.Context, fn func(Tx) error) error {
	return fn(&fakeTx{s: s})
}

func (s *fakeStore) id() uint64 {
	s.nextID++
	return s.nextID
}

// ----- seeding helpers -----

func (s *fakeStore) addTitle(name string) uint64 {
	id := s.id()
	s.titles[id] = &model.Title{ID: id, Name: name, Author: "author"}
	return id
}

func (s *fakeStore) addCopy(titleID uint64, status model.CopyStatus) uint64 {
	id := s.id()
	s.copies[id] = &model.Copy{ID: id, TitleID: titleID, Status: status}
	return id
}

func (s *fakeStore) addBorrowing(readerID, copyID, titleID uint64, borrowed, due time.Time, returned *time.Time) uint64 {
	id := s.id()
	s.borrowings[id] = &model.Borrowing{
		ID: id, ReaderID: readerID, CopyID: copyID, TitleID: titleID,
		BorrowDate: borrowed, DueDate: due, ReturnDate: returned,
	}
	return id
}

func (s *fakeStore) addReservation(readerID, titleID uint64, created time.Time) uint64 {
	id := s.id()
	s.reservations[id] = &model.Reservation{
		ID: id, ReaderID: readerID, TitleID: titleID,
		Status: model.ReservationPending, CreatedAt: created,
	}
	return id
}

func (s *fakeStore) addFine(borrowingID uint64, amount int64, date time.Time) uint64 {
	id := s.id()
	s.fines[id] = &model.Fine{ID: id, BorrowingID: borrowingID, Amount: amount, FineDate: date}
	return id
}

// fixedClock pins time for deterministic due dates and expiries.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// ----- Tx implementation -----

type fakeTx struct{ s *fakeStore }

func (t *fakeTx) TitleExists(_ context.Context, titleID uint64) (bool, error) {
	_, ok := t.s.titles[titleID]
	return ok, nil
}

func (t *fakeTx) CreateTitle(_ context.Context, title *model.Title) error {
	title.ID = t.s.id()
	cp := *title
	t.s.titles[title.ID] = &cp
	t.s.journal = append(t.s.journal, "create title")
	return nil
}

func (t *fakeTx) CreateCopies(_ context.Context, titleID uint64, n int) error {
	for i := 0; i < n; i++ {
		t.s.addCopy(titleID, model.StatusAvailable)
	}
	t.s.journal = append(t.s.journal, "create copies")
	return nil
}

func (t *fakeTx) CopyForUpdate(_ context.Context, copyID uint64) (*model.Copy, error) {
	cp, ok := t.s.copies[copyID]
	if !ok {
		return nil, ErrCopyNotFound
	}
	out := *cp
	return &out, nil
}

func (t *fakeTx) CopyCountByTitle(_ context.Context, titleID uint64) (int, error) {
	n := 0
	for _, cp := range t.s.copies {
		if cp.TitleID == titleID {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) FirstAvailableCopy(_ context.Context, titleID uint64) (*model.Copy, error) {
	var best *model.Copy
	for _, cp := range t.s.copies {
		if cp.TitleID != titleID || cp.Status != model.StatusAvailable {
			continue
		}
		if best == nil || cp.ID < best.ID {
			best = cp
		}
	}
	if best == nil {
		return nil, ErrCopyNotFound
	}
	out := *best
	return &out, nil
}

func (t *fakeTx) UpdateCopyStatus(_ context.Context, copyID uint64, status model.CopyStatus) error {
	cp, ok := t.s.copies[copyID]
	if !ok {
		return ErrCopyNotFound
	}
	cp.Status = status
	t.s.journal = append(t.s.journal, "update copy status")
	return nil
}

func (t *fakeTx) CreateBorrowing(_ context.Context, b *model.Borrowing) error {
	b.ID = t.s.id()
	cp := *b
	t.s.borrowings[b.ID] = &cp
	t.s.journal = append(t.s.journal, "create borrowing")
	return nil
}

func (t *fakeTx) BorrowingForUpdate(_ context.Context, borrowingID uint64) (*model.Borrowing, error) {
	b, ok := t.s.borrowings[borrowingID]
	if !ok {
		return nil, ErrBorrowingNotFound
	}
	out := *b
	return &out, nil
}

func (t *fakeTx) MarkReturned(_ context.Context, borrowingID uint64, returnedAt time.Time) error {
	b, ok := t.s.borrowings[borrowingID]
	if !ok {
		return ErrBorrowingNotFound
	}
	if b.ReturnDate != nil {
		return ErrAlreadyReturned
	}
	r := returnedAt
	b.ReturnDate = &r
	t.s.journal = append(t.s.journal, "mark returned")
	return nil
}

func (t *fakeTx) OpenBorrowings(_ context.Context, asOf time.Time) ([]model.Borrowing, error) {
	var out []model.Borrowing
	for _, b := range t.s.borrowings {
		if b.ReturnDate == nil && b.DueDate.Before(asOf) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) CreateReservation(_ context.Context, r *model.Reservation) error {
	r.ID = t.s.id()
	cp := *r
	t.s.reservations[r.ID] = &cp
	t.s.journal = append(t.s.journal, "create reservation")
	return nil
}

func (t *fakeTx) ReservationByID(_ context.Context, reservationID uint64) (*model.Reservation, error) {
	r, ok := t.s.reservations[reservationID]
	if !ok {
		return nil, ErrReservationNotFound
	}
	out := *r
	return &out, nil
}

func (t *fakeTx) OldestPendingReservation(_ context.Context, titleID uint64) (*model.Reservation, error) {
	var best *model.Reservation
	for _, r := range t.s.reservations {
		if r.TitleID != titleID || r.Status != model.ReservationPending {
			continue
		}
		if best == nil || r.CreatedAt.Before(best.CreatedAt) ||
			(r.CreatedAt.Equal(best.CreatedAt) && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrReservationNotFound
	}
	out := *best
	return &out, nil
}

func (t *fakeTx) ClaimReservation(_ context.Context, reservationID, copyID uint64, expiresAt time.Time) error {
	r, ok := t.s.reservations[reservationID]
	if !ok {
		return ErrReservationNotFound
	}
	c := copyID
	e := expiresAt
	r.CopyID = &c
	r.ExpiresAt = &e
	r.Status = model.ReservationClaimed
	t.s.journal = append(t.s.journal, "claim reservation")
	return nil
}

func (t *fakeTx) ClaimedReservationByCopy(_ context.Context, copyID uint64) (*model.Reservation, error) {
	for _, r := range t.s.reservations {
		if r.Status == model.ReservationClaimed && r.CopyID != nil && *r.CopyID == copyID {
			out := *r
			return &out, nil
		}
	}
	return nil, ErrReservationNotFound
}

func (t *fakeTx) ExpiredClaims(_ context.Context, titleID uint64, asOf time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range t.s.reservations {
		if r.TitleID == titleID && r.Status == model.ReservationClaimed &&
			r.ExpiresAt != nil && !r.ExpiresAt.After(asOf) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) DeleteReservation(_ context.Context, reservationID uint64) error {
	if _, ok := t.s.reservations[reservationID]; !ok {
		return ErrReservationNotFound
	}
	delete(t.s.reservations, reservationID)
	t.s.journal = append(t.s.journal, "delete reservation")
	return nil
}

func (t *fakeTx) ReservationsByReader(_ context.Context, readerID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range t.s.reservations {
		if r.ReaderID == readerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *fakeTx) CreateFine(_ context.Context, f *model.Fine) error {
	f.ID = t.s.id()
	cp := *f
	t.s.fines[f.ID] = &cp
	t.s.journal = append(t.s.journal, "create fine")
	return nil
}

func (t *fakeTx) FineExists(_ context.Context, borrowingID uint64) (bool, error) {
	for _, f := range t.s.fines {
		if f.BorrowingID == borrowingID {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) OutstandingFineTotal(_ context.Context, readerID uint64) (int64, error) {
	var total int64
	for _, f := range t.s.fines {
		b, ok := t.s.borrowings[f.BorrowingID]
		if ok && b.ReaderID == readerID {
			total += f.Amount
		}
	}
	return total, nil
}

func (t *fakeTx) CopyIDsByTitle(_ context.Context, titleID uint64) ([]uint64, error) {
	var out []uint64
	for _, cp := range t.s.copies {
		if cp.TitleID == titleID {
			out = append(out, cp.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *fakeTx) BorrowingIDsByTitleOrCopies(_ context.Context, titleID uint64, copyIDs []uint64) ([]uint64, error) {
	set := make(map[uint64]bool, len(copyIDs))
	for _, id := range copyIDs {
		set[id] = true
	}
	var out []uint64
	for _, b := range t.s.borrowings {
		if b.TitleID == titleID || set[b.CopyID] {
			out = append(out, b.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *fakeTx) DeleteFinesByBorrowings(_ context.Context, borrowingIDs []uint64) error {
	set := make(map[uint64]bool, len(borrowingIDs))
	for _, id := range borrowingIDs {
		set[id] = true
	}
	for id, f := range t.s.fines {
		if set[f.BorrowingID] {
			delete(t.s.fines, id)
		}
	}
	t.s.journal = append(t.s.journal, "delete fines")
	return nil
}

func (t *fakeTx) DeleteReservationsByTitleOrCopies(_ context.Context, titleID uint64, copyIDs []uint64) error {
	set := make(map[uint64]bool, len(copyIDs))
	for _, id := range copyIDs {
		set[id] = true
	}
	for id, r := range t.s.reservations {
		if r.TitleID == titleID || (r.CopyID != nil && set[*r.CopyID]) {
			delete(t.s.reservations, id)
		}
	}
	t.s.journal = append(t.s.journal, "delete reservations")
	return nil
}

func (t *fakeTx) DeleteBorrowings(_ context.Context, borrowingIDs []uint64) error {
	for _, id := range borrowingIDs {
		delete(t.s.borrowings, id)
	}
	t.s.journal = append(t.s.journal, "delete borrowings")
	return nil
}

func (t *fakeTx) DeleteCopiesByTitle(_ context.Context, titleID uint64) error {
	for id, cp := range t.s.copies {
		if cp.TitleID == titleID {
			delete(t.s.copies, id)
		}
	}
	t.s.journal = append(t.s.journal, "delete copies")
	return nil
}

func (t *fakeTx) DeleteTitle(_ context.Context, titleID uint64) error {
	if _, ok := t.s.titles[titleID]; !ok {
		return ErrTitleNotFound
	}
	delete(t.s.titles, titleID)
	t.s.journal = append(t.s.journal, "delete title")
	return nil
}

func (t *fakeTx) CountTitles(_ context.Context) (int, error) {
	return len(t.s.titles), nil
}

func (t *fakeTx) CountReaders(_ context.Context) (int, error) {
	return t.s.readers, nil
}

func (t *fakeTx) CopyStatusCounts(_ context.Context) (map[model.CopyStatus]int, error) {
	out := make(map[model.CopyStatus]int)
	for _, cp := range t.s.copies {
		out[cp.Status]++
	}
	return out, nil
}

func (t *fakeTx) BorrowDates(_ context.Context, year int, readerID *uint64, until time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, b := range t.s.borrowings {
		if readerID != nil && b.ReaderID != *readerID {
			continue
		}
		if b.BorrowDate.Year() != year || b.BorrowDate.After(until) {
			continue
		}
		out = append(out, b.BorrowDate)
	}
	return out, nil
}

func (t *fakeTx) FineTotalBetween(_ context.Context, from, to time.Time) (int64, error) {
	var total int64
	for _, f := range t.s.fines {
		if !f.FineDate.Before(from) && !f.FineDate.After(to) {
			total += f.Amount
		}
	}
	return total, nil
}

func (t *fakeTx) ReaderBorrowingCounts(_ context.Context, readerID uint64, asOf time.Time) (total, active, overdue int, err error) {
	for _, b := range t.s.borrowings {
		if b.ReaderID != readerID {
			continue
		}
		total++
		if b.ReturnDate == nil {
			active++
		}
		if b.IsOverdue(asOf) {
			overdue++
		}
	}
	return total, active, overdue, nil
}

func (t *fakeTx) CountReservationsByReader(_ context.Context, readerID uint64) (int, error) {
	n := 0
	for _, r := range t.s.reservations {
		if r.ReaderID == readerID {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) RecentBorrowings(_ context.Context, readerID uint64, limit int) ([]model.BorrowingWithTitle, error) {
	var out []model.BorrowingWithTitle
	for _, b := range t.s.borrowings {
		if b.ReaderID != readerID {
			continue
		}
		out = append(out, t.withTitle(*b))
	}
	sortBorrowingsDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *fakeTx) ListTitleSummaries(_ context.Context) ([]model.TitleSummary, error) {
	var out []model.TitleSummary
	for _, title := range t.s.titles {
		s := model.TitleSummary{Title: *title}
		for _, cp := range t.s.copies {
			if cp.TitleID != title.ID {
				continue
			}
			s.TotalCopies++
			if cp.Status == model.StatusAvailable {
				s.AvailableCopies++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) ListBorrowingsWithTitles(_ context.Context, limit int) ([]model.BorrowingWithTitle, error) {
	var out []model.BorrowingWithTitle
	for _, b := range t.s.borrowings {
		out = append(out, t.withTitle(*b))
	}
	sortBorrowingsDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *fakeTx) withTitle(b model.Borrowing) model.BorrowingWithTitle {
	name := ""
	if title, ok := t.s.titles[b.TitleID]; ok {
		name = title.Name
	}
	return model.BorrowingWithTitle{Borrowing: b, TitleName: name}
}

func sortBorrowingsDesc(bs []model.BorrowingWithTitle) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].BorrowDate.Equal(bs[j].BorrowDate) {
			return bs[i].BorrowDate.After(bs[j].BorrowDate)
		}
		return bs[i].ID > bs[j].ID
	})
}
