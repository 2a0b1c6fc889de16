package model

import "time"

// Borrowing is one loan event linking a reader, a copy and a time window.
// ReturnDate is nil while the loan is open; once set it is never changed
// again.  A copy has at most one open borrowing at any moment.
//
// Fields:
//  ID         – primary key identifier.
//  ReaderID   – the reader who took the loan (users.id, managed elsewhere).
//  CopyID     – the physical copy that was lent.
//  TitleID    – denormalized owning title of the copy.
//  BorrowDate – when the loan started.
//  DueDate    – when the copy is expected back.
//  ReturnDate – when the copy actually came back (nil while open).
type Borrowing struct {
	ID         uint64     // borrowings.id
	ReaderID   uint64     // borrowings.reader_id
	CopyID     uint64     // borrowings.copy_id
	TitleID    uint64     // borrowings.title_id
	BorrowDate time.Time  // borrowings.borrow_date
	DueDate    time.Time  // borrowings.due_date
	ReturnDate *time.Time // borrowings.return_date (nullable)
}

// IsOverdue reports whether the loan is open and past due as of the given
// instant.  A returned loan is never overdue, no matter how late it came back.
func (b *Borrowing) IsOverdue(asOf time.Time) bool {
	return b.ReturnDate == nil && asOf.After(b.DueDate)
}

// BorrowingWithTitle is a borrowing enriched with the copy's title name,
// used by history listings and the reader dashboard.
type BorrowingWithTitle struct {
	Borrowing
	TitleName string
}
