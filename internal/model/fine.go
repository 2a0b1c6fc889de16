package model

import "time"

// Fine is a monetary penalty tied to exactly one overdue borrowing.
// Amounts are whole currency units and never negative.  Fines are
// immutable once created; at most one fine exists per borrowing.
//
// Fields:
//  ID          – primary key identifier.
//  BorrowingID – the overdue borrowing that caused the fine.
//  Amount      – penalty amount in currency units.
//  FineDate    – when the fine was assessed.
type Fine struct {
	ID          uint64    // fines.id
	BorrowingID uint64    // fines.borrowing_id
	Amount      int64     // fines.amount
	FineDate    time.Time // fines.fine_date
}
