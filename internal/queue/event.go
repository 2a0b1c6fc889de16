// Package queue defines circulation event payloads exchanged over the
// message broker, plus the publisher and the background consumer.
package queue

// Circulation event kinds. Published after a circulation transaction
// commits so the audit trail never records work that rolled back.
const (
	KindCheckout             = "checkout"
	KindReturn               = "return"
	KindReservationFulfilled = "reservation.fulfilled"
	KindFineAssessed         = "fine.assessed"
)

// CirculationEvent is published to the circulation.events queue whenever a
// copy changes hands. It carries enough detail for downstream consumers to
// log or notify without querying the primary database.
type CirculationEvent struct {
	Kind          string `json:"kind"`
	ReaderID      uint64 `json:"reader_id"`
	CopyID        uint64 `json:"copy_id,omitempty"`
	TitleID       uint64 `json:"title_id"`
	BorrowingID   uint64 `json:"borrowing_id,omitempty"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
	CopyStatus    string `json:"copy_status,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
	FineAmount    int64  `json:"fine_amount,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
