package model

import "time"

// Reservation statuses.  A reservation starts PENDING (waiting for a copy)
// and becomes CLAIMED when a specific copy is set aside for the reader.
// Claimed reservations carry an expiry; a claim not collected in time is
// swept and the copy goes back through the queue.
const (
	ReservationPending = "PENDING"
	ReservationClaimed = "CLAIMED"
)

// Reservation is a hold request for future availability of a title.  The
// queue is FIFO per title: ordered by CreatedAt, ties broken by ID
// ascending.  Rows are deleted on fulfillment (the claiming reader checks
// out), on cancellation, or when the owning title is deleted.
//
// Fields:
//  ID        – primary key identifier.
//  ReaderID  – the reader holding the reservation.
//  TitleID   – the title being waited for.
//  CopyID    – the specific copy claimed for pickup (nil while PENDING).
//  Status    – PENDING or CLAIMED.
//  ExpiresAt – pickup deadline for a claimed copy (nil while PENDING).
//  CreatedAt – queue position.
type Reservation struct {
	ID        uint64     // reservations.id
	ReaderID  uint64     // reservations.reader_id
	TitleID   uint64     // reservations.title_id
	CopyID    *uint64    // reservations.copy_id (nullable)
	Status    string     // reservations.status
	ExpiresAt *time.Time // reservations.expires_at (nullable)
	CreatedAt time.Time  // reservations.created_at
}
