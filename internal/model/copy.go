package model

import (
	"fmt"
	"time"
)

// CopyStatus is the availability state of one physical copy.  The integer
// codes are stored as-is in the copies.status column, so the values must
// never be reordered.
type CopyStatus uint8

const (
	StatusAvailable CopyStatus = 0 // on the shelf, can be borrowed or reserved
	StatusReserved  CopyStatus = 1 // claimed by a reservation, waiting for pickup
	StatusBorrowed  CopyStatus = 2 // out on loan
	StatusLost      CopyStatus = 3 // reported lost on return
	StatusDamaged   CopyStatus = 4 // reported damaged on return
)

// String returns the label used in API responses and logs.
func (s CopyStatus) String() string {
	switch s {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusReserved:
		return "RESERVED"
	case StatusBorrowed:
		return "BORROWED"
	case StatusLost:
		return "LOST"
	case StatusDamaged:
		return "DAMAGED"
	}
	return fmt.Sprintf("CopyStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the five known states.
func (s CopyStatus) Valid() bool {
	return s <= StatusDamaged
}

// CopyEvent is something that happens to a copy and may move it between
// states.  Events map one-to-one onto the circulation operations.
type CopyEvent uint8

const (
	EventReserve           CopyEvent = iota // a reservation claims the copy
	EventCheckout                           // a reader borrows the copy
	EventCancelReservation                  // a claim is released
	EventReturn                             // returned in usable condition
	EventReturnLost                         // reported lost at return time
	EventReturnDamaged                      // reported damaged at return time
	EventRestock                            // staff puts a lost/damaged copy back
)

// String returns the label used in error messages.
func (e CopyEvent) String() string {
	switch e {
	case EventReserve:
		return "reserve"
	case EventCheckout:
		return "checkout"
	case EventCancelReservation:
		return "cancelReservation"
	case EventReturn:
		return "return"
	case EventReturnLost:
		return "returnLost"
	case EventReturnDamaged:
		return "returnDamaged"
	case EventRestock:
		return "restock"
	}
	return fmt.Sprintf("CopyEvent(%d)", uint8(e))
}

// InvalidTransitionError is returned by Transition when the event is not
// allowed in the copy's current state.  It carries both so handlers can
// render a precise message.
type InvalidTransitionError struct {
	From  CopyStatus
	Event CopyEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a %s copy", e.Event, e.From)
}

// Transition computes the state a copy moves to when an event occurs.  The
// switch enumerates every legal (state, event) pair; anything else fails
// with *InvalidTransitionError.  Callers must persist the new status in the
// same transaction as the record write that triggered the event.
func Transition(from CopyStatus, event CopyEvent) (CopyStatus, error) {
	switch from {
	case StatusAvailable:
		switch event {
		case EventReserve:
			return StatusReserved, nil
		case EventCheckout:
			return StatusBorrowed, nil
		}
	case StatusReserved:
		switch event {
		case EventCheckout:
			return StatusBorrowed, nil
		case EventCancelReservation:
			return StatusAvailable, nil
		}
	case StatusBorrowed:
		switch event {
		case EventReturn:
			return StatusAvailable, nil
		case EventReturnLost:
			return StatusLost, nil
		case EventReturnDamaged:
			return StatusDamaged, nil
		}
	case StatusLost, StatusDamaged:
		if event == EventRestock {
			return StatusAvailable, nil
		}
	}
	return from, &InvalidTransitionError{From: from, Event: event}
}

// Copy is one physical instance of a Title.
//
// Fields:
//  ID        – primary key identifier.
//  TitleID   – owning title; copies never outlive their title.
//  Status    – one of the five CopyStatus values.
//  CreatedAt – when the copy was registered.
//  UpdatedAt – last status change.
type Copy struct {
	ID        uint64     // copies.id
	TitleID   uint64     // copies.title_id
	Status    CopyStatus // copies.status
	CreatedAt time.Time  // copies.created_at
	UpdatedAt time.Time  // copies.updated_at
}
