package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/service"
)

const reservationColumns = `id, reader_id, title_id, copy_id, status, expires_at, created_at`

// CreateReservation inserts a pending reservation and populates the
// generated ID.
func (t *storeTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO reservations (reader_id, title_id, copy_id, status, expires_at, created_at)
		 VALUES (?, ?, NULL, ?, NULL, ?)`,
		r.ReaderID, r.TitleID, r.Status, r.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

// ReservationByID fetches one reservation, locked.
func (t *storeTx) ReservationByID(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, reservationID)
	return scanReservation(row)
}

// OldestPendingReservation returns the head of the title's queue: the
// pending reservation with the earliest creation date, ties broken by ID
// ascending.  Locked, so concurrent fulfillments cannot pop the same row.
func (t *storeTx) OldestPendingReservation(ctx context.Context, titleID uint64) (*model.Reservation, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE title_id = ? AND status = ?
		 ORDER BY created_at, id LIMIT 1 FOR UPDATE`,
		titleID, model.ReservationPending)
	return scanReservation(row)
}

// ClaimReservation binds the reservation to a copy waiting for pickup.
func (t *storeTx) ClaimReservation(ctx context.Context, reservationID, copyID uint64, expiresAt time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET copy_id = ?, status = ?, expires_at = ? WHERE id = ?`,
		copyID, model.ReservationClaimed, expiresAt, reservationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return service.ErrReservationNotFound
	}
	return nil
}

// ClaimedReservationByCopy finds the reservation holding the given copy.
func (t *storeTx) ClaimedReservationByCopy(ctx context.Context, copyID uint64) (*model.Reservation, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE copy_id = ? AND status = ? LIMIT 1 FOR UPDATE`,
		copyID, model.ReservationClaimed)
	return scanReservation(row)
}

// ExpiredClaims lists the title's claimed reservations whose pickup window
// closed at or before asOf.
func (t *storeTx) ExpiredClaims(ctx context.Context, titleID uint64, asOf time.Time) ([]model.Reservation, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE title_id = ? AND status = ? AND expires_at <= ?`,
		titleID, model.ReservationClaimed, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteReservation removes one reservation row.
func (t *storeTx) DeleteReservation(ctx context.Context, reservationID uint64) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM reservations WHERE id = ?`, reservationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return service.ErrReservationNotFound
	}
	return nil
}

// DeleteReservationsByTitleOrCopies removes every reservation referencing
// the title directly or through one of its copies.
func (t *storeTx) DeleteReservationsByTitleOrCopies(ctx context.Context, titleID uint64, copyIDs []uint64) error {
	query := `DELETE FROM reservations WHERE title_id = ?`
	args := []interface{}{titleID}
	if len(copyIDs) > 0 {
		query += ` OR copy_id IN (` + placeholders(len(copyIDs)) + `)`
		args = append(args, idArgs(copyIDs)...)
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// ReservationsByReader lists a reader's reservations in queue order.
func (t *storeTx) ReservationsByReader(ctx context.Context, readerID uint64) ([]model.Reservation, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE reader_id = ? ORDER BY created_at, id`, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountReservationsByReader counts a reader's live reservations.
func (t *storeTx) CountReservationsByReader(ctx context.Context, readerID uint64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE reader_id = ?`, readerID).Scan(&n)
	return n, err
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	r, err := scanReservationRow(row)
	if err != nil {
		if isNoRows(err) {
			return nil, service.ErrReservationNotFound
		}
		return nil, err
	}
	return r, nil
}

func scanReservationRow(row rowScanner) (*model.Reservation, error) {
	var (
		r       model.Reservation
		copyID  sql.NullInt64
		expires sql.NullTime
	)
	err := row.Scan(&r.ID, &r.ReaderID, &r.TitleID, &copyID, &r.Status, &expires, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if copyID.Valid {
		c := uint64(copyID.Int64)
		r.CopyID = &c
	}
	if expires.Valid {
		e := expires.Time
		r.ExpiresAt = &e
	}
	return &r, nil
}
