// This file defines error values and helpers reused across the
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import (
	"database/sql"
	"errors"
)

// ErrEmailExists is returned by UserRepo.Create when the email is already
// registered. Handlers should translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a user lookup matches no row. Handlers
// should translate this into an HTTP 404 response.
var ErrUserNotFound = errors.New("user not found")

// ErrUserInUse is returned by UserRepo.Delete when circulation rows still
// reference the user. Handlers should translate this into an HTTP 409.
var ErrUserInUse = errors.New("user has circulation history")

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
