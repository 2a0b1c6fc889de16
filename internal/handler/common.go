// Package handler defines the HTTP handlers.  Handlers bind and validate
// request bodies, call into the service layer and translate its errors
// into HTTP responses; no business rule lives here.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/service"
)

// getUserID extracts the user_id placed in context by the JWT middleware
// and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter; zero means invalid.
func pathID(c echo.Context, name string) uint64 {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// serviceError maps a lending-core error to an HTTP response.  Domain
// rule violations become 4xx, storage failures 500.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrTitleNotFound),
		errors.Is(err, service.ErrBorrowingNotFound),
		errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrCopyNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrCopyUnavailable),
		errors.Is(err, service.ErrAlreadyReturned),
		errors.Is(err, service.ErrNoCopiesExist),
		errors.Is(err, service.ErrReaderHasOutstandingFine):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrBadCondition),
		errors.Is(err, service.ErrBadCopyCount):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var it *model.InvalidTransitionError
	if errors.As(err, &it) {
		return c.JSON(http.StatusConflict, echo.Map{"error": it.Error()})
	}
	c.Logger().Errorf("handler: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
