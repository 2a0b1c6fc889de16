package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/service"
)

// ReservationHandler lets readers queue for titles and walk away again.
type ReservationHandler struct {
	Lending *service.Lending
}

func NewReservationHandler(l *service.Lending) *ReservationHandler {
	return &ReservationHandler{Lending: l}
}

type reservationPart struct {
	ID        uint64     `json:"id"`
	ReaderID  uint64     `json:"reader_id"`
	TitleID   uint64     `json:"title_id"`
	CopyID    *uint64    `json:"copy_id"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func toReservationPart(r model.Reservation) reservationPart {
	return reservationPart{
		ID:        r.ID,
		ReaderID:  r.ReaderID,
		TitleID:   r.TitleID,
		CopyID:    r.CopyID,
		Status:    r.Status,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

type reserveReq struct {
	TitleID uint64 `json:"title_id"`
}

// Create places the calling reader at the back of a title's queue.  When a
// copy is free the reservation comes back already CLAIMED.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil || req.TitleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title_id required"})
	}

	r, err := h.Lending.Reserve(c.Request().Context(), uid, req.TitleID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationPart(*r))
}

// List returns the calling reader's reservations in queue order.
func (h *ReservationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rs, err := h.Lending.ListReservations(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err)
	}
	out := make([]reservationPart, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationPart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Cancel withdraws one of the caller's reservations.  A claimed copy is
// released to the next reader in the queue.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	r, err := h.Lending.Cancel(c.Request().Context(), id, uid)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationPart(*r))
}
