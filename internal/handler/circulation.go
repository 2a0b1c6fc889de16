package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/queue"
	"github.com/iliyamo/library-lending/internal/service"
)

// CirculationHandler is the staff desk: checkouts, returns, restocks, the
// loan ledger and the fine sweep.  Every successful mutation also emits a
// circulation event to the broker, fire-and-forget.
type CirculationHandler struct {
	Lending *service.Lending
}

func NewCirculationHandler(l *service.Lending) *CirculationHandler {
	return &CirculationHandler{Lending: l}
}

type borrowingPart struct {
	ID         uint64     `json:"id"`
	ReaderID   uint64     `json:"reader_id"`
	CopyID     uint64     `json:"copy_id"`
	TitleID    uint64     `json:"title_id"`
	TitleName  string     `json:"title_name,omitempty"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
}

func toBorrowingPart(b model.Borrowing) borrowingPart {
	return borrowingPart{
		ID:         b.ID,
		ReaderID:   b.ReaderID,
		CopyID:     b.CopyID,
		TitleID:    b.TitleID,
		BorrowDate: b.BorrowDate,
		DueDate:    b.DueDate,
		ReturnDate: b.ReturnDate,
	}
}

type finePart struct {
	ID          uint64    `json:"id"`
	BorrowingID uint64    `json:"borrowing_id"`
	Amount      int64     `json:"amount"`
	FineDate    time.Time `json:"fine_date"`
}

// publish sends a circulation event without blocking the response.
func publish(ev queue.CirculationEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue.PublishCirculation(ctx, ev)
	}()
}

type checkoutReq struct {
	ReaderID uint64 `json:"reader_id"`
	CopyID   uint64 `json:"copy_id"`
	LoanDays int    `json:"loan_days"`
}

// Checkout lends a copy to a reader.
func (h *CirculationHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ReaderID == 0 || req.CopyID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reader_id/copy_id required"})
	}

	b, err := h.Lending.Checkout(c.Request().Context(), req.ReaderID, req.CopyID, req.LoanDays)
	if err != nil {
		return serviceError(c, err)
	}
	publish(queue.CirculationEvent{
		Kind:        queue.KindCheckout,
		ReaderID:    b.ReaderID,
		CopyID:      b.CopyID,
		TitleID:     b.TitleID,
		BorrowingID: b.ID,
		CopyStatus:  model.StatusBorrowed.String(),
		DueDate:     b.DueDate.Format(time.RFC3339),
		OccurredAt:  b.BorrowDate.Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, toBorrowingPart(*b))
}

type returnReq struct {
	Condition string `json:"condition"` // GOOD | LOST | DAMAGED
}

// Return closes a borrowing.  The condition decides where the copy goes
// next; omitted means GOOD.
func (h *CirculationHandler) Return(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid borrowing id"})
	}
	var req returnReq
	_ = c.Bind(&req)
	cond := service.ReturnCondition(req.Condition)
	if req.Condition == "" {
		cond = service.ConditionGood
	}

	res, err := h.Lending.Return(c.Request().Context(), id, cond)
	if err != nil {
		return serviceError(c, err)
	}

	returnedAt := time.Now().UTC()
	if res.Borrowing.ReturnDate != nil {
		returnedAt = *res.Borrowing.ReturnDate
	}
	publish(queue.CirculationEvent{
		Kind:        queue.KindReturn,
		ReaderID:    res.Borrowing.ReaderID,
		CopyID:      res.Borrowing.CopyID,
		TitleID:     res.Borrowing.TitleID,
		BorrowingID: res.Borrowing.ID,
		CopyStatus:  res.CopyStatus.String(),
		OccurredAt:  returnedAt.Format(time.RFC3339),
	})
	if res.Fine != nil {
		publish(queue.CirculationEvent{
			Kind:        queue.KindFineAssessed,
			ReaderID:    res.Borrowing.ReaderID,
			TitleID:     res.Borrowing.TitleID,
			BorrowingID: res.Borrowing.ID,
			FineAmount:  res.Fine.Amount,
			OccurredAt:  res.Fine.FineDate.Format(time.RFC3339),
		})
	}
	if res.Fulfilled != nil {
		ev := queue.CirculationEvent{
			Kind:          queue.KindReservationFulfilled,
			ReaderID:      res.Fulfilled.ReaderID,
			TitleID:       res.Fulfilled.TitleID,
			ReservationID: res.Fulfilled.ID,
			OccurredAt:    returnedAt.Format(time.RFC3339),
		}
		if res.Fulfilled.CopyID != nil {
			ev.CopyID = *res.Fulfilled.CopyID
		}
		publish(ev)
	}

	out := echo.Map{
		"borrowing":   toBorrowingPart(res.Borrowing),
		"copy_status": res.CopyStatus.String(),
	}
	if res.Fine != nil {
		out["fine"] = finePart{
			ID:          res.Fine.ID,
			BorrowingID: res.Fine.BorrowingID,
			Amount:      res.Fine.Amount,
			FineDate:    res.Fine.FineDate,
		}
	}
	if res.Fulfilled != nil {
		out["fulfilled_reservation"] = toReservationPart(*res.Fulfilled)
	}
	return c.JSON(http.StatusOK, out)
}

// Restock puts a lost or damaged copy back into circulation.
func (h *CirculationHandler) Restock(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid copy id"})
	}
	cp, err := h.Lending.Restock(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"copy_id":  cp.ID,
		"title_id": cp.TitleID,
		"status":   cp.Status.String(),
	})
}

// Loans lists recent borrowings across all readers for the staff ledger.
func (h *CirculationHandler) Loans(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	loans, err := h.Lending.ListLoans(c.Request().Context(), limit)
	if err != nil {
		return serviceError(c, err)
	}
	out := make([]borrowingPart, 0, len(loans))
	for _, l := range loans {
		p := toBorrowingPart(l.Borrowing)
		p.TitleName = l.TitleName
		out = append(out, p)
	}
	return c.JSON(http.StatusOK, echo.Map{"loans": out})
}

// SweepFines assesses fines for every overdue open loan.  Idempotent, so
// schedulers may call it as often as they like.
func (h *CirculationHandler) SweepFines(c echo.Context) error {
	n, err := h.Lending.SweepOverdueFines(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"fines_created": n})
}

// MyFines returns the calling reader's lifetime fine total.
func (h *CirculationHandler) MyFines(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	total, err := h.Lending.OutstandingFines(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total_fine_amount": total})
}
