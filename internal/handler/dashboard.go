package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/service"
)

// DashboardHandler serves the admin and reader overview endpoints.  The
// aggregation itself lives in the stats service; each response is one
// consistent snapshot.
type DashboardHandler struct {
	Stats *service.Stats
}

func NewDashboardHandler(s *service.Stats) *DashboardHandler {
	return &DashboardHandler{Stats: s}
}

// AdminOverview returns the branch-wide dashboard snapshot.
func (h *DashboardHandler) AdminOverview(c echo.Context) error {
	out, err := h.Stats.AdminOverview(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ReaderOverview returns the calling reader's dashboard snapshot.
func (h *DashboardHandler) ReaderOverview(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Stats.ReaderOverview(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
