package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/handler"
	"github.com/iliyamo/library-lending/internal/middleware"
	"github.com/iliyamo/library-lending/internal/model"
)

// RegisterReader registers the reader-facing endpoints under /v1.  All
// routes require the READER role; readers act only on their own records.
// The reader dashboard is deliberately not response-cached: its payload
// is per-user and the cache key is not.
func RegisterReader(
	e *echo.Echo,
	res *handler.ReservationHandler,
	circ *handler.CirculationHandler,
	dash *handler.DashboardHandler,
	jwtSecret string,
) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleReader),
	)

	g.POST("/reservations", res.Create)
	g.GET("/my-reservations", res.List)
	g.DELETE("/reservations/:id", res.Cancel)

	g.GET("/my-fines", circ.MyFines)
	g.GET("/dashboard/reader", dash.ReaderOverview)
}
