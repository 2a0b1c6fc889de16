package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/handler"
	"github.com/iliyamo/library-lending/internal/middleware"
	"github.com/iliyamo/library-lending/internal/model"
)

// RegisterStaff registers the desk and administration endpoints under /v1.
// Circulation and catalog management accept ADMIN and LIBRARIAN; account
// management and the admin dashboard are ADMIN only.  The optional cache
// middleware shields the admin dashboard aggregation.
func RegisterStaff(
	e *echo.Echo,
	cat *handler.CatalogHandler,
	circ *handler.CirculationHandler,
	users *handler.AdminUserHandler,
	dash *handler.DashboardHandler,
	jwtSecret string,
	cache echo.MiddlewareFunc,
) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleLibrarian),
	)

	// ---- Catalog ----
	g.POST("/titles", cat.Create)
	g.DELETE("/titles/:id", cat.Delete)

	// ---- Circulation ----
	g.POST("/loans", circ.Checkout)
	g.POST("/loans/:id/return", circ.Return)
	g.GET("/loans", circ.Loans)
	g.POST("/copies/:id/restock", circ.Restock)
	g.POST("/fines/sweep", circ.SweepFines)

	// ---- Administration (ADMIN only) ----
	admin := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.GET("/users", users.List)
	admin.GET("/users/:id", users.Get)
	admin.POST("/users", users.Create)
	admin.PATCH("/users/:id", users.Update)
	admin.PUT("/users/:id", users.Update)
	admin.PATCH("/users/:id/password", users.ResetPassword)
	admin.DELETE("/users/:id", users.Delete)
	if cache != nil {
		admin.GET("/dashboard/admin", dash.AdminOverview, cache)
	} else {
		admin.GET("/dashboard/admin", dash.AdminOverview)
	}
}
