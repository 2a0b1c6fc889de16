// Package router maps URLs to handlers and applies the JWT and role
// middleware per group.  Staff routes accept ADMIN and LIBRARIAN, the
// admin subgroup ADMIN only, reader routes READER only.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/handler"
)

// RegisterRoutes registers routes that require no authentication: the
// health check and the public catalog browse.  The optional cache
// middleware shields the catalog listing.
func RegisterRoutes(e *echo.Echo, cat *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)
	if cache != nil {
		e.GET("/v1/titles", cat.List, cache)
	} else {
		e.GET("/v1/titles", cat.List)
	}
}
