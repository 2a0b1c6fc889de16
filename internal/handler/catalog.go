package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/model"
	"github.com/iliyamo/library-lending/internal/service"
)

// CatalogHandler exposes title registration, listing and the cascading
// deletion.
type CatalogHandler struct {
	Catalog *service.Catalog
}

func NewCatalogHandler(cat *service.Catalog) *CatalogHandler {
	return &CatalogHandler{Catalog: cat}
}

type titlePart struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre"`
	Language        string    `json:"language"`
	PublishedYear   int       `json:"published_year"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
}

func toTitlePart(s model.TitleSummary) titlePart {
	return titlePart{
		ID:              s.ID,
		Name:            s.Name,
		Author:          s.Author,
		Genre:           s.Genre,
		Language:        s.Language,
		PublishedYear:   s.PublishedYear,
		Description:     s.Description,
		Location:        s.Location,
		TotalCopies:     s.TotalCopies,
		AvailableCopies: s.AvailableCopies,
		CreatedAt:       s.CreatedAt,
	}
}

type createTitleReq struct {
	Name          string `json:"name"`
	Author        string `json:"author"`
	Genre         string `json:"genre"`
	Language      string `json:"language"`
	PublishedYear int    `json:"published_year"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	Copies        int    `json:"copies"`
}

// Create registers a title together with its initial batch of copies.
func (h *CatalogHandler) Create(c echo.Context) error {
	var req createTitleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Author = strings.TrimSpace(req.Author)
	if req.Name == "" || req.Author == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/author required"})
	}
	if req.Copies <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "copies must be positive"})
	}

	t := &model.Title{
		Name:          req.Name,
		Author:        req.Author,
		Genre:         req.Genre,
		Language:      req.Language,
		PublishedYear: req.PublishedYear,
		Description:   req.Description,
		Location:      req.Location,
	}
	sum, err := h.Catalog.RegisterTitle(c.Request().Context(), t, req.Copies)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, toTitlePart(*sum))
}

// List returns the whole catalog with copy counts.
func (h *CatalogHandler) List(c echo.Context) error {
	sums, err := h.Catalog.ListTitles(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	out := make([]titlePart, 0, len(sums))
	for _, s := range sums {
		out = append(out, toTitlePart(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"titles": out})
}

// Delete removes a title and everything that hangs off it; the cascade is
// all-or-nothing.
func (h *CatalogHandler) Delete(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid title id"})
	}
	if err := h.Catalog.DeleteTitle(c.Request().Context(), id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
