package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
)

// BookHandler serves the catalog.
type BookHandler struct {
	Catalog *service.CatalogService
}

func NewBookHandler(catalog *service.CatalogService) *BookHandler {
	return &BookHandler{Catalog: catalog}
}

// bookReq is the write payload.  Pointers tell PATCH which fields were sent.
type bookReq struct {
	Title           *string     `json:"title"`
	Author          *string     `json:"author"`
	Genre           *string     `json:"genre"`
	ISBN            *string     `json:"isbn"`
	PublishedDate   *model.Date `json:"published_date"`
	AvailableCopies *uint32     `json:"available_copies"`
}

func (r bookReq) patch() model.BookPatch {
	return model.BookPatch{
		Title:           r.Title,
		Author:          r.Author,
		Genre:           r.Genre,
		ISBN:            r.ISBN,
		PublishedDate:   r.PublishedDate,
		AvailableCopies: r.AvailableCopies,
	}
}

// requireFull rejects a PUT that omits a required field.
func (r bookReq) requireFull() error {
	switch {
	case r.Title == nil:
		return apperr.Validation("title", "This field is required.")
	case r.Author == nil:
		return apperr.Validation("author", "This field is required.")
	case r.ISBN == nil:
		return apperr.Validation("isbn", "This field is required.")
	case r.PublishedDate == nil:
		return apperr.Validation("published_date", "This field is required.")
	}
	return nil
}

// List handles GET /books with exact filters, search and ordering.
func (h *BookHandler) List(c echo.Context) error {
	f := model.BookFilter{
		Title:    c.QueryParam("title"),
		Author:   c.QueryParam("author"),
		ISBN:     c.QueryParam("isbn"),
		Genre:    c.QueryParam("genre"),
		Search:   c.QueryParam("search"),
		Ordering: c.QueryParam("ordering"),
	}
	if raw := c.QueryParam("available_copies"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return apperr.Validation("available_copies", "Enter a whole number.")
		}
		copies := uint32(n)
		f.AvailableCopies = &copies
	}
	books, err := h.Catalog.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if books == nil {
		books = []model.Book{}
	}
	return c.JSON(http.StatusOK, books)
}

func (h *BookHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id", apperr.ErrBookNotFound)
	if err != nil {
		return err
	}
	b, err := h.Catalog.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookHandler) Create(c echo.Context) error {
	var req bookReq
	if err := bind(c, &req); err != nil {
		return err
	}
	var b model.Book
	req.patch().Apply(&b)
	if err := h.Catalog.Create(c.Request().Context(), caller(c), &b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

// Update handles PUT and PATCH /books/:id.  PUT must carry every
// required field; PATCH changes only the fields sent.
func (h *BookHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id", apperr.ErrBookNotFound)
	if err != nil {
		return err
	}
	var req bookReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if c.Request().Method == http.MethodPut {
		if err := req.requireFull(); err != nil {
			return err
		}
	}
	b, err := h.Catalog.Update(c.Request().Context(), caller(c), id, req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id", apperr.ErrBookNotFound)
	if err != nil {
		return err
	}
	if err := h.Catalog.Delete(c.Request().Context(), caller(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
