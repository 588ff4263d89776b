package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
)

// RequestHandler serves member book requests.
type RequestHandler struct {
	Requests *service.RequestService
}

func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{Requests: requests}
}

func (h *RequestHandler) Create(c echo.Context) error {
	var req service.BookRequestInput
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.Requests.Create(c.Request().Context(), caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *RequestHandler) List(c echo.Context) error {
	out, err := h.Requests.List(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	if out == nil {
		out = []model.BookRequest{}
	}
	return c.JSON(http.StatusOK, out)
}
