package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/service"
)

// TransactionHandler serves checkout and return.
type TransactionHandler struct {
	Checkout *service.CheckoutService
}

func NewTransactionHandler(checkout *service.CheckoutService) *TransactionHandler {
	return &TransactionHandler{Checkout: checkout}
}

type checkoutReq struct {
	BookID uint64 `json:"book_id"`
}

type returnReq struct {
	TransactionID uint64 `json:"transaction_id"`
}

// Create handles POST /transactions: borrow one copy of a book.
func (h *TransactionHandler) Create(c echo.Context) error {
	var req checkoutReq
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.Checkout.Checkout(c.Request().Context(), caller(c).UserID, req.BookID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

// Return handles PATCH /transactions: settle one of the caller's loans.
func (h *TransactionHandler) Return(c echo.Context) error {
	var req returnReq
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.Checkout.Return(c.Request().Context(), caller(c).UserID, req.TransactionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}
