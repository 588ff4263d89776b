package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
)

// ProfileHandler serves the caller's own account view.
type ProfileHandler struct {
	Accounts *service.AccountService
}

func NewProfileHandler(accounts *service.AccountService) *ProfileHandler {
	return &ProfileHandler{Accounts: accounts}
}

type profileResp struct {
	Username         string               `json:"username"`
	ID               uint64               `json:"id"`
	Email            string               `json:"email"`
	DateOfMembership model.Date           `json:"date_of_membership"`
	Bio              *string              `json:"bio"`
	Notifications    []model.Notification `json:"notifications"`
	Transactions     []model.Transaction  `json:"transactions"`
}

// Get handles GET /profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	p, err := h.Accounts.Profile(c.Request().Context(), caller(c).UserID)
	if err != nil {
		return err
	}
	resp := profileResp{
		Username:         p.User.Username,
		ID:               p.User.ID,
		Email:            p.User.Email,
		DateOfMembership: p.User.DateOfMembership,
		Bio:              p.User.Bio,
		Notifications:    p.Notifications,
		Transactions:     p.Transactions,
	}
	if resp.Notifications == nil {
		resp.Notifications = []model.Notification{}
	}
	if resp.Transactions == nil {
		resp.Transactions = []model.Transaction{}
	}
	return c.JSON(http.StatusOK, resp)
}
