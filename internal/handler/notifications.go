package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/service"
)

// NotificationHandler serves the notification inbox and staff fan-out.
type NotificationHandler struct {
	Notifications *service.NotificationService
}

func NewNotificationHandler(n *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{Notifications: n}
}

type notifyReq struct {
	Recipient uint64 `json:"recipient"`
	Message   string `json:"message"`
}

type broadcastReq struct {
	Message string `json:"message"`
}

type broadcastResp struct {
	Detail string `json:"detail"`
	Count  int64  `json:"count"`
}

// List handles GET /notifications: the caller's inbox, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	out, err := h.Notifications.ListForUser(c.Request().Context(), caller(c).UserID)
	if err != nil {
		return err
	}
	if out == nil {
		out = []model.Notification{}
	}
	return c.JSON(http.StatusOK, out)
}

// Create handles POST /notifications/create: message one user.
func (h *NotificationHandler) Create(c echo.Context) error {
	var req notifyReq
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := h.Notifications.Notify(c.Request().Context(), req.Recipient, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

// General handles POST /notifications/general: message every user.  The
// count is the number of notifications actually written.
func (h *NotificationHandler) General(c echo.Context) error {
	var req broadcastReq
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := h.Notifications.Broadcast(c.Request().Context(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, broadcastResp{Detail: "Notification sent to all users.", Count: n})
}
