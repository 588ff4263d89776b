package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/service"
)

// AuthHandler serves registration and token endpoints.
type AuthHandler struct {
	Accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{Accounts: accounts}
}

// ----- DTOs -----

type registerReq struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Bio      *string `json:"bio"`
}

type tokenReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	Refresh string `json:"refresh"`
}

type registerResp struct {
	Message string            `json:"message"`
	Tokens  service.TokenPair `json:"tokens"`
}

const welcome = "Welcome to Librov, your account has been successfully created and your User ID is %d. " +
	"Below is a token unique to your account, that you can use for authentication. " +
	"If you need a new one, simply send a POST request with your username and password to /token/."

// Register handles POST /register: create a member account and return its
// first token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, pair, err := h.Accounts.Register(c.Request().Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Bio:      req.Bio,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, registerResp{Message: fmt.Sprintf(welcome, u.ID), Tokens: pair})
}

// Token handles POST /token: exchange credentials for a token pair.
func (h *AuthHandler) Token(c echo.Context) error {
	var req tokenReq
	if err := bind(c, &req); err != nil {
		return err
	}
	_, pair, err := h.Accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh handles POST /token/refresh: rotate a refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.Accounts.Refresh(c.Request().Context(), req.Refresh)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}
