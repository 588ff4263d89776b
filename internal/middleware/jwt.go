package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/utils"
)

// JWTAuth resolves the caller from an "Authorization: Bearer <access>"
// header.  A request without the header continues anonymously and route
// policies decide whether that is enough.  A header that is present but
// malformed, expired or wrongly signed is rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return next(c)
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				return c.JSON(http.StatusUnauthorized, apperr.ErrInvalidToken.Response())
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, apperr.ErrInvalidToken.Response())
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}
