package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/policy"
)

// Enforce applies the route-level rule of p before the handler runs.  A
// denied request is answered here and never reaches business logic.
func Enforce(p policy.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := p.Check(CallerFrom(c), policy.ActionFor(c.Request().Method))
			if err == nil {
				return next(c)
			}
			if e, ok := apperr.As(err); ok {
				return c.JSON(e.Status(), e.Response())
			}
			return err
		}
	}
}
