// Package handler adapts HTTP requests onto the library services.  Handlers
// bind and shape payloads only; every rule lives in internal/service and
// every failure is returned to ErrorHandler.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/middleware"
	"github.com/iliyamo/librov/internal/policy"
)

var errInternal = apperr.Response{
	Error:   "internal_error",
	Code:    "internal",
	Message: "A server error occurred.",
}

// ErrorHandler renders handler errors.  Caller-facing *apperr.Error values
// keep their status; echo's own errors (unknown route, bad method) keep
// theirs; anything else is logged and answered with a generic 500.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status == http.StatusInternalServerError {
			log.Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"req_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"err", err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", "err", err)
		}
	}
}

func render(err error) (int, apperr.Response) {
	if e, ok := apperr.As(err); ok {
		return e.Status(), e.Response()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		kind := apperr.Kind("http_error")
		switch he.Code {
		case http.StatusNotFound:
			kind = apperr.KindNotFound
		case http.StatusBadRequest, http.StatusUnsupportedMediaType:
			kind = apperr.KindValidation
		case http.StatusUnauthorized:
			kind = apperr.KindUnauthenticated
		case http.StatusForbidden:
			kind = apperr.KindForbidden
		}
		if he.Code >= http.StatusInternalServerError {
			return http.StatusInternalServerError, errInternal
		}
		return he.Code, apperr.Response{Error: kind, Code: "http_" + strconv.Itoa(he.Code), Message: msg}
	}
	return http.StatusInternalServerError, errInternal
}

// bind decodes the request body into dst.
func bind(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return apperr.Validation("", "Malformed request body.")
	}
	return nil
}

// pathID parses a positive numeric path parameter.  Anything else is
// reported as the missing resource nf.
func pathID(c echo.Context, name string, nf *apperr.Error) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, nf
	}
	return id, nil
}

// queryID parses an optional numeric query parameter.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation(name, "Select a valid choice.")
	}
	return id, nil
}

func caller(c echo.Context) policy.Caller { return middleware.CallerFrom(c) }
