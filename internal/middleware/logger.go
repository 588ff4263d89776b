package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger writes one access log line per request.  Server errors
// are logged at error level, client errors at warn.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo render the error so the logged status is final.
				c.Error(err)
			}
			res := c.Response()
			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"req_id", res.Header().Get(echo.HeaderXRequestID),
				"ip", c.RealIP(),
			}
			if uid, _ := c.Get(ctxUserID).(uint64); uid != 0 {
				attrs = append(attrs, "user_id", uid)
			}
			switch {
			case res.Status >= 500:
				if err != nil {
					attrs = append(attrs, "err", err)
				}
				log.Error("request", attrs...)
			case res.Status >= 400:
				log.Warn("request", attrs...)
			default:
				log.Info("request", attrs...)
			}
			return nil
		}
	}
}
